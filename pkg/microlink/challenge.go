// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import "errors"

// ErrIdentityIncomplete is returned when the challenge is requested before
// the device has disclosed every identity field the calculation needs.
var ErrIdentityIncomplete = errors.New("microlink: identity fingerprint incomplete")

// ChallengeResponse derives the 4-byte authentication response from the
// identity bytes the device disclosed during the message sweep.
//
// The sums are seeded with the series id bytes swapped, then accumulate the
// header bytes, the serial-number bytes, and the first two password bytes,
// in that exact order, modulo 255. Reordering produces a response the
// device silently rejects.
func ChallengeResponse(seriesID, header, serial, password []byte) []byte {
	b0 := uint32(seriesID[1])
	b1 := uint32(seriesID[0])
	accumulate := func(bytes []byte) {
		for _, x := range bytes {
			b0 = (b0 + uint32(x)) % fletcherModulus
			b1 = (b1 + b0) % fletcherModulus
		}
	}
	accumulate(header)
	accumulate(serial)
	accumulate(password[:2])
	return []byte{0x01, 0x01, byte(b0), byte(b1)}
}

// challenge computes the response from the accumulated identity, or fails
// if any required piece has not been decoded yet. All of the series id
// (2 bytes), header (8), serial number (14), and password fragment (2) must
// be present; asking earlier is a caller bug surfaced as an error.
func (s *DeviceState) challenge() ([]byte, error) {
	id := &s.Identity
	if len(id.SeriesRaw) != 2 || len(id.HeaderRaw) != 8 ||
		len(id.SerialRaw) != 14 || len(id.password1) < 2 {
		return nil, ErrIdentityIncomplete
	}
	return ChallengeResponse(id.SeriesRaw, id.HeaderRaw, id.SerialRaw, id.password1), nil
}
