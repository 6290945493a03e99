// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import "encoding/binary"

// The check value is a Fletcher-style pair of running sums over a fixed
// modulus of 255. Note this is not standard Fletcher-16: the modulus never
// varies with the accumulator width, and the embedded value is built from
// the derived check bytes, not the sums themselves. The device rejects
// anything else, so no substituting a library checksum.
const fletcherModulus = 255

// Fletcher accumulates the two running sums.
type Fletcher struct {
	c0, c1 uint32
}

// Update feeds data into the accumulator one byte at a time.
func (f *Fletcher) Update(data []byte) {
	for _, b := range data {
		f.c0 = (f.c0 + uint32(b)) % fletcherModulus
		f.c1 = (f.c1 + f.c0) % fletcherModulus
	}
}

// CheckBytes derives the pair of check bytes from the current sums.
// Appending them to the summed data drives both sums to zero.
func (f *Fletcher) CheckBytes() (byte, byte) {
	cb0 := (fletcherModulus - (f.c0+f.c1)%fletcherModulus) % fletcherModulus
	cb1 := (fletcherModulus - (f.c0+cb0)%fletcherModulus) % fletcherModulus
	return byte(cb0), byte(cb1)
}

// Checksum16 computes the 16-bit check value embedded in a frame:
// (cb0 << 8) | cb1 over the given bytes.
func Checksum16(data []byte) uint16 {
	var f Fletcher
	f.Update(data)
	cb0, cb1 := f.CheckBytes()
	return uint16(cb0)<<8 | uint16(cb1)
}

// VerifyFrame recomputes the check value over all but the trailing two bytes
// and compares it against the big-endian 16-bit field at the end.
func VerifyFrame(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	want := binary.BigEndian.Uint16(frame[len(frame)-2:])
	return Checksum16(frame[:len(frame)-2]) == want
}
