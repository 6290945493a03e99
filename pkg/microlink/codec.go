// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import (
	"encoding/binary"
	"time"
)

// Wire frame layout:
//
//	[msg_id:1][offset:1][length:1][payload:length][checksum:2 big-endian]
//
// The checksum covers everything before it. Control frames (init, back,
// reset, next) are bare bytes and never pass through the codec.

// EncodeFrame serializes a (message id, offset, payload) triple into a wire
// frame ready for transmission.
func EncodeFrame(msgID, offset uint8, payload []byte) []byte {
	frame := make([]byte, 0, 3+len(payload)+2)
	frame = append(frame, msgID, offset, uint8(len(payload)))
	frame = append(frame, payload...)
	frame = binary.BigEndian.AppendUint16(frame, Checksum16(frame))
	return frame
}

// DecodeFrame parses an inbound byte buffer into a Message.
//
// Returns nil for an empty buffer. A truncated buffer or a checksum
// mismatch yields a Message with Valid() == false rather than an error, so
// the caller can drive a resend.
func DecodeFrame(buf []byte) *Message {
	if len(buf) == 0 {
		return nil
	}
	m := &Message{
		id:        buf[0],
		timestamp: time.Now(),
	}
	if len(buf) < 3 {
		return m
	}
	m.payload = buf[1 : len(buf)-2]
	m.checksum = binary.BigEndian.Uint16(buf[len(buf)-2:])
	m.valid = VerifyFrame(buf)
	return m
}
