// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import "time"

// Message represents a parsed inbound frame.
//
// A message whose checksum did not verify is still returned by the codec
// with Valid set to false: during noisy handshakes the device emits
// malformed echoes, and the engine answers them with a resend request
// rather than a full reset.
type Message struct {
	id        uint8
	payload   []byte
	checksum  uint16
	valid     bool
	timestamp time.Time
}

// ID returns the message id byte.
func (m *Message) ID() uint8 {
	return m.id
}

// Payload returns the message body between the id byte and the checksum.
func (m *Message) Payload() []byte {
	return m.payload
}

// Checksum returns the 16-bit check value carried by the frame.
func (m *Message) Checksum() uint16 {
	return m.checksum
}

// Valid reports whether the frame's checksum verified.
func (m *Message) Valid() bool {
	return m.valid
}

// Timestamp returns the time the frame was parsed.
func (m *Message) Timestamp() time.Time {
	return m.timestamp
}
