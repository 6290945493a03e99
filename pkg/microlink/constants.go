// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

// Package microlink implements the undocumented Microlink serial protocol
// spoken by APC Smart-UPS units over RS-232.
//
// The protocol carries fixed-size framed messages with a non-standard
// Fletcher-style checksum. A device paces its responses to a 250 ms polling
// cadence: the host writes a control byte (or a full command frame), reads
// the response within the window, and repeats. Write access is only granted
// after a challenge-response handshake derived from identity bytes the
// device discloses during the initial message sweep.
//
// This package provides the frame codec, the message decoder, the challenge
// calculator, and the Comm engine that owns the poll loop.
package microlink

import "time"

// Control bytes. These are sent bare on the wire, without framing or
// checksum.
const (
	ctrlBack  = 0xF7 // re-emit the previous message
	ctrlReset = 0xFD // reset the message sweep
	ctrlNext  = 0xFE // keep-alive: request the next queued message
)

// cmdInit is the two-byte sequence that opens communication.
var cmdInit = []byte{0xF7, 0xFD}

// Protocol timing. The device locks onto the host's polling cadence, so the
// receive window and serial parameters must not be tuned.
const (
	RcvTimeout = 250 * time.Millisecond

	// RcvSize is the largest frame the device emits: id + 16-byte payload
	// + 2 checksum bytes. A transport can stop reading early once a full
	// window's worth has arrived.
	RcvSize = 19

	resetBackoff = time.Second

	// DefaultBaudRate is the only rate Microlink devices speak.
	DefaultBaudRate = 9600
)

// Message IDs observed in practice. Ids outside this set are accepted but
// not decoded.
const (
	MsgHeader            = 0x00
	MsgSerialNumber      = 0x40
	MsgModelNameLow      = 0x41
	MsgModelNameHigh     = 0x42
	MsgSKULow            = 0x43
	MsgSKUHigh           = 0x44
	MsgFirmwareA         = 0x45
	MsgFirmwareB         = 0x46
	MsgBatteryDates      = 0x47
	MsgBatterySKU        = 0x48
	MsgDeviceName        = 0x49
	MsgOperatingConfig   = 0x4A
	MsgPowerRatings      = 0x4B
	MsgOutletDelays      = 0x4C
	MsgOutletName        = 0x4D
	MsgInterfaceConfig   = 0x4E
	MsgCommMethod        = 0x5C
	MsgBatteryLifetime   = 0x6C
	MsgBatteryStatus     = 0x6D
	MsgRuntimeRemaining  = 0x6E
	MsgOutputMetrics     = 0x6F
	MsgInputStatus       = 0x70
	MsgCommandRegisters  = 0x71
	MsgOutletStatus      = 0x72
	MsgUPSStatus         = 0x76
	MsgEnvironmentProbeA = 0x79
	MsgEnvironmentProbeB = 0x7A
	MsgPassword          = 0x7E
	MsgHandshake         = 0x7F
)

// challengeOffset is the byte offset within the password register where the
// challenge response is written.
const challengeOffset = 12

// CommState represents the connection state machine's position.
type CommState int

// Connection states. StateMode1 is the only state in which caller-submitted
// commands are honored; it is entered after a successful challenge exchange.
const (
	StateInit CommState = iota
	StateInitReset
	StateMode0
	StateMode1
)

// String returns the state name.
func (s CommState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateInitReset:
		return "INIT_RESET"
	case StateMode0:
		return "MODE0"
	case StateMode1:
		return "MODE1"
	default:
		return "UNKNOWN"
	}
}

// Online reports whether the state counts as an established connection.
func (s CommState) Online() bool {
	return s == StateMode0 || s == StateMode1
}
