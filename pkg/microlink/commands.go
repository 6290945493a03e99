// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Command builders. Each returns an encoded frame ready for Comm.Submit.
// Writes land in specific registers of the status messages: the device
// treats a write to a command register as an instruction, then reports the
// outcome through the normal polling sweep.

// OutletAction selects an outlet group command.
type OutletAction uint16

// Outlet group command register values. The high bits carry the "use
// off/on delay counters" and "source is host" qualifiers the device
// expects alongside the verb.
const (
	OutletCancel   OutletAction = 1 + 256
	OutletOn       OutletAction = 2 + 32 + 256 + 16384
	OutletOnDelay  OutletAction = 2 + 32 + 64 + 256 + 16384
	OutletOff      OutletAction = 4 + 256 + 16384
	OutletOffDelay OutletAction = 4 + 128 + 256 + 16384
	OutletShutdown OutletAction = 8 + 256 + 16384
	OutletReboot   OutletAction = 16 + 256 + 16384
)

var outletActionNames = map[string]OutletAction{
	"cancel":    OutletCancel,
	"on":        OutletOn,
	"on-delay":  OutletOnDelay,
	"off":       OutletOff,
	"off-delay": OutletOffDelay,
	"shutdown":  OutletShutdown,
	"reboot":    OutletReboot,
}

// ParseOutletAction maps a user-facing action name to its register value.
func ParseOutletAction(name string) (OutletAction, error) {
	a, ok := outletActionNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown outlet action %q", name)
	}
	return a, nil
}

// OutletCommand builds a main outlet group command frame.
func OutletCommand(action OutletAction) []byte {
	return EncodeFrame(MsgCommandRegisters, 8, beUint16(uint16(action)))
}

// Test register verbs, shared by the replace test and runtime calibration
// command registers.
const (
	TestStart uint16 = 0x0001
	TestStop  uint16 = 0x0002
)

// BatteryTestCommand builds a battery replace test start/stop frame.
func BatteryTestCommand(verb uint16) []byte {
	return EncodeFrame(MsgBatteryStatus, 4, beUint16(verb))
}

// RuntimeCalibrationCommand builds a runtime calibration start/stop frame.
func RuntimeCalibrationCommand(verb uint16) []byte {
	return EncodeFrame(MsgBatteryStatus, 8, beUint16(verb))
}

// User interface command register values.
const (
	UIShortTest      uint16 = 0x0001 // brief display/beeper test
	UIContinuousTest uint16 = 0x0002
	UIMuteOn         uint16 = 0x0004
	UIMuteOff        uint16 = 0x0008
	UIAckBatteryFail uint16 = 0x0020
)

var uiCommandNames = map[string]uint16{
	"short-test":      UIShortTest,
	"continuous-test": UIContinuousTest,
	"mute-on":         UIMuteOn,
	"mute-off":        UIMuteOff,
	"ack-alarm":       UIAckBatteryFail,
}

// ParseUICommand maps a user-facing name to a UI command register value.
func ParseUICommand(name string) (uint16, error) {
	v, ok := uiCommandNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown interface command %q", name)
	}
	return v, nil
}

// UserInterfaceCommand builds a display/beeper command frame.
func UserInterfaceCommand(verb uint16) []byte {
	return EncodeFrame(MsgOutputMetrics, 2, beUint16(verb))
}

// FactoryReset builds the frame that clears the device configuration back
// to factory defaults.
func FactoryReset() []byte {
	return EncodeFrame(MsgCommandRegisters, 0, []byte{0x00, 0x08})
}

// SetLoadShedRuntimeLimit builds a frame writing the load shed runtime
// limit register, in seconds.
func SetLoadShedRuntimeLimit(seconds float64) []byte {
	return EncodeFrame(MsgOutletDelays, 14, beUint16(toBinaryPoint(seconds, 0)))
}

// toBinaryPoint converts a value to its fixed-point register encoding with
// the given number of fractional bits.
func toBinaryPoint(v float64, fracBits uint) uint16 {
	return uint16(math.Round(v * float64(uint32(1)<<fracBits)))
}

func beUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}
