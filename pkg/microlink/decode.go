// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import (
	"encoding/binary"
	"strings"
	"time"
)

// The decoder is table-driven: decodeTable maps a message id to the
// function that extracts its fields at fixed payload offsets. Interpretation
// kinds are big-endian integers, binary-point values (integer / 2^frac),
// bitfields expanded to named flag lists, fixed-length ASCII (some split
// across two ids), and 16-bit day counts since 2000-01-01.
//
// Ids absent from the table are accepted without any state change; the
// device cycles through more ids than have been identified and unknown ones
// are deliberately passed over.

type decodeFunc func(st *DeviceState, data []byte)

var decodeTable = map[uint8]decodeFunc{
	MsgHeader:            decodeHeader,
	MsgSerialNumber:      decodeSerialNumber,
	MsgModelNameLow:      decodeModelNameLow,
	MsgModelNameHigh:     decodeModelNameHigh,
	MsgSKULow:            decodeSKULow,
	MsgSKUHigh:           decodeSKUHigh,
	MsgFirmwareA:         decodeFirmwareA,
	MsgFirmwareB:         decodeFirmwareB,
	MsgBatteryDates:      decodeBatteryDates,
	MsgBatterySKU:        decodeBatterySKU,
	MsgDeviceName:        decodeDeviceName,
	MsgOperatingConfig:   decodeOperatingConfig,
	MsgPowerRatings:      decodePowerRatings,
	MsgOutletDelays:      decodeOutletDelays,
	MsgOutletName:        decodeOutletName,
	MsgInterfaceConfig:   decodeInterfaceConfig,
	MsgCommMethod:        decodeCommMethod,
	MsgBatteryLifetime:   decodeBatteryLifetime,
	MsgBatteryStatus:     decodeBatteryStatus,
	MsgRuntimeRemaining:  decodeRuntimeRemaining,
	MsgOutputMetrics:     decodeOutputMetrics,
	MsgInputStatus:       decodeInputStatus,
	MsgCommandRegisters:  decodeCommandRegisters,
	MsgOutletStatus:      decodeOutletStatus,
	MsgUPSStatus:         decodeUPSStatus,
	MsgEnvironmentProbeA: decodeEnvironmentProbeA,
	MsgEnvironmentProbeB: decodeEnvironmentProbeB,
	MsgPassword:          decodePassword,
	MsgHandshake:         decodeHandshake,
}

// Apply decodes a checksum-valid message into the state record. It reports
// whether the message id was recognized; unrecognized ids leave the state
// untouched. Invalid messages are never applied.
func (s *DeviceState) Apply(m *Message) bool {
	if m == nil || !m.Valid() {
		return false
	}
	fn, ok := decodeTable[m.ID()]
	if !ok {
		return false
	}
	fn(s, m.Payload())
	s.LastSeen[m.ID()] = m.Timestamp()
	return true
}

// ============================================================
// Extraction helpers
// ============================================================

func u16(b []byte) uint16 {
	return binary.BigEndian.Uint16(b)
}

func u32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// binaryPoint converts a 2- or 4-byte big-endian integer to a float by
// shifting the binary point fracBits positions left.
func binaryPoint(b []byte, fracBits uint, signed bool) float64 {
	var v int64
	switch len(b) {
	case 2:
		if signed {
			v = int64(int16(u16(b)))
		} else {
			v = int64(u16(b))
		}
	case 4:
		if signed {
			v = int64(int32(u32(b)))
		} else {
			v = int64(u32(b))
		}
	}
	return float64(v) / float64(int64(1)<<fracBits)
}

// dayDate converts a day count since 2000-01-01 to a calendar date.
func dayDate(days uint16) time.Time {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(days))
}

// asciiField decodes a fixed-length ASCII field, trimming pad bytes.
func asciiField(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

// flagNames expands set bits into their names, in bit order. Unnamed bits
// are skipped. The result is never nil so an all-clear field reads as an
// empty list rather than an absent one.
func flagNames(v uint16, names []string) []string {
	out := []string{}
	for i, name := range names {
		if name == "" {
			continue
		}
		if v&(1<<uint(i)) != 0 {
			out = append(out, name)
		}
	}
	return out
}

// flagNamesSentinel is flagNames with an explicit name for the all-clear
// value, where the protocol defines zero as "unknown" rather than "none".
func flagNamesSentinel(v uint16, names []string, sentinel string) []string {
	if v == 0 {
		return []string{sentinel}
	}
	return flagNames(v, names)
}

// ============================================================
// Bitfield and enum name tables
// ============================================================

var replaceTestIntervalNames = []string{
	"DISABLED",
	"STARTUP",
	"EACH 7 DAYS SINCE STARTUP",
	"EACH 14 DAYS SINCE STARTUP",
	"EACH 7 DAYS SINCE LAST",
	"EACH 14 DAYS SINCE LAST",
}

var loadShedConfigNames = []string{
	"USE_OFF_DELAY",
	"MANUAL_RESTART_REQUIRED",
	"RESERVED_BIT",
	"TIME_ON_BATTERY",
	"RUNTIME_REMAINING",
	"ON_OVERLOAD", // not applicable to the main outlet group
}

var batteryLifetimeStatusNames = []string{
	"OK",
	"NEAR EOL",
	"OVER EOL",
	"NEAR EOL ACK",
	"OVER EOL ACK",
}

var replaceTestStatusNames = []string{
	"PENDING",
	"IN PROGRESS",
	"PASSED",
	"FAILED",
	"REFUSED",
	"ABORTED",
	"SOURCE PROTOCOL",
	"SOURCE UI",
	"SOURCE INTERNAL",
	"INVALID STATE",
	"INTERNAL FAULT",
	"SOC UNACCEPTABLE",
}

// The calibration register carries the same low twelve bits as the
// replace-test register plus four calibration-specific conditions.
var calibrationStatusNames = append(replaceTestStatusNames[:12:12],
	"LOAD CHANGED",
	"AC INPUT NOT ACCEPTABLE",
	"LOAD TOO LOW",
	"OVERCHARGE IN PROGRESS",
)

var uiStatusNames = []string{
	"CONT. TEST IN PROGRESS",
	"AUDIBLE ALARM IN PROGRESS",
	"AUDIBLE ALARM MUTED",
}

var inputStatusNames = []string{
	"ACCEPTABLE",
	"PENDING ACCEPTABLE",
	"LOW VOLTAGE",
	"HIGH VOLTAGE",
	"DISTORTED",
	"BOOST",
	"TRIM",
	"LOW FREQUENCY",
	"HIGH FREQUENCY",
	"PHASE NOT LOCKED",
	"DELTA PHASE OUT OF RANGE",
	"NEUTRAL NOT CONNECTED",
	"NOT ACCEPTABLE",
	"PLUG RATING EXCEEDED",
}

var systemErrorNames = []string{
	"OUTPUT OVERLOAD",
	"OUTPUT SHORT CIRCUIT",
	"OUTPUT OVERVOLTAGE",
	"TRANSFORMER DC IMBALANCE",
	"OVERTEMPERATURE",
	"BACKFEEDING",
	"AVR RELAY FAULT",
	"PFC INPUT RELAY FAULT",
	"OUTPUT RELAY FAULT",
	"BYPASS RELAY FAULT",
	"FAN FAULT",
	"PFC FAULT",
	"DC BUS OVERVOLTAGE",
	"INVERTER FAULT",
}

var generalErrorNames = []string{
	"SITE WIRING FAULT",
	"EEPROM ERROR",
	"AD CONVERTER ERROR",
	"LOGIC PSU FAULT",
	"INTERNAL COMM FAULT",
	"UI BUTTON FAULT",
	"", // bit 6 unidentified
	"EPO ACTIVE",
}

var batteryErrorNames = []string{
	"DISCONNECTED",
	"OVERVOLTAGE",
	"NEEDS REPLACEMENT",
	"OVERTEMPERATURE",
	"CHARGER FAULT",
	"TEMP SENSOR FAULT",
	"BATTERY BUS SOFT START FAULT",
	"HIGH TEMPERATURE",
	"GENERAL ERROR",
	"COMM ERROR",
}

var outletStatusNames = []string{
	"OUTLET ON",
	"OUTLET OFF",
	"REBOOTING",
	"SHUTTING DOWN",
	"SLEEPING",
	"", // bits 5-6 unidentified
	"",
	"OUTLET OVERLOAD",
	"PENDING OUTLET ON",
	"PENDING OUTLET OFF",
	"WAIT ON AC",
	"WAIT ON MIN RUNTIME",
	"LOW RUNTIME",
}

var upsStatusNames = []string{
	"RESERVED BIT",
	"ONLINE",
	"ON BATTERY",
	"BYPASS ON",
	"OUTPUT OFF",
	"FAULT",
	"INPUT BAD",
	"TESTING",
	"PENDING OUTPUT ON",
	"PENDING OUTPUT OFF",
	"", // bits 10-12 unidentified
	"",
	"",
	"GREEN MODE",
	"INFORMATIONAL ALERT",
}

// Status-change causes, indexed by register value. These appear in APC's
// Modbus documentation under the same names.
var statusChangeCauseNames = []string{
	"SystemInitialization",
	"HighInputVoltage",
	"LowInputVoltage",
	"DistortedInput",
	"RapidChangeOfInputVoltage",
	"HighInputFrequency",
	"LowInputFrequency",
	"FreqAndOrPhaseDifference",
	"AcceptableInput",
	"AutomaticTest",
	"TestEnded",
	"LocalUICommand",
	"ProtocolCommand",
	"LowBatteryVoltage",
	"GeneralError",
	"PowerSystemError",
	"BatterySystemError",
	"ErrorCleared",
	"AutomaticRestart",
	"DistortedInverterOutput",
	"InverterOutputAcceptable",
	"EPOInterface",
	"InputPhaseDeltaOutOfRange",
	"InputNeutralNotConnected",
	"ATSTransfer",
	"ConfigurationChange",
	"AlertAsserted",
	"AlertCleared",
	"PlugRatingExceeded",
	"OutletGroupStateChange",
	"FailureBypassExpired",
}

var voltageSensitivityNames = map[uint8]string{
	1: "HIGH",
	2: "MEDIUM",
	4: "LOW",
}

// Nominal input voltage configuration, one-hot encoded.
var voltageConfigValues = map[uint16]uint16{
	1:    100,
	2:    120,
	4:    200,
	8:    208,
	16:   220,
	32:   230,
	64:   240,
	2048: 115,
}

// ============================================================
// Per-id decode rules
// ============================================================

func decodeHeader(st *DeviceState, data []byte) {
	if len(data) < 8 {
		return
	}
	id := &st.Identity
	id.ProtocolVersion = data[0]
	id.MsgSize = data[1]
	id.NumIDs = data[2]
	id.SeriesID = u16(data[3:5])
	id.SeriesRaw = append([]byte(nil), data[3:5]...)
	id.SeriesDataVersion = data[5]
	// The first 8 header bytes feed the challenge calculation.
	id.HeaderRaw = append([]byte(nil), data[0:8]...)
}

func decodeSerialNumber(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	st.Identity.SerialNumber = asciiField(data[0:14])
	st.Identity.SerialRaw = append([]byte(nil), data[0:14]...)
	st.Identity.ProductionDate = dayDate(u16(data[14:16]))
}

func decodeModelNameLow(st *DeviceState, data []byte) {
	st.Identity.Model = asciiField(data)
}

// The model name's upper half arrives in a separate message and only
// assembles correctly after the lower half.
func decodeModelNameHigh(st *DeviceState, data []byte) {
	st.Identity.Model += asciiField(data)
}

func decodeSKULow(st *DeviceState, data []byte) {
	st.Identity.SKU = asciiField(data)
}

func decodeSKUHigh(st *DeviceState, data []byte) {
	if len(data) < 4 {
		return
	}
	st.Identity.SKU += asciiField(data[0:4])
}

func decodeFirmwareA(st *DeviceState, data []byte) {
	if len(data) < 8 {
		return
	}
	st.Identity.Firmware[0] = asciiField(data[0:8])
	st.Identity.Firmware[1] = asciiField(data[8:])
}

func decodeFirmwareB(st *DeviceState, data []byte) {
	if len(data) < 8 {
		return
	}
	st.Identity.Firmware[2] = asciiField(data[0:8])
	st.Identity.Firmware[3] = asciiField(data[8:])
}

func decodeBatteryDates(st *DeviceState, data []byte) {
	if len(data) < 8 {
		return
	}
	cfg := &st.Config
	cfg.BatteryInstallDate = dayDate(u16(data[0:2]))
	cfg.BatteryLifetimeDays = u16(data[2:4])
	cfg.BatteryNearEOLNotify = u16(data[4:6])
	cfg.BatteryNearEOLRemind = u16(data[6:8])
}

func decodeBatterySKU(st *DeviceState, data []byte) {
	st.Identity.BatterySKU = asciiField(data)
}

func decodeDeviceName(st *DeviceState, data []byte) {
	st.Identity.DeviceName = asciiField(data)
}

func decodeOperatingConfig(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	cfg := &st.Config
	cfg.AllowedOperatingMode = u16(data[0:2])
	cfg.PowerQualityConfig = u16(data[2:4])
	cfg.ReplaceTestIntervalRaw = u16(data[4:6])
	cfg.ReplaceTestInterval = flagNames(cfg.ReplaceTestIntervalRaw, replaceTestIntervalNames)
	cfg.BatteryReplacementDue = dayDate(u16(data[6:8]))
	cfg.LowRuntimeAlarm = u16(data[8:10])
	cfg.VoltageAcceptMax = u16(data[10:12])
	cfg.VoltageAcceptMin = u16(data[12:14])
	cfg.VoltageSensitivityRaw = data[15]
	cfg.VoltageSensitivity = voltageSensitivityNames[data[15]]
}

func decodePowerRatings(st *DeviceState, data []byte) {
	if len(data) < 6 {
		return
	}
	cfg := &st.Config
	cfg.ApparentPowerRating = u16(data[0:2])
	cfg.RealPowerRating = u16(data[2:4])
	cfg.VoltageConfigRaw = u16(data[4:6])
	cfg.VoltageConfig = voltageConfigValues[cfg.VoltageConfigRaw]
}

func decodeOutletDelays(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	cfg := &st.Config
	cfg.PowerOnDelay = u16(data[0:2])
	cfg.PowerOffDelay = u16(data[2:4])
	cfg.RebootDelay = u32(data[4:8])
	cfg.RuntimeMinimumReturn = binaryPoint(data[8:10], 0, false)
	cfg.LoadShedConfigRaw = u16(data[10:12])
	cfg.LoadShedConfig = flagNames(cfg.LoadShedConfigRaw, loadShedConfigNames)
	cfg.LoadShedRuntimeRemain = binaryPoint(data[12:14], 0, false)
	cfg.LoadShedRuntimeLimit = binaryPoint(data[14:16], 0, false)
}

func decodeOutletName(st *DeviceState, data []byte) {
	st.Config.OutletName = asciiField(data)
}

func decodeInterfaceConfig(st *DeviceState, data []byte) {
	if len(data) < 6 {
		return
	}
	st.Config.InterfaceDisable = u16(data[4:6])
}

func decodeCommMethod(st *DeviceState, data []byte) {
	if len(data) < 10 {
		return
	}
	st.Config.CommMethod = u16(data[8:10])
}

func decodeBatteryLifetime(st *DeviceState, data []byte) {
	if len(data) < 8 {
		return
	}
	b := &st.Battery
	b.LifetimeStatusRaw = u16(data[6:8])
	b.LifetimeStatus = flagNames(b.LifetimeStatusRaw, batteryLifetimeStatusNames)
}

func decodeBatteryStatus(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	b := &st.Battery
	b.Voltage = binaryPoint(data[0:2], 5, true)
	b.StateOfCharge = binaryPoint(data[2:4], 9, false)
	b.ReplaceTestCmd = u16(data[4:6])
	b.ReplaceTestStatusRaw = u16(data[6:8])
	b.ReplaceTestStatus = flagNamesSentinel(b.ReplaceTestStatusRaw, replaceTestStatusNames, "UNKNOWN")
	b.CalibrationStatusRaw = u16(data[10:12])
	b.CalibrationStatus = flagNames(b.CalibrationStatusRaw, calibrationStatusNames)
	b.RuntimeRemaining = int(binaryPoint(data[14:16], 0, false))
}

func decodeRuntimeRemaining(st *DeviceState, data []byte) {
	if len(data) < 4 {
		return
	}
	st.Battery.RuntimeRemaining2 = int(binaryPoint(data[0:4], 0, false))
}

func decodeOutputMetrics(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	p := &st.Power
	p.Temperature = binaryPoint(data[0:2], 7, true)
	p.UICmd = u16(data[2:4])
	p.UIStatusRaw = u16(data[4:6])
	p.UIStatus = flagNames(p.UIStatusRaw, uiStatusNames)
	p.VoltageOut = binaryPoint(data[6:8], 6, false)
	p.CurrentOut = binaryPoint(data[8:10], 5, false)
	p.FrequencyOut = binaryPoint(data[10:12], 7, false)
	p.ApparentPowerPct = binaryPoint(data[12:14], 8, false)
	p.RealPowerPct = binaryPoint(data[14:16], 8, false)
}

func decodeInputStatus(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	p := &st.Power
	p.InputStatusRaw = u16(data[2:4])
	p.InputStatus = flagNames(p.InputStatusRaw, inputStatusNames)
	p.VoltageIn = binaryPoint(data[4:6], 6, false)
	p.FrequencyIn = binaryPoint(data[6:8], 7, false)
	p.GreenMode = int16(u16(data[8:10]))
	p.SystemErrorsRaw = u16(data[10:12])
	p.SystemErrors = flagNames(p.SystemErrorsRaw, systemErrorNames)
	p.GeneralErrorsRaw = u16(data[12:14])
	p.GeneralErrors = flagNames(p.GeneralErrorsRaw, generalErrorNames)
	st.Battery.ErrorsRaw = u16(data[14:16])
	st.Battery.Errors = flagNames(st.Battery.ErrorsRaw, batteryErrorNames)
}

// The command registers read back the last written values; writes to this
// id drive outlet and UPS commands (see commands.go).
func decodeCommandRegisters(st *DeviceState, data []byte) {
	if len(data) < 10 {
		return
	}
	st.Outlet.UPSCmd = u16(data[0:2])
	st.Outlet.OutletCmd = u16(data[8:10])
}

func decodeOutletStatus(st *DeviceState, data []byte) {
	if len(data) < 2 {
		return
	}
	st.Outlet.StatusRaw = u16(data[0:2])
	st.Outlet.Status = flagNames(st.Outlet.StatusRaw, outletStatusNames)
}

func decodeUPSStatus(st *DeviceState, data []byte) {
	if len(data) < 12 {
		return
	}
	p := &st.Power
	p.UPSStatusRaw = u16(data[8:10])
	p.UPSStatus = flagNames(p.UPSStatusRaw, upsStatusNames)
	p.ChangeCauseRaw = u16(data[10:12])
	if int(p.ChangeCauseRaw) < len(statusChangeCauseNames) {
		p.ChangeCause = statusChangeCauseNames[p.ChangeCauseRaw]
	} else {
		p.ChangeCause = "Unknown"
	}
}

func decodeEnvironmentProbeA(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	e := &st.Environment
	e.Temperature2 = binaryPoint(data[4:6], 7, true)
	e.HumidityPct = binaryPoint(data[6:8], 9, false)
	e.Temperature3 = binaryPoint(data[14:16], 7, true)
}

func decodeEnvironmentProbeB(st *DeviceState, data []byte) {
	if len(data) < 2 {
		return
	}
	st.Environment.HumidityPct2 = binaryPoint(data[0:2], 9, false)
}

func decodePassword(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	st.Identity.password1 = append([]byte(nil), data[8:12]...)
	st.Identity.password2 = append([]byte(nil), data[12:16]...)
}

// The handshake terminal message. Field capture only; the challenge
// exchange itself is driven by the engine.
func decodeHandshake(st *DeviceState, data []byte) {
	if len(data) < 16 {
		return
	}
	st.Identity.ChallengeStatus = append([]byte(nil), data[14:16]...)
}
