// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

// deviceFrame builds an inbound-style frame: [id][payload][checksum:2].
// Device responses carry no offset/length fields.
func deviceFrame(id uint8, payload []byte) []byte {
	f := append([]byte{id}, payload...)
	sum := Checksum16(f)
	return append(f, byte(sum>>8), byte(sum))
}

// validMsg parses a device frame and fails the test if it does not verify.
func validMsg(t *testing.T, id uint8, payload []byte) *Message {
	t.Helper()
	m := DecodeFrame(deviceFrame(id, payload))
	if m == nil || !m.Valid() {
		t.Fatalf("helper produced invalid frame for id 0x%02X", id)
	}
	return m
}

func mustApply(t *testing.T, st *DeviceState, id uint8, payload []byte) {
	t.Helper()
	if !st.Apply(validMsg(t, id, payload)) {
		t.Fatalf("Apply rejected message id 0x%02X", id)
	}
}

// ============================================================
// Checksum Tests
// ============================================================

func TestChecksum16_KnownVectors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name: "handshake sweep frame",
			data: []byte{
				0x7F, 0x00, 0x00, 0x00, 0x00, 0x19, 0xC9, 0x00, 0x13,
				0x00, 0x4E, 0x00, 0x00, 0x01, 0x79, 0x00, 0x00,
			},
			expected: 0x3190,
		},
		{
			name: "handshake sweep frame variant",
			data: []byte{
				0x7F, 0x00, 0x00, 0x00, 0x00, 0x19, 0xCB, 0x00, 0x13,
				0x00, 0x4E, 0x00, 0x00, 0x01, 0x79, 0x00, 0x00,
			},
			expected: 0x19A6,
		},
		{
			name: "longer sweep frame",
			data: []byte{
				0x7F, 0x00, 0x00, 0x00, 0x00, 0x1C, 0x67, 0x00, 0x15,
				0x00, 0x53, 0x00, 0x00, 0x01, 0x7C, 0x00, 0x00,
			},
			expected: 0x5EB8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := Checksum16(tt.data)
			if sum != tt.expected {
				t.Errorf("checksum mismatch: expected 0x%04X, got 0x%04X", tt.expected, sum)
			}
		})
	}
}

func TestChecksum16_Empty(t *testing.T) {
	// Both sums stay at zero, so both check bytes are zero.
	if sum := Checksum16(nil); sum != 0 {
		t.Errorf("checksum of no data should be 0, got 0x%04X", sum)
	}
}

func TestFletcher_Incremental(t *testing.T) {
	data := []byte{0x6D, 0x01, 0x80, 0xC8, 0x00, 0x00, 0x00, 0x00, 0x04}

	var f Fletcher
	f.Update(data[:3])
	f.Update(data[3:])
	cb0, cb1 := f.CheckBytes()
	got := uint16(cb0)<<8 | uint16(cb1)

	if want := Checksum16(data); got != want {
		t.Errorf("incremental update mismatch: expected 0x%04X, got 0x%04X", want, got)
	}
}

func TestVerifyFrame_AppendedCheckBytes(t *testing.T) {
	frame := deviceFrame(MsgBatteryStatus, bytes.Repeat([]byte{0x42}, 16))
	if !VerifyFrame(frame) {
		t.Error("frame with appended check bytes should verify")
	}
}

func TestVerifyFrame_CorruptedByte(t *testing.T) {
	frame := deviceFrame(MsgBatteryStatus, bytes.Repeat([]byte{0x42}, 16))
	frame[5] ^= 0x01
	if VerifyFrame(frame) {
		t.Error("corrupted frame should not verify")
	}
}

func TestVerifyFrame_TooShort(t *testing.T) {
	for _, frame := range [][]byte{nil, {0x6D}, {0x6D, 0x00}} {
		if VerifyFrame(frame) {
			t.Errorf("frame of length %d should not verify", len(frame))
		}
	}
}

// ============================================================
// Codec Tests
// ============================================================

func TestEncodeFrame_Layout(t *testing.T) {
	payload := []byte{0x41, 0x22}
	frame := EncodeFrame(MsgCommandRegisters, 8, payload)

	if len(frame) != 3+len(payload)+2 {
		t.Fatalf("unexpected frame length %d", len(frame))
	}
	if frame[0] != MsgCommandRegisters {
		t.Errorf("expected id 0x%02X, got 0x%02X", MsgCommandRegisters, frame[0])
	}
	if frame[1] != 8 {
		t.Errorf("expected offset 8, got %d", frame[1])
	}
	if frame[2] != 2 {
		t.Errorf("expected length 2, got %d", frame[2])
	}
	if !bytes.Equal(frame[3:5], payload) {
		t.Errorf("payload not embedded: %X", frame[3:5])
	}
	if !VerifyFrame(frame) {
		t.Error("encoded frame should carry a valid checksum")
	}
}

func TestDecodeFrame_Empty(t *testing.T) {
	if m := DecodeFrame(nil); m != nil {
		t.Error("empty buffer should decode to nil")
	}
	if m := DecodeFrame([]byte{}); m != nil {
		t.Error("zero-length buffer should decode to nil")
	}
}

func TestDecodeFrame_Truncated(t *testing.T) {
	for _, buf := range [][]byte{{0x6D}, {0x6D, 0x01}} {
		m := DecodeFrame(buf)
		if m == nil {
			t.Fatalf("truncated buffer of length %d should yield a message", len(buf))
		}
		if m.Valid() {
			t.Errorf("truncated buffer of length %d should not be valid", len(buf))
		}
		if m.ID() != 0x6D {
			t.Errorf("id should survive truncation, got 0x%02X", m.ID())
		}
	}
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x80, 0xC8, 0x00}
	m := DecodeFrame(deviceFrame(MsgBatteryStatus, payload))

	if m.ID() != MsgBatteryStatus {
		t.Errorf("expected id 0x%02X, got 0x%02X", MsgBatteryStatus, m.ID())
	}
	if !bytes.Equal(m.Payload(), payload) {
		t.Errorf("payload mismatch: %X", m.Payload())
	}
	if !m.Valid() {
		t.Error("round-tripped frame should be valid")
	}
	if m.Timestamp().IsZero() {
		t.Error("decoded message should carry a timestamp")
	}
}

func TestDecodeFrame_ChecksumMismatch(t *testing.T) {
	frame := deviceFrame(MsgBatteryStatus, []byte{0x01, 0x80})
	frame[2] ^= 0xFF

	m := DecodeFrame(frame)
	if m == nil {
		t.Fatal("corrupted frame should still decode to a message")
	}
	if m.Valid() {
		t.Error("corrupted frame should not be valid")
	}
	if m.ID() != MsgBatteryStatus {
		t.Errorf("id should survive corruption, got 0x%02X", m.ID())
	}
}

// ============================================================
// Challenge Tests
// ============================================================

func TestChallengeResponse_KnownVector(t *testing.T) {
	series := []byte{0x12, 0x34}
	header := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	serial := []byte("AS1234567890AB")
	password := []byte{0xAA, 0xBB, 0x00, 0x00}

	got := ChallengeResponse(series, header, serial, password)
	want := []byte{0x01, 0x01, 0xE5, 0xED}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}
}

func TestChallengeResponse_PasswordSensitive(t *testing.T) {
	series := []byte{0x12, 0x34}
	header := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	serial := []byte("AS1234567890AB")

	got := ChallengeResponse(series, header, serial, []byte{0x01, 0x02})
	want := []byte{0x01, 0x01, 0x82, 0xE0}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}
}

func TestChallengeResponse_Deterministic(t *testing.T) {
	series := []byte{0x00, 0x4B}
	header := []byte{0x01, 0x15, 0x23, 0x00, 0x4B, 0x05, 0x00, 0x00}
	serial := []byte("AS1234567890AB")
	password := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	a := ChallengeResponse(series, header, serial, password)
	b := ChallengeResponse(series, header, serial, password)
	if !bytes.Equal(a, b) {
		t.Errorf("response should be deterministic: % X != % X", a, b)
	}
	if a[0] != 0x01 || a[1] != 0x01 {
		t.Errorf("response should start 01 01, got % X", a[:2])
	}
}

func TestDeviceState_Challenge_Incomplete(t *testing.T) {
	st := newDeviceState()
	if _, err := st.challenge(); !errors.Is(err, ErrIdentityIncomplete) {
		t.Errorf("expected ErrIdentityIncomplete, got %v", err)
	}

	// Header alone is not enough.
	header := make([]byte, 16)
	header[3], header[4] = 0x00, 0x4B
	mustApply(t, st, MsgHeader, header)
	if _, err := st.challenge(); !errors.Is(err, ErrIdentityIncomplete) {
		t.Errorf("expected ErrIdentityIncomplete after header only, got %v", err)
	}
}

func TestDeviceState_Challenge_Complete(t *testing.T) {
	st := newDeviceState()

	header := make([]byte, 16)
	copy(header, []byte{0x01, 0x15, 0x23, 0x12, 0x34, 0x05, 0x00, 0x00})
	mustApply(t, st, MsgHeader, header)

	serial := append([]byte("AS1234567890AB"), 0x22, 0x3E)
	mustApply(t, st, MsgSerialNumber, serial)

	password := make([]byte, 16)
	password[8], password[9] = 0xAA, 0xBB
	mustApply(t, st, MsgPassword, password)

	got, err := st.challenge()
	if err != nil {
		t.Fatalf("challenge failed: %v", err)
	}
	want := []byte{0x01, 0x01, 0x46, 0x24}
	if !bytes.Equal(got, want) {
		t.Errorf("expected % X, got % X", want, got)
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestApply_Header(t *testing.T) {
	st := newDeviceState()
	payload := []byte{0x01, 0x15, 0x23, 0x00, 0x4B, 0x05, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	mustApply(t, st, MsgHeader, payload)

	id := st.Identity
	if id.ProtocolVersion != 1 {
		t.Errorf("protocol version: expected 1, got %d", id.ProtocolVersion)
	}
	if id.MsgSize != 0x15 {
		t.Errorf("msg size: expected 0x15, got 0x%02X", id.MsgSize)
	}
	if id.NumIDs != 0x23 {
		t.Errorf("num ids: expected 0x23, got 0x%02X", id.NumIDs)
	}
	if id.SeriesID != 0x004B {
		t.Errorf("series id: expected 0x004B, got 0x%04X", id.SeriesID)
	}
	if !bytes.Equal(id.SeriesRaw, []byte{0x00, 0x4B}) {
		t.Errorf("series raw: got % X", id.SeriesRaw)
	}
	if !bytes.Equal(id.HeaderRaw, payload[:8]) {
		t.Errorf("header raw: got % X", id.HeaderRaw)
	}
}

func TestApply_SerialNumber(t *testing.T) {
	st := newDeviceState()
	// 8766 days after 2000-01-01 is 2024-01-01.
	payload := append([]byte("AS1234567890AB"), 0x22, 0x3E)
	mustApply(t, st, MsgSerialNumber, payload)

	if st.Identity.SerialNumber != "AS1234567890AB" {
		t.Errorf("serial: got %q", st.Identity.SerialNumber)
	}
	if len(st.Identity.SerialRaw) != 14 {
		t.Errorf("serial raw length: got %d", len(st.Identity.SerialRaw))
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !st.Identity.ProductionDate.Equal(want) {
		t.Errorf("production date: expected %v, got %v", want, st.Identity.ProductionDate)
	}
}

func TestApply_ModelAssemblyOrder(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgModelNameLow, []byte("Smart-UPS 150   "))
	mustApply(t, st, MsgModelNameHigh, []byte("0               "))

	if st.Identity.Model != "Smart-UPS 1500" {
		t.Errorf("model: got %q", st.Identity.Model)
	}

	// A fresh lower half restarts the assembly.
	mustApply(t, st, MsgModelNameLow, []byte("Smart-UPS 220   "))
	if st.Identity.Model != "Smart-UPS 220" {
		t.Errorf("model after reassembly: got %q", st.Identity.Model)
	}
}

func TestApply_SKU(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgSKULow, []byte("SMT1500         "))
	// Only the first four bytes of the upper half belong to the SKU.
	mustApply(t, st, MsgSKUHigh, []byte("US  junkjunkjunk"))

	if st.Identity.SKU != "SMT1500US" {
		t.Errorf("sku: got %q", st.Identity.SKU)
	}
}

func TestApply_Firmware(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgFirmwareA, []byte("UPS 08.3ID 05.0 "))
	mustApply(t, st, MsgFirmwareB, []byte("BL 01.1         "))

	fw := st.Identity.Firmware
	if fw[0] != "UPS 08.3" || fw[1] != "ID 05.0" || fw[2] != "BL 01.1" || fw[3] != "" {
		t.Errorf("firmware: got %q", fw)
	}
}

func TestApply_BatteryStatus(t *testing.T) {
	st := newDeviceState()
	payload := []byte{
		0x01, 0x80, // voltage: 384/32 = 12.0 V
		0xC8, 0x00, // charge: 51200/512 = 100.0 %
		0x00, 0x00, // test command
		0x00, 0x00, // test status: zero means unknown
		0x00, 0x00,
		0x00, 0x02, // calibration: IN PROGRESS
		0x00, 0x00,
		0x0E, 0x10, // runtime: 3600 s
	}
	mustApply(t, st, MsgBatteryStatus, payload)

	b := st.Battery
	if b.Voltage != 12.0 {
		t.Errorf("voltage: expected 12.0, got %v", b.Voltage)
	}
	if b.StateOfCharge != 100.0 {
		t.Errorf("charge: expected 100.0, got %v", b.StateOfCharge)
	}
	if len(b.ReplaceTestStatus) != 1 || b.ReplaceTestStatus[0] != "UNKNOWN" {
		t.Errorf("test status sentinel: got %v", b.ReplaceTestStatus)
	}
	if len(b.CalibrationStatus) != 1 || b.CalibrationStatus[0] != "IN PROGRESS" {
		t.Errorf("calibration status: got %v", b.CalibrationStatus)
	}
	if b.RuntimeRemaining != 3600 {
		t.Errorf("runtime: expected 3600, got %d", b.RuntimeRemaining)
	}
}

func TestApply_BatteryStatus_CalibrationSpecificBits(t *testing.T) {
	st := newDeviceState()
	payload := make([]byte, 16)
	payload[10], payload[11] = 0x10, 0x00 // bit 12: LOAD CHANGED
	mustApply(t, st, MsgBatteryStatus, payload)

	got := st.Battery.CalibrationStatus
	if len(got) != 1 || got[0] != "LOAD CHANGED" {
		t.Errorf("calibration bit 12: got %v", got)
	}
}

func TestApply_OutputMetrics(t *testing.T) {
	st := newDeviceState()
	payload := []byte{
		0xF3, 0x80, // temperature: -3200/128 = -25.0 C, signed
		0x00, 0x00, // ui command
		0x00, 0x02, // ui status: AUDIBLE ALARM IN PROGRESS
		0x1E, 0x00, // vout: 7680/64 = 120.0 V
		0x00, 0xA0, // iout: 160/32 = 5.0 A
		0x1E, 0x00, // fout: 7680/128 = 60.0 Hz
		0x32, 0x00, // va: 12800/256 = 50.0 %
		0x28, 0x00, // w: 10240/256 = 40.0 %
	}
	mustApply(t, st, MsgOutputMetrics, payload)

	p := st.Power
	if p.Temperature != -25.0 {
		t.Errorf("temperature: expected -25.0, got %v", p.Temperature)
	}
	if len(p.UIStatus) != 1 || p.UIStatus[0] != "AUDIBLE ALARM IN PROGRESS" {
		t.Errorf("ui status: got %v", p.UIStatus)
	}
	if p.VoltageOut != 120.0 {
		t.Errorf("vout: expected 120.0, got %v", p.VoltageOut)
	}
	if p.CurrentOut != 5.0 {
		t.Errorf("iout: expected 5.0, got %v", p.CurrentOut)
	}
	if p.FrequencyOut != 60.0 {
		t.Errorf("fout: expected 60.0, got %v", p.FrequencyOut)
	}
	if p.ApparentPowerPct != 50.0 {
		t.Errorf("va pct: expected 50.0, got %v", p.ApparentPowerPct)
	}
	if p.RealPowerPct != 40.0 {
		t.Errorf("w pct: expected 40.0, got %v", p.RealPowerPct)
	}
}

func TestApply_InputStatus(t *testing.T) {
	st := newDeviceState()
	payload := []byte{
		0x00, 0x00,
		0x00, 0x01, // input: ACCEPTABLE
		0x1E, 0x00, // vin: 120.0
		0x1E, 0x00, // fin: 60.0
		0x00, 0x01, // green mode
		0x00, 0x00, // system errors
		0x00, 0x01, // general: SITE WIRING FAULT
		0x00, 0x05, // battery: DISCONNECTED + NEEDS REPLACEMENT
	}
	mustApply(t, st, MsgInputStatus, payload)

	p := st.Power
	if len(p.InputStatus) != 1 || p.InputStatus[0] != "ACCEPTABLE" {
		t.Errorf("input status: got %v", p.InputStatus)
	}
	if p.VoltageIn != 120.0 || p.FrequencyIn != 60.0 {
		t.Errorf("input metrics: got %v V, %v Hz", p.VoltageIn, p.FrequencyIn)
	}
	if p.GreenMode != 1 {
		t.Errorf("green mode: got %d", p.GreenMode)
	}
	if len(p.GeneralErrors) != 1 || p.GeneralErrors[0] != "SITE WIRING FAULT" {
		t.Errorf("general errors: got %v", p.GeneralErrors)
	}
	want := []string{"DISCONNECTED", "NEEDS REPLACEMENT"}
	if len(st.Battery.Errors) != 2 || st.Battery.Errors[0] != want[0] || st.Battery.Errors[1] != want[1] {
		t.Errorf("battery errors: got %v", st.Battery.Errors)
	}
}

func TestApply_UPSStatus(t *testing.T) {
	st := newDeviceState()
	payload := make([]byte, 12)
	payload[8], payload[9] = 0x00, 0x02 // ONLINE
	payload[10], payload[11] = 0x00, 0x08
	mustApply(t, st, MsgUPSStatus, payload)

	p := st.Power
	if len(p.UPSStatus) != 1 || p.UPSStatus[0] != "ONLINE" {
		t.Errorf("ups status: got %v", p.UPSStatus)
	}
	if p.ChangeCause != "AcceptableInput" {
		t.Errorf("change cause: got %q", p.ChangeCause)
	}
}

func TestApply_UPSStatus_UnknownCause(t *testing.T) {
	st := newDeviceState()
	payload := make([]byte, 12)
	payload[10], payload[11] = 0x00, 0x64 // out of table range
	mustApply(t, st, MsgUPSStatus, payload)

	if st.Power.ChangeCause != "Unknown" {
		t.Errorf("change cause: got %q", st.Power.ChangeCause)
	}
}

func TestApply_OutletStatus(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgOutletStatus, []byte{0x00, 0x81})

	want := []string{"OUTLET ON", "OUTLET OVERLOAD"}
	got := st.Outlet.Status
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("outlet status: got %v", got)
	}
}

func TestApply_PowerRatings(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgPowerRatings, []byte{0x05, 0xDC, 0x03, 0xE8, 0x00, 0x02})

	cfg := st.Config
	if cfg.ApparentPowerRating != 1500 {
		t.Errorf("va rating: got %d", cfg.ApparentPowerRating)
	}
	if cfg.RealPowerRating != 1000 {
		t.Errorf("w rating: got %d", cfg.RealPowerRating)
	}
	if cfg.VoltageConfig != 120 {
		t.Errorf("voltage config: got %d", cfg.VoltageConfig)
	}
}

func TestApply_OutletDelays(t *testing.T) {
	st := newDeviceState()
	payload := []byte{
		0x00, 0x00, // on delay
		0x00, 0x5A, // off delay: 90
		0x00, 0x00, 0x00, 0x08, // reboot delay: 8
		0x00, 0x3C, // min return runtime: 60
		0x00, 0x10, // load shed config: RUNTIME_REMAINING
		0x01, 0x2C, // remaining limit: 300
		0x02, 0x58, // limit: 600
	}
	mustApply(t, st, MsgOutletDelays, payload)

	cfg := st.Config
	if cfg.PowerOffDelay != 90 {
		t.Errorf("off delay: got %d", cfg.PowerOffDelay)
	}
	if cfg.RebootDelay != 8 {
		t.Errorf("reboot delay: got %d", cfg.RebootDelay)
	}
	if cfg.RuntimeMinimumReturn != 60 {
		t.Errorf("min return: got %v", cfg.RuntimeMinimumReturn)
	}
	if len(cfg.LoadShedConfig) != 1 || cfg.LoadShedConfig[0] != "RUNTIME_REMAINING" {
		t.Errorf("load shed config: got %v", cfg.LoadShedConfig)
	}
	if cfg.LoadShedRuntimeLimit != 600 {
		t.Errorf("load shed limit: got %v", cfg.LoadShedRuntimeLimit)
	}
}

func TestApply_OperatingConfig(t *testing.T) {
	st := newDeviceState()
	payload := []byte{
		0x00, 0x00,
		0x00, 0x00,
		0x00, 0x02, // test interval: STARTUP
		0x22, 0x3E, // replacement due 2024-01-01
		0x00, 0x78, // low runtime alarm: 120
		0x00, 0x94, // accept max: 148
		0x00, 0x58, // accept min: 88
		0x00, 0x01, // sensitivity byte at offset 15: HIGH
	}
	mustApply(t, st, MsgOperatingConfig, payload)

	cfg := st.Config
	if len(cfg.ReplaceTestInterval) != 1 || cfg.ReplaceTestInterval[0] != "STARTUP" {
		t.Errorf("test interval: got %v", cfg.ReplaceTestInterval)
	}
	if cfg.BatteryReplacementDue.Year() != 2024 {
		t.Errorf("replacement due: got %v", cfg.BatteryReplacementDue)
	}
	if cfg.VoltageAcceptMax != 148 || cfg.VoltageAcceptMin != 88 {
		t.Errorf("accept window: got %d..%d", cfg.VoltageAcceptMin, cfg.VoltageAcceptMax)
	}
	if cfg.VoltageSensitivity != "HIGH" {
		t.Errorf("sensitivity: got %q", cfg.VoltageSensitivity)
	}
}

func TestApply_Environment(t *testing.T) {
	st := newDeviceState()
	payload := make([]byte, 16)
	payload[4], payload[5] = 0x0C, 0x80 // 3200/128 = 25.0 C
	payload[6], payload[7] = 0x64, 0x00 // 25600/512 = 50.0 %
	mustApply(t, st, MsgEnvironmentProbeA, payload)

	if st.Environment.Temperature2 != 25.0 {
		t.Errorf("probe temp: got %v", st.Environment.Temperature2)
	}
	if st.Environment.HumidityPct != 50.0 {
		t.Errorf("humidity: got %v", st.Environment.HumidityPct)
	}
}

func TestApply_RuntimeRemaining(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgRuntimeRemaining, []byte{0x00, 0x00, 0x0E, 0x10})
	if st.Battery.RuntimeRemaining2 != 3600 {
		t.Errorf("runtime: got %d", st.Battery.RuntimeRemaining2)
	}
}

func TestApply_UnknownID(t *testing.T) {
	st := newDeviceState()
	if st.Apply(validMsg(t, 0x55, []byte{0x01, 0x02})) {
		t.Error("unknown id should not apply")
	}
	if st.Seen(0x55) {
		t.Error("unknown id should not be recorded as seen")
	}
}

func TestApply_InvalidMessage(t *testing.T) {
	st := newDeviceState()
	frame := deviceFrame(MsgOutletStatus, []byte{0x00, 0x01})
	frame[1] ^= 0xFF

	m := DecodeFrame(frame)
	if st.Apply(m) {
		t.Error("invalid message should not apply")
	}
	if st.Seen(MsgOutletStatus) {
		t.Error("invalid message should not be recorded as seen")
	}
	if st.Apply(nil) {
		t.Error("nil message should not apply")
	}
}

func TestApply_ShortPayloadIgnored(t *testing.T) {
	st := newDeviceState()
	// A valid frame whose payload is shorter than the decode rule needs
	// must not panic or partially apply.
	mustApply(t, st, MsgBatteryStatus, []byte{0x01, 0x80})
	if st.Battery.Voltage != 0 {
		t.Errorf("short payload should not decode fields, got %v", st.Battery.Voltage)
	}
}

func TestApply_RecordsLastSeen(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgOutletStatus, []byte{0x00, 0x01})
	if !st.Seen(MsgOutletStatus) {
		t.Error("applied id should be seen")
	}
	if st.LastSeen[MsgOutletStatus].IsZero() {
		t.Error("last seen timestamp should be set")
	}
}

func TestApply_SameMessageTwiceIsIdempotent(t *testing.T) {
	st := newDeviceState()
	payload := []byte{
		0x01, 0x80, // voltage: 12.0 V
		0xC8, 0x00, // charge: 100.0 %
		0x00, 0x00,
		0x00, 0x04, // test status: PASSED
		0x00, 0x00,
		0x00, 0x00,
		0x00, 0x00,
		0x0E, 0x10, // runtime: 3600 s
	}
	msg := validMsg(t, MsgBatteryStatus, payload)

	st.Apply(msg)
	first := st.clone()
	st.Apply(msg)
	second := st.clone()

	if !reflect.DeepEqual(first.Battery, second.Battery) {
		t.Errorf("battery state drifted on re-apply:\nfirst:  %+v\nsecond: %+v",
			first.Battery, second.Battery)
	}
	if !reflect.DeepEqual(first.Identity, second.Identity) {
		t.Error("identity state drifted on re-apply")
	}
}

func TestDeviceState_Clone(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgOutletStatus, []byte{0x00, 0x01})
	mustApply(t, st, MsgModelNameLow, []byte("Smart-UPS 1500  "))

	c := st.clone()
	c.Outlet.Status[0] = "mutated"
	c.LastSeen[0x99] = time.Now()

	if st.Outlet.Status[0] != "OUTLET ON" {
		t.Error("clone shares outlet status slice with original")
	}
	if st.Seen(0x99) {
		t.Error("clone shares last-seen map with original")
	}
}

// ============================================================
// Command Builder Tests
// ============================================================

func TestOutletCommand(t *testing.T) {
	frame := OutletCommand(OutletOn)

	if frame[0] != MsgCommandRegisters || frame[1] != 8 || frame[2] != 2 {
		t.Errorf("unexpected frame prefix: % X", frame[:3])
	}
	// 2 + 32 + 256 + 16384 = 0x4122
	if frame[3] != 0x41 || frame[4] != 0x22 {
		t.Errorf("unexpected command value: % X", frame[3:5])
	}
	if !VerifyFrame(frame) {
		t.Error("command frame should carry a valid checksum")
	}
}

func TestParseOutletAction(t *testing.T) {
	tests := []struct {
		name   string
		action OutletAction
	}{
		{"cancel", OutletCancel},
		{"on", OutletOn},
		{"on-delay", OutletOnDelay},
		{"off", OutletOff},
		{"off-delay", OutletOffDelay},
		{"shutdown", OutletShutdown},
		{"reboot", OutletReboot},
	}
	for _, tt := range tests {
		got, err := ParseOutletAction(tt.name)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.action {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.action, got)
		}
	}

	if _, err := ParseOutletAction("explode"); err == nil {
		t.Error("unknown action should fail")
	}
}

func TestBatteryTestCommand(t *testing.T) {
	frame := BatteryTestCommand(TestStart)
	if frame[0] != MsgBatteryStatus || frame[1] != 4 {
		t.Errorf("unexpected frame prefix: % X", frame[:2])
	}
	if frame[3] != 0x00 || frame[4] != 0x01 {
		t.Errorf("unexpected verb: % X", frame[3:5])
	}
}

func TestRuntimeCalibrationCommand(t *testing.T) {
	frame := RuntimeCalibrationCommand(TestStop)
	if frame[0] != MsgBatteryStatus || frame[1] != 8 {
		t.Errorf("unexpected frame prefix: % X", frame[:2])
	}
	if frame[3] != 0x00 || frame[4] != 0x02 {
		t.Errorf("unexpected verb: % X", frame[3:5])
	}
}

func TestUserInterfaceCommand(t *testing.T) {
	frame := UserInterfaceCommand(UIMuteOn)
	if frame[0] != MsgOutputMetrics || frame[1] != 2 {
		t.Errorf("unexpected frame prefix: % X", frame[:2])
	}
	if frame[3] != 0x00 || frame[4] != 0x04 {
		t.Errorf("unexpected verb: % X", frame[3:5])
	}
}

func TestParseUICommand(t *testing.T) {
	if v, err := ParseUICommand("mute-off"); err != nil || v != UIMuteOff {
		t.Errorf("mute-off: got %d, %v", v, err)
	}
	if _, err := ParseUICommand("launch"); err == nil {
		t.Error("unknown interface command should fail")
	}
}

func TestFactoryReset(t *testing.T) {
	frame := FactoryReset()
	if frame[0] != MsgCommandRegisters || frame[1] != 0 || frame[2] != 2 {
		t.Errorf("unexpected frame prefix: % X", frame[:3])
	}
	if frame[3] != 0x00 || frame[4] != 0x08 {
		t.Errorf("unexpected payload: % X", frame[3:5])
	}
}

func TestSetLoadShedRuntimeLimit(t *testing.T) {
	frame := SetLoadShedRuntimeLimit(600)
	if frame[0] != MsgOutletDelays || frame[1] != 14 {
		t.Errorf("unexpected frame prefix: % X", frame[:2])
	}
	if frame[3] != 0x02 || frame[4] != 0x58 {
		t.Errorf("unexpected limit: % X", frame[3:5])
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatMessageID(t *testing.T) {
	tests := []struct {
		id   uint8
		name string
	}{
		{MsgHeader, "HEADER"},
		{MsgBatteryStatus, "BATTERY_STATUS"},
		{MsgHandshake, "HANDSHAKE"},
		{0x55, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := FormatMessageID(tt.id); got != tt.name {
			t.Errorf("0x%02X: expected %q, got %q", tt.id, tt.name, got)
		}
	}
}

func TestFormatMessage(t *testing.T) {
	m := validMsg(t, MsgOutletStatus, []byte{0x00, 0x01})
	out := FormatMessage(m)

	if !strings.Contains(out, "OUTLET_STATUS") {
		t.Errorf("output missing message name: %q", out)
	}
	if !strings.Contains(out, "0x72") {
		t.Errorf("output missing message id: %q", out)
	}
	if strings.Contains(out, "CHECKSUM FAIL") {
		t.Errorf("valid message flagged as failed: %q", out)
	}
}

func TestFormatRuntime(t *testing.T) {
	tests := []struct {
		seconds  int
		expected string
	}{
		{0, "0 seconds"},
		{-5, "0 seconds"},
		{1, "1 second"},
		{90, "1 minute and 30 seconds"},
		{3600, "1 hour"},
		{3661, "1 hour, 1 minute, and 1 second"},
	}
	for _, tt := range tests {
		if got := FormatRuntime(tt.seconds); got != tt.expected {
			t.Errorf("%d: expected %q, got %q", tt.seconds, tt.expected, got)
		}
	}
}

func TestFormatSnapshot(t *testing.T) {
	st := newDeviceState()
	mustApply(t, st, MsgModelNameLow, []byte("Smart-UPS 1500  "))
	mustApply(t, st, MsgBatteryStatus, []byte{
		0x01, 0x80, 0xC8, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0E, 0x10,
	})

	out := FormatSnapshot(st)
	if !strings.Contains(out, "Smart-UPS 1500") {
		t.Errorf("snapshot missing model: %q", out)
	}
	if !strings.Contains(out, "100.0%") {
		t.Errorf("snapshot missing charge: %q", out)
	}
	if !strings.Contains(out, "1 hour") {
		t.Errorf("snapshot missing runtime: %q", out)
	}
	// No outlet message arrived, so the section is absent.
	if strings.Contains(out, "=== Outlet ===") {
		t.Errorf("snapshot should omit unseen sections: %q", out)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_NewStatistics(t *testing.T) {
	s := NewStatistics()
	if s.StartTime.IsZero() {
		t.Error("start time should be set")
	}
	if s.TotalExchanges != 0 || s.ValidFrames != 0 {
		t.Error("counters should start at zero")
	}
}

func TestStatistics_String(t *testing.T) {
	s := NewStatistics()
	s.TotalExchanges = 100
	s.ValidFrames = 95
	s.ChecksumErrors = 3
	s.Timeouts = 2

	out := s.String()
	if !strings.Contains(out, "Total Exchanges") {
		t.Errorf("missing exchange count: %q", out)
	}
	if !strings.Contains(out, "95.0%") {
		t.Errorf("missing valid percentage: %q", out)
	}
	if !strings.Contains(out, "Checksum Errors") {
		t.Errorf("missing checksum errors: %q", out)
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	s.TotalExchanges = 10
	s.ChecksumErrors = 2
	s.LastMessageID = MsgHandshake
	s.Reset()

	if s.TotalExchanges != 0 || s.ChecksumErrors != 0 || s.LastMessageID != 0 {
		t.Error("reset should zero all counters")
	}
}

// ============================================================
// CommState Tests
// ============================================================

func TestCommState_String(t *testing.T) {
	tests := []struct {
		state CommState
		name  string
	}{
		{StateInit, "INIT"},
		{StateInitReset, "INIT_RESET"},
		{StateMode0, "MODE0"},
		{StateMode1, "MODE1"},
		{CommState(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.name {
			t.Errorf("expected %q, got %q", tt.name, got)
		}
	}
}

func TestCommState_Online(t *testing.T) {
	if StateInit.Online() || StateInitReset.Online() {
		t.Error("handshake states should be offline")
	}
	if !StateMode0.Online() || !StateMode1.Online() {
		t.Error("established states should be online")
	}
}
