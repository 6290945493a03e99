// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import "time"

// DeviceState is the accumulated, typed view of everything the device has
// disclosed. Fields stay at their zero value until the first message
// carrying them decodes; LastSeen records which message ids have arrived.
// The decoder only appends or overwrites, never deletes, and only the
// engine's poll loop mutates it.
type DeviceState struct {
	Identity    Identity
	Config      Config
	Battery     BatteryStatus
	Power       PowerStatus
	Outlet      OutletStatus
	Environment Environment

	// LastSeen maps message id to the time it last decoded.
	LastSeen map[uint8]time.Time
}

// Identity carries the device's self-description, accumulated piecemeal
// across the handshake sweep. The raw byte fields feed the challenge
// calculation and must be kept exactly as received.
type Identity struct {
	ProtocolVersion   uint8
	MsgSize           uint8
	NumIDs            uint8
	SeriesID          uint16
	SeriesRaw         []byte // 2 bytes
	SeriesDataVersion uint8
	HeaderRaw         []byte // 8 bytes
	SerialNumber      string
	SerialRaw         []byte // 14 bytes
	ProductionDate    time.Time
	Model             string // assembled from two 16-byte halves
	SKU               string // assembled from a 16-byte and a 4-byte half
	Firmware          [4]string
	BatterySKU        string
	DeviceName        string
	ChallengeStatus   []byte

	// Password fragments disclosed by the device, used only for the
	// challenge response. Deliberately unexported from snapshots.
	password1 []byte
	password2 []byte
}

// Config carries the device's persisted settings.
type Config struct {
	AllowedOperatingMode   uint16
	PowerQualityConfig     uint16
	ReplaceTestIntervalRaw uint16
	ReplaceTestInterval    []string
	BatteryReplacementDue  time.Time
	LowRuntimeAlarm        uint16 // seconds remaining that trips the alarm
	VoltageAcceptMax       uint16
	VoltageAcceptMin       uint16
	VoltageSensitivityRaw  uint8
	VoltageSensitivity     string
	ApparentPowerRating    uint16 // VA
	RealPowerRating        uint16 // W
	VoltageConfigRaw       uint16
	VoltageConfig          uint16 // nominal input volts
	PowerOnDelay           uint16 // seconds
	PowerOffDelay          uint16 // seconds
	RebootDelay            uint32 // seconds
	RuntimeMinimumReturn   float64
	LoadShedConfigRaw      uint16
	LoadShedConfig         []string
	LoadShedRuntimeRemain  float64 // seconds
	LoadShedRuntimeLimit   float64 // seconds
	InterfaceDisable       uint16
	CommMethod             uint16
	BatteryInstallDate     time.Time
	BatteryLifetimeDays    uint16
	BatteryNearEOLNotify   uint16 // days before due date
	BatteryNearEOLRemind   uint16 // repeat interval, days
	OutletName             string
}

// BatteryStatus carries live battery telemetry and test state.
type BatteryStatus struct {
	Voltage              float64
	StateOfCharge        float64 // percent
	ReplaceTestCmd       uint16
	ReplaceTestStatusRaw uint16
	ReplaceTestStatus    []string
	CalibrationStatusRaw uint16
	CalibrationStatus    []string
	LifetimeStatusRaw    uint16
	LifetimeStatus       []string
	RuntimeRemaining     int // seconds
	RuntimeRemaining2    int // seconds, wider register
	ErrorsRaw            uint16
	Errors               []string
}

// PowerStatus carries input/output electrical telemetry and fault state.
type PowerStatus struct {
	Temperature       float64
	UICmd             uint16
	UIStatusRaw       uint16
	UIStatus          []string
	VoltageOut        float64
	CurrentOut        float64
	FrequencyOut      float64
	ApparentPowerPct  float64
	RealPowerPct      float64
	InputStatusRaw    uint16
	InputStatus       []string
	VoltageIn         float64
	FrequencyIn       float64
	GreenMode         int16
	SystemErrorsRaw   uint16
	SystemErrors      []string
	GeneralErrorsRaw  uint16
	GeneralErrors     []string
	UPSStatusRaw      uint16
	UPSStatus         []string
	ChangeCauseRaw    uint16
	ChangeCause       string
}

// OutletStatus carries the main outlet group's command and status registers.
type OutletStatus struct {
	UPSCmd    uint16
	OutletCmd uint16
	StatusRaw uint16
	Status    []string
}

// Environment carries readings from attached temperature/humidity probes.
type Environment struct {
	Temperature2 float64
	HumidityPct  float64
	Temperature3 float64
	HumidityPct2 float64
}

// newDeviceState returns an empty state record.
func newDeviceState() *DeviceState {
	return &DeviceState{LastSeen: make(map[uint8]time.Time)}
}

// Seen reports whether the given message id has decoded at least once.
func (s *DeviceState) Seen(msgID uint8) bool {
	_, ok := s.LastSeen[msgID]
	return ok
}

// clone returns a deep copy safe to hand to other goroutines.
func (s *DeviceState) clone() DeviceState {
	c := *s
	c.Identity.SeriesRaw = append([]byte(nil), s.Identity.SeriesRaw...)
	c.Identity.HeaderRaw = append([]byte(nil), s.Identity.HeaderRaw...)
	c.Identity.SerialRaw = append([]byte(nil), s.Identity.SerialRaw...)
	c.Identity.ChallengeStatus = append([]byte(nil), s.Identity.ChallengeStatus...)
	c.Identity.password1 = append([]byte(nil), s.Identity.password1...)
	c.Identity.password2 = append([]byte(nil), s.Identity.password2...)
	c.Config.ReplaceTestInterval = append([]string(nil), s.Config.ReplaceTestInterval...)
	c.Config.LoadShedConfig = append([]string(nil), s.Config.LoadShedConfig...)
	c.Battery.ReplaceTestStatus = append([]string(nil), s.Battery.ReplaceTestStatus...)
	c.Battery.CalibrationStatus = append([]string(nil), s.Battery.CalibrationStatus...)
	c.Battery.LifetimeStatus = append([]string(nil), s.Battery.LifetimeStatus...)
	c.Battery.Errors = append([]string(nil), s.Battery.Errors...)
	c.Power.UIStatus = append([]string(nil), s.Power.UIStatus...)
	c.Power.InputStatus = append([]string(nil), s.Power.InputStatus...)
	c.Power.SystemErrors = append([]string(nil), s.Power.SystemErrors...)
	c.Power.GeneralErrors = append([]string(nil), s.Power.GeneralErrors...)
	c.Power.UPSStatus = append([]string(nil), s.Power.UPSStatus...)
	c.Outlet.Status = append([]string(nil), s.Outlet.Status...)
	c.LastSeen = make(map[uint8]time.Time, len(s.LastSeen))
	for k, v := range s.LastSeen {
		c.LastSeen[k] = v
	}
	return c
}
