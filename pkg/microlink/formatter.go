// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a decoded message into a human-readable line
func FormatMessage(m *Message) string {
	timestamp := m.Timestamp().Format("15:04:05.000")
	name := FormatMessageID(m.ID())

	status := "ok"
	if !m.Valid() {
		status = "CHECKSUM FAIL"
	}

	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d %s\n", timestamp, name, m.ID(), len(m.Payload()), status)

	if len(m.Payload()) > 0 {
		result += "  Payload: "
		for i, b := range m.Payload() {
			if i > 0 && i%16 == 0 {
				result += "\n           "
			}
			result += fmt.Sprintf("%02X ", b)
		}
		result += "\n"
	}

	return result
}

// FormatMessageID returns the human-readable name for a message id
func FormatMessageID(id uint8) string {
	switch id {
	case MsgHeader:
		return "HEADER"
	case MsgSerialNumber:
		return "SERIAL_NUMBER"
	case MsgModelNameLow:
		return "MODEL_NAME_LOW"
	case MsgModelNameHigh:
		return "MODEL_NAME_HIGH"
	case MsgSKULow:
		return "SKU_LOW"
	case MsgSKUHigh:
		return "SKU_HIGH"
	case MsgFirmwareA:
		return "FIRMWARE_A"
	case MsgFirmwareB:
		return "FIRMWARE_B"
	case MsgBatteryDates:
		return "BATTERY_DATES"
	case MsgBatterySKU:
		return "BATTERY_SKU"
	case MsgDeviceName:
		return "DEVICE_NAME"
	case MsgOperatingConfig:
		return "OPERATING_CONFIG"
	case MsgPowerRatings:
		return "POWER_RATINGS"
	case MsgOutletDelays:
		return "OUTLET_DELAYS"
	case MsgOutletName:
		return "OUTLET_NAME"
	case MsgInterfaceConfig:
		return "INTERFACE_CONFIG"
	case MsgCommMethod:
		return "COMM_METHOD"
	case MsgBatteryLifetime:
		return "BATTERY_LIFETIME"
	case MsgBatteryStatus:
		return "BATTERY_STATUS"
	case MsgRuntimeRemaining:
		return "RUNTIME_REMAINING"
	case MsgOutputMetrics:
		return "OUTPUT_METRICS"
	case MsgInputStatus:
		return "INPUT_STATUS"
	case MsgCommandRegisters:
		return "COMMAND_REGISTERS"
	case MsgOutletStatus:
		return "OUTLET_STATUS"
	case MsgUPSStatus:
		return "UPS_STATUS"
	case MsgEnvironmentProbeA:
		return "ENVIRONMENT_PROBE_A"
	case MsgEnvironmentProbeB:
		return "ENVIRONMENT_PROBE_B"
	case MsgPassword:
		return "PASSWORD"
	case MsgHandshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// FormatSnapshot renders a device state summary for terminal display.
// Sections for which no message has arrived yet are omitted.
func FormatSnapshot(st *DeviceState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Device ===\n")
	if st.Identity.Model != "" {
		fmt.Fprintf(&b, "Model:           %s\n", st.Identity.Model)
	}
	if st.Identity.SKU != "" {
		fmt.Fprintf(&b, "SKU:             %s\n", st.Identity.SKU)
	}
	if st.Identity.SerialNumber != "" {
		fmt.Fprintf(&b, "Serial:          %s\n", st.Identity.SerialNumber)
	}
	if st.Identity.DeviceName != "" {
		fmt.Fprintf(&b, "Name:            %s\n", st.Identity.DeviceName)
	}
	if !st.Identity.ProductionDate.IsZero() {
		fmt.Fprintf(&b, "Manufactured:    %s\n", st.Identity.ProductionDate.Format("2006-01-02"))
	}
	for i, fw := range st.Identity.Firmware {
		if fw != "" {
			fmt.Fprintf(&b, "Firmware %d:      %s\n", i+1, fw)
		}
	}

	if st.Seen(MsgPowerRatings) {
		fmt.Fprintf(&b, "Rating:          %d VA / %d W @ %d V\n",
			st.Config.ApparentPowerRating, st.Config.RealPowerRating, st.Config.VoltageConfig)
	}

	if st.Seen(MsgInputStatus) || st.Seen(MsgOutputMetrics) {
		fmt.Fprintf(&b, "=== Power ===\n")
		fmt.Fprintf(&b, "Input:           %.1f V  %.2f Hz  [%s]\n",
			st.Power.VoltageIn, st.Power.FrequencyIn, strings.Join(st.Power.InputStatus, ", "))
		fmt.Fprintf(&b, "Output:          %.1f V  %.1f A  %.2f Hz\n",
			st.Power.VoltageOut, st.Power.CurrentOut, st.Power.FrequencyOut)
		fmt.Fprintf(&b, "Load:            %.1f%% VA  %.1f%% W\n",
			st.Power.ApparentPowerPct, st.Power.RealPowerPct)
		fmt.Fprintf(&b, "Temperature:     %.1f C\n", st.Power.Temperature)
	}
	if st.Seen(MsgUPSStatus) {
		fmt.Fprintf(&b, "Status:          %s\n", strings.Join(st.Power.UPSStatus, ", "))
		if st.Power.ChangeCause != "" {
			fmt.Fprintf(&b, "Last Change:     %s\n", st.Power.ChangeCause)
		}
	}

	if st.Seen(MsgBatteryStatus) {
		fmt.Fprintf(&b, "=== Battery ===\n")
		fmt.Fprintf(&b, "Charge:          %.1f%%  (%.2f V)\n",
			st.Battery.StateOfCharge, st.Battery.Voltage)
		fmt.Fprintf(&b, "Runtime:         %s\n", FormatRuntime(st.Battery.RuntimeRemaining))
		if len(st.Battery.ReplaceTestStatus) > 0 {
			fmt.Fprintf(&b, "Replace Test:    %s\n", strings.Join(st.Battery.ReplaceTestStatus, ", "))
		}
		if len(st.Battery.CalibrationStatus) > 0 {
			fmt.Fprintf(&b, "Calibration:     %s\n", strings.Join(st.Battery.CalibrationStatus, ", "))
		}
		if len(st.Battery.Errors) > 0 {
			fmt.Fprintf(&b, "Battery Errors:  %s\n", strings.Join(st.Battery.Errors, ", "))
		}
	}
	if st.Seen(MsgBatteryDates) {
		fmt.Fprintf(&b, "Installed:       %s\n", st.Config.BatteryInstallDate.Format("2006-01-02"))
		fmt.Fprintf(&b, "Replace By:      %s\n", st.Config.BatteryReplacementDue.Format("2006-01-02"))
	}

	if st.Seen(MsgOutletStatus) {
		fmt.Fprintf(&b, "=== Outlet ===\n")
		if st.Config.OutletName != "" {
			fmt.Fprintf(&b, "Group:           %s\n", st.Config.OutletName)
		}
		fmt.Fprintf(&b, "State:           %s\n", strings.Join(st.Outlet.Status, ", "))
	}

	if st.Seen(MsgEnvironmentProbeA) {
		fmt.Fprintf(&b, "=== Environment ===\n")
		fmt.Fprintf(&b, "Probe Temp:      %.1f C\n", st.Environment.Temperature2)
		fmt.Fprintf(&b, "Humidity:        %.1f%%\n", st.Environment.HumidityPct)
	}

	if len(st.Power.SystemErrors) > 0 || len(st.Power.GeneralErrors) > 0 {
		fmt.Fprintf(&b, "=== Faults ===\n")
		if len(st.Power.SystemErrors) > 0 {
			fmt.Fprintf(&b, "System:          %s\n", strings.Join(st.Power.SystemErrors, ", "))
		}
		if len(st.Power.GeneralErrors) > 0 {
			fmt.Fprintf(&b, "General:         %s\n", strings.Join(st.Power.GeneralErrors, ", "))
		}
	}

	return b.String()
}

// FormatRuntime converts a runtime in seconds to human-readable duration
func FormatRuntime(seconds int) string {
	if seconds <= 0 {
		return "0 seconds"
	}

	d := time.Duration(seconds) * time.Second
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := seconds % 60

	parts := []string{}
	if hours > 0 {
		if hours == 1 {
			parts = append(parts, "1 hour")
		} else {
			parts = append(parts, fmt.Sprintf("%d hours", hours))
		}
	}
	if minutes > 0 {
		if minutes == 1 {
			parts = append(parts, "1 minute")
		} else {
			parts = append(parts, fmt.Sprintf("%d minutes", minutes))
		}
	}
	if secs > 0 {
		if secs == 1 {
			parts = append(parts, "1 second")
		} else {
			parts = append(parts, fmt.Sprintf("%d seconds", secs))
		}
	}

	if len(parts) == 1 {
		return parts[0]
	} else if len(parts) == 2 {
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + last
}
