// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gridworks-io/microlink/pkg/microlink"
	"github.com/spf13/cobra"
)

var setWait time.Duration

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Send a named command to the device",
	Long: `Send a control command to the device.

Commands are only accepted after the engine completes the challenge
handshake, so each invocation connects, waits for command mode, submits
the command, and exits.`,
}

var setOutletCmd = &cobra.Command{
	Use:   "outlet <action>",
	Short: "Control the main outlet group",
	Long: `Control the main outlet group.

Actions: cancel, on, on-delay, off, off-delay, shutdown, reboot

The -delay variants honor the configured power on/off delay counters.
shutdown turns the outlet off and back on when input power returns.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := microlink.ParseOutletAction(args[0])
		if err != nil {
			return err
		}
		return submitFrame(microlink.OutletCommand(action), "outlet "+args[0])
	},
}

var setBatteryTestCmd = &cobra.Command{
	Use:   "battery-test <start|stop>",
	Short: "Start or stop a battery replace test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verb, err := parseStartStop(args[0])
		if err != nil {
			return err
		}
		return submitFrame(microlink.BatteryTestCommand(verb), "battery test "+args[0])
	},
}

var setCalibrationCmd = &cobra.Command{
	Use:   "calibration <start|stop>",
	Short: "Start or stop a runtime calibration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verb, err := parseStartStop(args[0])
		if err != nil {
			return err
		}
		return submitFrame(microlink.RuntimeCalibrationCommand(verb), "calibration "+args[0])
	},
}

var setUICmd = &cobra.Command{
	Use:   "ui <command>",
	Short: "Drive the display and beeper",
	Long: `Drive the device's display and audible alarm.

Commands: short-test, continuous-test, mute-on, mute-off, ack-alarm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verb, err := microlink.ParseUICommand(args[0])
		if err != nil {
			return err
		}
		return submitFrame(microlink.UserInterfaceCommand(verb), "ui "+args[0])
	},
}

var setLoadShedLimitCmd = &cobra.Command{
	Use:   "loadshed-limit <seconds>",
	Short: "Set the load shed runtime limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.ParseFloat(args[0], 64)
		if err != nil || seconds < 0 || seconds > 65535 {
			return fmt.Errorf("invalid runtime limit %q (0-65535 seconds)", args[0])
		}
		return submitFrame(microlink.SetLoadShedRuntimeLimit(seconds), "load shed limit")
	},
}

var setFactoryResetCmd = &cobra.Command{
	Use:   "factory-reset",
	Short: "Reset the device configuration to factory defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitFrame(microlink.FactoryReset(), "factory reset")
	},
}

func init() {
	setCmd.PersistentFlags().DurationVar(&setWait, "wait", 30*time.Second, "How long to wait for command mode")
	setCmd.AddCommand(setOutletCmd)
	setCmd.AddCommand(setBatteryTestCmd)
	setCmd.AddCommand(setCalibrationCmd)
	setCmd.AddCommand(setUICmd)
	setCmd.AddCommand(setLoadShedLimitCmd)
	setCmd.AddCommand(setFactoryResetCmd)
	rootCmd.AddCommand(setCmd)
}

func parseStartStop(s string) (uint16, error) {
	switch s {
	case "start":
		return microlink.TestStart, nil
	case "stop":
		return microlink.TestStop, nil
	default:
		return 0, fmt.Errorf("expected start or stop, got %q", s)
	}
}

// waitForCommandMode blocks until the engine reaches MODE1 or the wait
// expires.
func waitForCommandMode(engine *microlink.Comm, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if engine.State() == microlink.StateMode1 {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("device did not reach command mode within %s (state %s)",
		wait, engine.State())
}

// submitFrame connects, waits for command mode, and submits the frame.
func submitFrame(frame []byte, what string) error {
	engine, conn, connInfo, err := openEngine()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer engine.Stop()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Waiting for command mode...\n")

	if err := waitForCommandMode(engine, setWait); err != nil {
		return err
	}

	if err := engine.Submit(frame); err != nil {
		return fmt.Errorf("command failed: %w", err)
	}

	fmt.Printf("Sent %s\n", what)
	return nil
}
