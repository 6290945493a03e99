// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Config and timing
	configPath string
	rcvTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "microlink",
	Short: "Microlink UPS Protocol Engine",
	Long: `Microlink - A CLI tool for monitoring and controlling APC Smart-UPS
units over their undocumented Microlink serial protocol.

Provides commands for live monitoring, a terminal dashboard, named device
commands, raw register writes, and snapshot recording.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the MICROLINK_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyConfigFile(cmd)
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().DurationVar(&rcvTimeout, "timeout", 0, "Receive window override (default 250ms)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
