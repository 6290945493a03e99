// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridworks-io/microlink/pkg/microlink"
	"github.com/spf13/cobra"
)

var monitorShowAll bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream decoded messages and state transitions",
	Long: `Continuously poll the device and print every decoded message as it
arrives, along with connection state transitions.

The engine handles the handshake and keep-alive cadence automatically; this
command just renders what the device discloses.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Print checksum failures as well as valid messages")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := openEngine()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer engine.Stop()

	fmt.Printf("Microlink - Live Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			st := engine.Snapshot()
			fmt.Println()
			fmt.Print(microlink.FormatSnapshot(&st))
			fmt.Println()
			fmt.Print(statsString(engine))
			return nil

		case e := <-engine.Events():
			switch e.Kind {
			case microlink.EventStateChange:
				fmt.Printf("--- connection state: %s ---\n", e.State)

			case microlink.EventMessage:
				if !e.Valid && !monitorShowAll {
					continue
				}
				fmt.Print(microlink.FormatMessage(e.Msg))
			}
		}
	}
}

func statsString(engine *microlink.Comm) string {
	stats := engine.Stats()
	return stats.String()
}
