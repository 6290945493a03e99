// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gridworks-io/microlink/pkg/microlink"
	"github.com/spf13/cobra"
)

var (
	recordOutput   string
	recordInterval time.Duration
)

// snapshotRecord is one CBOR-encoded sample in the output stream.
type snapshotRecord struct {
	Time     time.Time             `cbor:"1,keyasint"`
	State    string                `cbor:"2,keyasint"`
	Online   bool                  `cbor:"3,keyasint"`
	Snapshot microlink.DeviceState `cbor:"4,keyasint"`
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record device state snapshots to a file",
	Long: `Sample the accumulated device state at a fixed interval and append
each sample to a file as a CBOR-encoded record.

The output is a plain concatenation of CBOR values, suitable for replay
or offline analysis with any CBOR stream decoder.

Supports both serial and WebSocket connections.`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "Output file (required)")
	recordCmd.Flags().DurationVarP(&recordInterval, "interval", "i", 10*time.Second, "Sample interval")
	recordCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := openEngine()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer engine.Stop()

	f, err := os.OpenFile(recordOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	enc := cbor.NewEncoder(f)

	fmt.Printf("Microlink - Snapshot Recorder\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Recording to %s every %s, press Ctrl+C to stop\n\n", recordOutput, recordInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(recordInterval)
	defer ticker.Stop()

	samples := 0
	for {
		select {
		case <-sigCh:
			fmt.Printf("\nRecorded %d samples\n", samples)
			return nil

		case <-ticker.C:
			rec := snapshotRecord{
				Time:     time.Now(),
				State:    engine.State().String(),
				Online:   engine.Online(),
				Snapshot: engine.Snapshot(),
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("failed to encode sample: %w", err)
			}
			samples++
			fmt.Printf("[%s] sample %d (%s)\n",
				rec.Time.Format("15:04:05"), samples, rec.State)
		}
	}
}
