// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gridworks-io/microlink/pkg/microlink"
	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write <msg-id> <offset> <hexdata>",
	Short: "Write raw bytes into a device register",
	Long: `Write raw bytes into a register of the given message id.

msg-id and offset accept decimal or 0x-prefixed hex; the data is a hex
string. The frame is checksummed and submitted once the engine reaches
command mode.

Example:
  microlink write -p /dev/ttyUSB0 0x71 8 4122

This is a diagnostic tool: an incorrect write can shut the UPS down or
corrupt its configuration. Prefer the named set commands.`,
	Args: cobra.ExactArgs(3),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().DurationVar(&setWait, "wait", 30*time.Second, "How long to wait for command mode")
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	msgID, err := parseByteArg(args[0])
	if err != nil {
		return fmt.Errorf("invalid msg-id: %w", err)
	}
	offset, err := parseByteArg(args[1])
	if err != nil {
		return fmt.Errorf("invalid offset: %w", err)
	}
	payload, err := hex.DecodeString(strings.TrimPrefix(args[2], "0x"))
	if err != nil {
		return fmt.Errorf("invalid hex data: %w", err)
	}
	if len(payload) == 0 || len(payload) > 16 {
		return fmt.Errorf("data must be 1-16 bytes, got %d", len(payload))
	}

	frame := microlink.EncodeFrame(msgID, offset, payload)
	return submitFrame(frame, fmt.Sprintf("raw write 0x%02X+%d (% X)", msgID, offset, payload))
}

func parseByteArg(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}
