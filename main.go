// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs
//
// Microlink - APC Smart-UPS Protocol Engine
//
// A CLI tool for monitoring and controlling APC Smart-UPS units over
// their undocumented Microlink serial protocol.

package main

import (
	"fmt"
	"os"

	"github.com/gridworks-io/microlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
