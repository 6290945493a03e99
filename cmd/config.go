// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the persistent connection flags. Values from the file
// apply only where the corresponding flag was not given on the command line.
type fileConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	URL         string        `yaml:"url"`
	Username    string        `yaml:"username"`
	NoSSLVerify bool          `yaml:"no_ssl_verify"`
	Timeout     time.Duration `yaml:"timeout"`
}

// applyConfigFile loads --config (if given) and merges it beneath the flags.
func applyConfigFile(cmd *cobra.Command) error {
	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	flags := cmd.Flags()
	if !flags.Changed("port") && fc.Port != "" {
		portName = fc.Port
	}
	if !flags.Changed("baud") && fc.Baud != 0 {
		baudRate = fc.Baud
	}
	if !flags.Changed("url") && fc.URL != "" {
		wsURL = fc.URL
	}
	if !flags.Changed("username") && fc.Username != "" {
		wsUsername = fc.Username
	}
	if !flags.Changed("no-ssl-verify") && fc.NoSSLVerify {
		wsNoSSLVerify = true
	}
	if !flags.Changed("timeout") && fc.Timeout != 0 {
		rcvTimeout = fc.Timeout
	}
	return nil
}
