// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Gridworks Labs

package microlink

import (
	"fmt"
	"time"
)

// Statistics tracks exchange statistics and error rates for a connection.
// It is plain data; the engine serializes access and hands out copies.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalExchanges uint64
	ValidFrames    uint64
	ChecksumErrors uint64
	Timeouts       uint64
	StateChanges   uint64
	LastMessageID  uint8

	// Rates (calculated)
	ExchangeRate float64 // exchanges/sec
	ErrorRate    float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// CalculateRates calculates exchange and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.ExchangeRate = float64(s.TotalExchanges) / elapsed
		s.ErrorRate = float64(s.ChecksumErrors+s.Timeouts) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	// Calculate percentages
	var validPercent, checksumPercent, timeoutPercent float64
	if s.TotalExchanges > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalExchanges)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalExchanges)
		timeoutPercent = float64(s.Timeouts) * 100.0 / float64(s.TotalExchanges)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Exchanges: %8d\n", s.TotalExchanges)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", s.Timeouts, timeoutPercent)
	}
	if s.StateChanges > 0 {
		result += fmt.Sprintf("State Changes:   %8d\n", s.StateChanges)
	}

	result += fmt.Sprintf("Exchange Rate:   %8.1f exch/sec\n", s.ExchangeRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalExchanges = 0
	s.ValidFrames = 0
	s.ChecksumErrors = 0
	s.Timeouts = 0
	s.StateChanges = 0
	s.LastMessageID = 0
	s.ExchangeRate = 0
	s.ErrorRate = 0
}
