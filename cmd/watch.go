// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Gridworks Labs

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gridworks-io/microlink/pkg/microlink"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal dashboard of device state",
	Long: `Watch the device through an interactive terminal UI.

The dashboard shows the connection state, accumulated identity, live
telemetry in a scrollable table, cycle statistics, and an event log of
state transitions and faults.

Supports both serial and WebSocket connections.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for faults, false for informational
}

// TUI model
type watchModel struct {
	engine        *microlink.Comm
	connInfo      string
	fieldTable    table.Model
	eventLog      []eventLogEntry
	maxLogEntries int
	lastState     microlink.CommState
	width         int
	height        int
	quitting      bool
}

// Messages
type watchTickMsg time.Time

func initialWatchModel(engine *microlink.Comm, connInfo string) watchModel {
	columns := []table.Column{
		{Title: "Field", Width: 24},
		{Title: "Value", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(14),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)

	return watchModel{
		engine:        engine,
		connInfo:      connInfo,
		fieldTable:    t,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		lastState:     microlink.StateInit,
		width:         80,
		height:        24,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		watchTickCmd(),
		tea.EnterAltScreen,
	)
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watchTickMsg:
		m.drainEvents()
		m.refreshTable()
		return m, watchTickCmd()
	}

	var cmd tea.Cmd
	m.fieldTable, cmd = m.fieldTable.Update(msg)
	return m, cmd
}

// drainEvents pulls pending engine events into the log.
func (m *watchModel) drainEvents() {
	for {
		select {
		case e := <-m.engine.Events():
			switch e.Kind {
			case microlink.EventStateChange:
				m.addLogEntry(fmt.Sprintf("connection state: %s", e.State), false)
				m.lastState = e.State
			case microlink.EventMessage:
				if !e.Valid {
					m.addLogEntry(fmt.Sprintf("checksum failure on 0x%02X, requested resend", e.MsgID), true)
				}
			}
		default:
			return
		}
	}
}

// refreshTable rebuilds the telemetry table from the latest snapshot.
func (m *watchModel) refreshTable() {
	st := m.engine.Snapshot()

	rows := []table.Row{}
	add := func(field, value string) {
		rows = append(rows, table.Row{field, value})
	}

	if st.Identity.Model != "" {
		add("Model", st.Identity.Model)
	}
	if st.Identity.SerialNumber != "" {
		add("Serial", st.Identity.SerialNumber)
	}
	if st.Identity.SKU != "" {
		add("SKU", st.Identity.SKU)
	}
	if st.Seen(microlink.MsgPowerRatings) {
		add("Rating", fmt.Sprintf("%d VA / %d W @ %d V",
			st.Config.ApparentPowerRating, st.Config.RealPowerRating, st.Config.VoltageConfig))
	}
	if st.Seen(microlink.MsgUPSStatus) {
		add("Status", strings.Join(st.Power.UPSStatus, ", "))
		add("Last Change", st.Power.ChangeCause)
	}
	if st.Seen(microlink.MsgInputStatus) {
		add("Input", fmt.Sprintf("%.1f V  %.2f Hz", st.Power.VoltageIn, st.Power.FrequencyIn))
		add("Input Status", strings.Join(st.Power.InputStatus, ", "))
	}
	if st.Seen(microlink.MsgOutputMetrics) {
		add("Output", fmt.Sprintf("%.1f V  %.1f A  %.2f Hz",
			st.Power.VoltageOut, st.Power.CurrentOut, st.Power.FrequencyOut))
		add("Load", fmt.Sprintf("%.1f%% VA  %.1f%% W",
			st.Power.ApparentPowerPct, st.Power.RealPowerPct))
		add("Temperature", fmt.Sprintf("%.1f C", st.Power.Temperature))
	}
	if st.Seen(microlink.MsgBatteryStatus) {
		add("Battery", fmt.Sprintf("%.1f%%  (%.2f V)", st.Battery.StateOfCharge, st.Battery.Voltage))
		add("Runtime", microlink.FormatRuntime(st.Battery.RuntimeRemaining))
	}
	if st.Seen(microlink.MsgOutletStatus) {
		add("Outlet", strings.Join(st.Outlet.Status, ", "))
	}
	if st.Seen(microlink.MsgEnvironmentProbeA) {
		add("Probe Temp", fmt.Sprintf("%.1f C", st.Environment.Temperature2))
		add("Humidity", fmt.Sprintf("%.1f%%", st.Environment.HumidityPct))
	}
	if len(st.Power.SystemErrors) > 0 {
		add("System Errors", strings.Join(st.Power.SystemErrors, ", "))
	}
	if len(st.Battery.Errors) > 0 {
		add("Battery Errors", strings.Join(st.Battery.Errors, ", "))
	}

	m.fieldTable.SetRows(rows)
}

func (m *watchModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("MICROLINK - DEVICE WATCH"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Connection state
	state := m.engine.State()
	if state.Online() {
		s.WriteString(statsValueStyle.Render(fmt.Sprintf("✓ %s", state)))
	} else {
		s.WriteString(warningStyle.Render(fmt.Sprintf("⏳ %s - waiting for handshake...", state)))
	}
	s.WriteString("\n\n")

	// Telemetry table
	s.WriteString(boxStyle.Render(m.fieldTable.View()))
	s.WriteString("\n\n")

	// Statistics
	stats := m.engine.Stats()
	var validPercent float64
	if stats.TotalExchanges > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalExchanges)
	}
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Exchanges:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalExchanges)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Checksum:"), errorStyle.Render(fmt.Sprintf("%d", stats.ChecksumErrors)),
		statsLabelStyle.Render("Timeouts:"), errorStyle.Render(fmt.Sprintf("%d", stats.Timeouts)),
	)
	s.WriteString(boxStyle.Render(statsContent))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 28 // Reserve space for header, table and stats
	if logHeight < 3 {
		logHeight = 3
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	engine, conn, connInfo, err := openEngine()
	if err != nil {
		return err
	}
	defer conn.Close()
	defer engine.Stop()

	m := initialWatchModel(engine, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}
