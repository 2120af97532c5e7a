package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/teewire/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsMetrics:
		content = m.renderMetrics()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderMetrics() string {
	data, ok := m.data.(*reader.MetricsResponse)
	if !ok {
		return "Invalid data type for stats_metrics"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Call Metrics"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s   %s %s\n\n",
		LabelStyle.Width(0).Render("transport:"), ValueStyle.Render(orDash(data.Transport)),
		LabelStyle.Width(0).Render("session:"), ValueStyle.Render(data.Session))

	// Encodes carry data toward the service, decodes carry it back.
	calls := []string{
		counter("Invocations", data.Invocations, titleColor),
		failCounter("Transport Fail", data.TransportFailures),
		counter("Captures", data.CaptureWrites, successColor),
		failCounter("Capture Fail", data.CaptureFailures),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, calls...))
	b.WriteString("\n")

	codec := []string{
		counter("Encodes", data.EncodeCalls, inputColor),
		counter("Encoded Bytes", data.EncodedBytes, inputColor),
		failCounter("Encode Fail", data.EncodeFailures),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, codec...))
	b.WriteString("\n")

	writeBack := []string{
		counter("Decodes", data.DecodeCalls, outputColor),
		counter("Decoded Bytes", data.DecodedBytes, outputColor),
		failCounter("Decode Fail", data.DecodeFailures),
	}
	if data.TruncatedWriteBacks > 0 {
		writeBack = append(writeBack, counter("Truncated", data.TruncatedWriteBacks, warningColor))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, writeBack...))

	if len(data.ServiceErrors) > 0 {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Service Errors"))
		b.WriteString("\n")
		codes := make([]string, 0, len(data.ServiceErrors))
		for code := range data.ServiceErrors {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "%s %s\n",
				LabelStyle.Render(code),
				ResultStyle(code).Render(fmt.Sprintf("%d", data.ServiceErrors[code])))
		}
	}

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// counter renders one boxed metric.
func counter(label string, value int64, color lipgloss.Color) string {
	rendered := CounterValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	return CounterBoxStyle.BorderForeground(color).
		Render(lipgloss.JoinVertical(lipgloss.Center, rendered, CounterLabelStyle.Render(label)))
}

// failCounter is a counter that only turns red when something failed.
func failCounter(label string, value int64) string {
	if value == 0 {
		return counter(label, value, mutedColor)
	}
	return counter(label, value, errorColor)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	p := tea.NewProgram(NewStatsModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
