package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one labelled value shown in a header or result box
type Param struct {
	Key   string
	Value string
}

// Header represents a command header with title, command and parameters.
// Printed at the start of longer-running commands such as scan.
type Header struct {
	Title   string  // e.g., "DEVICE SCAN"
	Command string  // e.g., "castscan scan --mdns"
	Params  []Param // e.g., {"Timeout", "5s"}
	Width   int
}

// NewHeader creates a new header sized to the terminal
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) == 0 {
		return HeaderBorderStyle(width).Render(topSection)
	}

	dividerWidth := width - 6
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := RenderHorizontalDivider(dividerWidth, "─")

	content := lipgloss.JoinVertical(lipgloss.Left, topSection, divider, renderParams(h.Params))
	return HeaderBorderStyle(width).Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

// renderParams aligns keys to the longest key
func renderParams(params []Param) string {
	keyWidth := 0
	for _, p := range params {
		keyWidth = max(keyWidth, lipgloss.Width(p.Key)+1)
	}

	lines := make([]string, 0, len(params))
	for _, p := range params {
		key := HeaderParamKeyStyle.Render(p.Key + ":" + strings.Repeat(" ", keyWidth-lipgloss.Width(p.Key)-1))
		lines = append(lines, key+" "+HeaderParamValueStyle.Render(p.Value))
	}
	return strings.Join(lines, "\n")
}
