package ui

import (
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/castscan/internal/discovery"
)

var deviceColumns = []string{"", "NAME", "KIND", "ADDRESS", "LOCATION"}

// RenderDeviceTable renders devices as aligned columns. The row whose
// endpoint matches selected is marked with "*".
func RenderDeviceTable(devices []*discovery.Device, selected *discovery.Device) string {
	rows := make([][]string, 0, len(devices)+1)
	rows = append(rows, deviceColumns)
	for _, d := range devices {
		mark := ""
		if selected != nil && d.SameEndpoint(selected) {
			mark = "*"
		}
		rows = append(rows, []string{mark, d.Name(), d.Kind.String(), net.JoinHostPort(d.Address, strconv.Itoa(d.Port)), d.ControlLocation})
	}

	widths := make([]int, len(deviceColumns))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cell + strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
		}
		line := strings.TrimRight(strings.Join(cells, "  "), " ")
		if r == 0 {
			line = TableHeaderStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// PrintDevices prints the device table
func (p *Printer) PrintDevices(devices []*discovery.Device, selected *discovery.Device) {
	p.Println(RenderDeviceTable(devices, selected))
}
