package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/muurk/castscan/internal/discovery"
)

func TestClampWidth(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, MinTerminalWidth},
		{MinTerminalWidth - 1, MinTerminalWidth},
		{80, 80},
		{MaxContentWidth + 50, MaxContentWidth},
	}
	for _, tt := range tests {
		if got := clampWidth(tt.in); got != tt.want {
			t.Errorf("clampWidth(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHeaderRender(t *testing.T) {
	out := NewHeader("Device Scan", "castscan scan",
		Param{Key: "Timeout", Value: "5s"},
		Param{Key: "Strategies", Value: "ssdp, probe"},
	).SetWidth(80).Render()

	for _, want := range []string{"DEVICE SCAN", "castscan scan", "Timeout:", "5s", "ssdp, probe"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Timeout") > strings.Index(out, "Strategies") {
		t.Error("Render() should keep parameter order")
	}
}

func TestResultRender(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Device selected", Param{Key: "Address", Value: "10.0.0.9:8080"}),
			want:   []string{"SUCCESS", "Device selected", "Address:", "10.0.0.9:8080"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Play failed", errors.New("connection refused"), "Is Kodi running?"),
			want:   []string{"FAILED", "Play failed", "Error: connection refused", "Troubleshooting:", "Is Kodi running?"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No devices found").AddDetail("Strategies", "ssdp"),
			want:   []string{"WARNING", "No devices found", "Strategies:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestStepsCountsAndRender(t *testing.T) {
	steps := NewSteps("Strategies").
		Add("ssdp", StepComplete, "2 devices").
		Add("probe", StepFailed, "no subnet").
		Add("mdns", StepSkipped, "")

	complete, failed := steps.Counts()
	if complete != 1 || failed != 1 {
		t.Errorf("Counts() = %d, %d, want 1, 1", complete, failed)
	}

	out := steps.Render()
	for _, want := range []string{"[1/3]", "ssdp", "(2 devices)", "[2/3]", FailureMarker, "[3/3]"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDeviceTable(t *testing.T) {
	tv := discovery.NewDevice("Living Room TV", "10.0.0.5", 49152, discovery.KindMulticast)
	tv.ControlLocation = "http://10.0.0.5:49152/desc.xml"
	kodi := discovery.NewDevice("Kodi (10.0.0.9)", "10.0.0.9", 8080, discovery.KindRemoteControl)

	out := RenderDeviceTable([]*discovery.Device{tv, kodi}, kodi.Clone())
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("RenderDeviceTable() = %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "10.0.0.5:49152") || !strings.Contains(lines[1], "desc.xml") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if strings.HasPrefix(lines[1], "*") {
		t.Errorf("row 1 should not be marked selected: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "*") || !strings.Contains(lines[2], "remote-control") {
		t.Errorf("row 2 = %q, want selected remote-control device", lines[2])
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(70)

	if p.Width() != 70 {
		t.Errorf("Width() = %d, want 70", p.Width())
	}

	p.PrintSuccess("Renamed", Param{Key: "Name", Value: "Den TV"})
	p.PrintDevices(nil, nil)

	out := buf.String()
	if !strings.Contains(out, "Den TV") || !strings.Contains(out, "NAME") {
		t.Errorf("output = %q", out)
	}
}
