package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the outcome of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet finished
	StepComplete                   // Finished without error
	StepFailed                     // Finished with an error
	StepSkipped                    // Not applicable on this host
)

// Step is a single line in a step list, e.g. one discovery strategy
type Step struct {
	Name    string
	Status  StepStatus
	Message string // e.g., "3 devices, 1.2s"
}

// Steps renders a list of steps with status markers
type Steps struct {
	Label string
	Items []Step
}

// NewSteps creates an empty step list
func NewSteps(label string) *Steps {
	return &Steps{Label: label}
}

// Add appends a step
func (s *Steps) Add(name string, status StepStatus, message string) *Steps {
	s.Items = append(s.Items, Step{Name: name, Status: status, Message: message})
	return s
}

// Counts returns how many steps completed and how many failed
func (s *Steps) Counts() (complete, failed int) {
	for _, step := range s.Items {
		switch step.Status {
		case StepComplete:
			complete++
		case StepFailed:
			failed++
		}
	}
	return complete, failed
}

// Render returns the styled step list
func (s *Steps) Render() string {
	var b strings.Builder

	if s.Label != "" {
		b.WriteString(HeaderTitleStyle.Render(s.Label))
		b.WriteString("\n\n")
	}

	nameWidth := 0
	for _, step := range s.Items {
		nameWidth = max(nameWidth, lipgloss.Width(step.Name))
	}

	lines := make([]string, 0, len(s.Items))
	for i, step := range s.Items {
		lines = append(lines, renderStepLine(i+1, len(s.Items), step, nameWidth))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// String implements fmt.Stringer
func (s *Steps) String() string {
	return s.Render()
}

func renderStepLine(number, total int, step Step, nameWidth int) string {
	var (
		marker string
		style  lipgloss.Style
	)
	switch step.Status {
	case StepComplete:
		marker, style = StepMarkerComplete, StepCompleteStyle
	case StepFailed:
		marker, style = FailureMarker, ErrorTitleStyle
	default:
		marker, style = StepMarkerSkipped, StepPendingStyle
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  [%d/%d] ", number, total))
	b.WriteString(style.Render(step.Name))
	b.WriteString(strings.Repeat(" ", nameWidth-lipgloss.Width(step.Name)+2))
	b.WriteString(style.Render(marker))

	if step.Message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + step.Message + ")"))
	}
	return b.String()
}
