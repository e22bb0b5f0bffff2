package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/store"
	"github.com/muurk/castscan/internal/ui"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenSelected  Screen = "selected"
)

// selectedKeyMap defines key bindings for the selected-device screen
type selectedKeyMap struct {
	Discover key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k selectedKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Discover, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k selectedKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Discover, k.Quit}}
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	DiscoveryModel DiscoveryModel

	// SelectedDevice is set once the user picks a device
	SelectedDevice *discovery.Device

	// updates streams known-devices snapshots from the store
	updates <-chan []*discovery.Device

	Width  int
	Height int

	Help         help.Model
	SelectedKeys selectedKeyMap
}

// NewAppModel creates the wizard model. updates may be nil when the caller
// does not want live snapshot updates.
func NewAppModel(st *store.Store, timeout time.Duration, updates <-chan []*discovery.Device) AppModel {
	width, height := ui.GetTerminalSize()

	m := AppModel{
		CurrentScreen:  ScreenDiscovery,
		DiscoveryModel: NewDiscoveryModel(st, timeout),
		updates:        updates,
		Width:          width,
		Height:         height,
		Help:           help.New(),
		SelectedKeys: selectedKeyMap{
			Discover: key.NewBinding(
				key.WithKeys("d", "esc"),
				key.WithHelp("d", "back to devices"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "enter"),
				key.WithHelp("q", "quit"),
			),
		},
	}
	m.DiscoveryModel.Width = width
	m.DiscoveryModel.Height = height
	return m
}

// Run starts the wizard full-screen and blocks until the user quits. It
// returns the selected device, or nil when the user quit without choosing.
func Run(st *store.Store, timeout time.Duration) (*discovery.Device, error) {
	updates, cancel := st.SavedDevices().Subscribe()
	defer cancel()

	final, err := tea.NewProgram(NewAppModel(st, timeout, updates), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}
	if m, ok := final.(AppModel); ok {
		return m.SelectedDevice, nil
	}
	return nil, nil
}

// waitForDevices blocks for the next store snapshot
func waitForDevices(updates <-chan []*discovery.Device) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		devices, ok := <-updates
		return devicesUpdatedMsg{devices: devices, ok: ok}
	}
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.DiscoveryModel.Init(), waitForDevices(m.updates))
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		updated, cmd := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case devicesUpdatedMsg:
		if !msg.ok {
			return m, nil
		}
		updated, _ := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		return m, waitForDevices(m.updates)
	}

	switch m.CurrentScreen {
	case ScreenSelected:
		return m.updateSelectedScreen(msg)
	default:
		return m.updateDiscoveryScreen(msg)
	}
}

func (m AppModel) updateDiscoveryScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	d := m.DiscoveryModel
	if keyMsg, ok := msg.(tea.KeyMsg); ok && d.Mode == inputNone && d.DeviceList.FilterState() != list.Filtering {
		if key.Matches(keyMsg, d.Keys.Quit) {
			return m, tea.Quit
		}
	}

	updated, cmd := m.DiscoveryModel.Update(msg)
	m.DiscoveryModel = updated.(DiscoveryModel)

	if m.DiscoveryModel.Selected {
		m.DiscoveryModel.Selected = false
		if device := m.DiscoveryModel.selectedDevice(); device != nil {
			m.SelectedDevice = device
			m.CurrentScreen = ScreenSelected
		}
	}

	return m, cmd
}

func (m AppModel) updateSelectedScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		// Keep scans and spinners flowing in the background
		updated, cmd := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.SelectedKeys.Discover):
		m.CurrentScreen = ScreenDiscovery
	case key.Matches(keyMsg, m.SelectedKeys.Quit):
		return m, tea.Quit
	}
	return m, nil
}

// View renders the current screen
func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenSelected:
		return RenderApplicationContainer(m.buildSelectedContent(), m.Help.View(m.SelectedKeys), m.Width, m.Height)
	default:
		return m.DiscoveryModel.View()
	}
}

func (m AppModel) buildSelectedContent() string {
	var b strings.Builder

	b.WriteString(RenderTitle("✓ Device Selected"))
	b.WriteString("\n\n")

	d := m.SelectedDevice
	if d == nil {
		return b.String()
	}

	b.WriteString(SuccessBoxStyle.Render(d.Name()))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  Address:  %s\n", hostPort(d)))
	b.WriteString(fmt.Sprintf("  Kind:     %s\n", d.Kind))
	if d.ControlLocation != "" {
		b.WriteString(fmt.Sprintf("  Location: %s\n", d.ControlLocation))
	}
	b.WriteString("\n")

	b.WriteString("The selection is saved. Next steps:\n\n")
	b.WriteString(MenuItemStyle.Render("castscan play <url>   cast media to this device"))
	b.WriteString("\n")
	b.WriteString(MenuItemStyle.Render("castscan pause        toggle pause"))
	b.WriteString("\n")
	b.WriteString(MenuItemStyle.Render("castscan stop         stop playback"))
	b.WriteString("\n")

	return b.String()
}
