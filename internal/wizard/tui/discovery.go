package tui

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/store"
)

// scanGrace is added to the discover timeout so the engine's own deadline
// fires first.
const scanGrace = 5 * time.Second

// Messages for async operations
type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// devicesUpdatedMsg carries a new known-devices snapshot from the store
type devicesUpdatedMsg struct {
	devices []*discovery.Device
	ok      bool
}

// inputMode is what the text input is currently collecting
type inputMode int

const (
	inputNone inputMode = iota
	inputManual
	inputRename
)

// discoveryKeyMap defines key bindings for the discovery screen
type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rename key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rename, k.Rescan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Rename},
		{k.Rescan, k.Manual, k.Quit},
	}
}

// inputKeyMap defines key bindings while the text input is focused
type inputKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (k inputKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

func (k inputKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Confirm, k.Cancel}}
}

// scanningKeyMap defines key bindings for scanning mode
type scanningKeyMap struct {
	Manual key.Binding
	Quit   key.Binding
}

func (s scanningKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{s.Manual, s.Quit}
}

func (s scanningKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{s.Manual, s.Quit}}
}

// deviceItem wraps a Device for use with bubbles/list
type deviceItem struct {
	device *discovery.Device
}

func (d deviceItem) FilterValue() string {
	return d.device.Name() + " " + d.device.Address
}

func (d deviceItem) Title() string {
	return d.device.Name()
}

func (d deviceItem) Description() string {
	return fmt.Sprintf("%s • %s", hostPort(d.device), d.device.Kind)
}

// deviceDelegate renders devices as cards
type deviceDelegate struct {
	width    int
	selected func() *discovery.Device
}

func (d deviceDelegate) Height() int { return 7 }

func (d deviceDelegate) Spacing() int { return 1 }

func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	di, ok := item.(deviceItem)
	if !ok {
		return
	}

	device := di.device
	focused := index == m.Index()

	name := device.Name()
	if current := d.selected(); current != nil && current.SameEndpoint(device) {
		name += "  (selected)"
	}

	var content strings.Builder
	if focused {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + name))
	} else {
		content.WriteString("  " + name)
	}
	content.WriteString("\n\n")

	content.WriteString(fmt.Sprintf("  Address:  %s\n", hostPort(device)))
	content.WriteString(fmt.Sprintf("  Kind:     %s", device.Kind))
	if device.ControlLocation != "" {
		content.WriteString(fmt.Sprintf("\n  Location: %s", device.ControlLocation))
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 2).
		MarginLeft(2).
		Width(cardWidth(d.width))

	if focused {
		cardStyle = cardStyle.BorderForeground(HighlightColor)
	}

	_, _ = fmt.Fprint(w, cardStyle.Render(content.String()))
}

func hostPort(d *discovery.Device) string {
	return net.JoinHostPort(d.Address, strconv.Itoa(d.Port))
}

// DiscoveryModel is the device discovery and selection screen
type DiscoveryModel struct {
	store   *store.Store
	Timeout time.Duration

	// Discovery state
	Scanning   bool
	DeviceList list.Model
	Selected   bool
	Err        error
	Notice     string

	// Text entry state
	Mode       inputMode
	Input      textinput.Model
	renameAddr string

	// UI state
	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	Help          help.Model
	Keys          discoveryKeyMap
	InputKeys     inputKeyMap
	ScanningKeys  scanningKeyMap
}

// NewDiscoveryModel creates a discovery screen bound to st. timeout is the
// engine's discover timeout and drives the progress bar.
func NewDiscoveryModel(st *store.Store, timeout time.Duration) DiscoveryModel {
	if timeout <= 0 {
		timeout = discovery.DefaultDiscoveryTimeout
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.CharLimit = 64
	input.Width = 40

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	delegate := deviceDelegate{
		width:    MinTerminalWidth,
		selected: func() *discovery.Device { return st.SelectedDevice().Get() },
	}
	deviceList := list.New([]list.Item{}, delegate, 0, 0)
	deviceList.Title = "Known Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.DisableQuitKeybindings()
	deviceList.Styles.Title = TitleStyle

	keys := discoveryKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Rename: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "rename"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual address"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}

	inputKeys := inputKeyMap{
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}

	scanningKeys := scanningKeyMap{
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "manual address"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}

	m := DiscoveryModel{
		store:        st,
		Timeout:      timeout,
		DeviceList:   deviceList,
		Input:        input,
		Spinner:      s,
		ProgressBar:  progressBar,
		Help:         help.New(),
		Keys:         keys,
		InputKeys:    inputKeys,
		ScanningKeys: scanningKeys,
	}
	m.setDevices(st.SavedDevices().Get())
	return m
}

// Init starts a scan immediately
func (m DiscoveryModel) Init() tea.Cmd {
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		m.scanDevices(),
		m.Spinner.Tick,
	)
}

// scanDevices runs discovery through the store
func (m DiscoveryModel) scanDevices() tea.Cmd {
	st, timeout := m.store, m.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout+scanGrace)
		defer cancel()

		devices, err := st.DiscoverDevices(ctx)
		return scanCompleteMsg{devices: devices, err: err}
	}
}

// Update handles messages and updates the model
func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Mode != inputNone {
			return m.updateInputMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetWidth(msg.Width - 4)
		m.DeviceList.SetHeight(msg.Height - 10)
		m.DeviceList.SetDelegate(deviceDelegate{width: msg.Width, selected: m.selectedDevice})

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		if msg.err == nil {
			m.setDevices(msg.devices)
		}

	case devicesUpdatedMsg:
		m.setDevices(msg.devices)

	case spinner.TickMsg:
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	if m.Mode == inputNone && !m.Scanning {
		m.DeviceList, cmd = m.DeviceList.Update(msg)
	}

	return m, cmd
}

func (m DiscoveryModel) selectedDevice() *discovery.Device {
	return m.store.SelectedDevice().Get()
}

// setDevices replaces the list items, keeping the cursor on the same
// address when possible.
func (m *DiscoveryModel) setDevices(devices []*discovery.Device) {
	var focused string
	if d := m.focusedDevice(); d != nil {
		focused = d.Address
	}

	items := make([]list.Item, len(devices))
	index := 0
	for i, d := range devices {
		items[i] = deviceItem{device: d}
		if d.Address == focused {
			index = i
		}
	}
	m.DeviceList.SetItems(items)
	if len(items) > 0 {
		m.DeviceList.Select(index)
	}
}

func (m DiscoveryModel) focusedDevice() *discovery.Device {
	if item, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
		return item.device
	}
	return nil
}

// updateNormalMode handles keyboard input in device list mode
func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.DeviceList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.DeviceList, cmd = m.DeviceList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.Keys.Manual):
		m.Mode = inputManual
		m.Notice = ""
		m.Input.Placeholder = "192.168.1.20:8080"
		m.Input.SetValue("")
		return m, m.Input.Focus()

	case m.Scanning:
		return m, nil

	case key.Matches(msg, m.Keys.Enter):
		d := m.focusedDevice()
		if d == nil {
			return m, nil
		}
		if err := m.store.SetSelectedDevice(d); err != nil {
			m.Err = err
			return m, nil
		}
		m.Selected = true
		return m, nil

	case key.Matches(msg, m.Keys.Rename):
		d := m.focusedDevice()
		if d == nil {
			return m, nil
		}
		m.Mode = inputRename
		m.Notice = ""
		m.renameAddr = d.Address
		m.Input.Placeholder = d.DisplayName
		m.Input.SetValue(d.CustomName)
		m.Input.CursorEnd()
		return m, m.Input.Focus()

	case key.Matches(msg, m.Keys.Rescan):
		m.Err = nil
		m.Notice = ""
		return m, m.startScan()
	}

	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

// updateInputMode handles keyboard input while entering an address or name
func (m DiscoveryModel) updateInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.InputKeys.Cancel):
		m.closeInput()
		return m, nil

	case key.Matches(msg, m.InputKeys.Confirm):
		value := strings.TrimSpace(m.Input.Value())
		var err error
		switch m.Mode {
		case inputManual:
			if value == "" {
				return m, nil
			}
			err = m.addManual(value)
		case inputRename:
			err = m.store.RenameDevice(m.renameAddr, value)
			if err == nil {
				m.Notice = "Renamed " + m.renameAddr
			}
		}
		m.Err = err
		m.closeInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// addManual adds "address" or "address:port" and focuses it
func (m *DiscoveryModel) addManual(value string) error {
	address, port := value, 0
	if host, p, err := net.SplitHostPort(value); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid port: %q", p)
		}
		address, port = host, n
	}

	d, err := m.store.AddManualDevice(address, port)
	if err != nil {
		return err
	}

	m.setDevices(m.store.SavedDevices().Get())
	for i, item := range m.DeviceList.Items() {
		if di, ok := item.(deviceItem); ok && di.device.Address == d.Address {
			m.DeviceList.Select(i)
			break
		}
	}
	m.Notice = "Added " + hostPort(d)
	return nil
}

func (m *DiscoveryModel) closeInput() {
	m.Mode = inputNone
	m.renameAddr = ""
	m.Input.SetValue("")
	m.Input.Blur()
}

// GetSelectedDevice returns the selected device once the user has chosen one
func (m DiscoveryModel) GetSelectedDevice() *discovery.Device {
	if !m.Selected {
		return nil
	}
	return m.selectedDevice()
}

// Progress returns the fraction of the discover timeout elapsed, capped
// below 1 until the scan reports back.
func (m DiscoveryModel) Progress(now time.Time) float64 {
	if !m.Scanning || m.ScanStartTime.IsZero() {
		return 0
	}
	p := float64(now.Sub(m.ScanStartTime)) / float64(m.Timeout)
	return min(p, 0.99)
}

// View renders the discovery screen
func (m DiscoveryModel) View() string {
	width := m.Width
	if width == 0 {
		width = MinTerminalWidth
	}

	var content, helpText string
	switch {
	case m.Mode != inputNone:
		content = m.renderInput()
		helpText = m.Help.View(m.InputKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.ScanningKeys)
	default:
		content = m.renderDeviceResults()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(fmt.Sprintf("%s SEARCHING FOR DEVICES", m.Spinner.View())),
		"",
		SubtitleStyle.Render("Sending SSDP search and probing the local subnet..."),
		"",
		m.ProgressBar.ViewAs(m.Progress(time.Now())),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds of %ds", int(elapsed.Seconds()), int(m.Timeout.Seconds()))),
		"",
	)

	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(RenderError(m.Err.Error()))
		b.WriteString("\n\n")
	}
	if m.Notice != "" {
		b.WriteString("  ")
		b.WriteString(SuccessBoxStyle.Render("✓ " + m.Notice))
		b.WriteString("\n\n")
	}

	if len(m.DeviceList.Items()) == 0 {
		b.WriteString("  ")
		b.WriteString(WarningStyle.Render("⚠ No devices found on your network"))
		b.WriteString("\n\n")
		b.WriteString("  Troubleshooting:\n")
		b.WriteString("    • Check the player is on the same network\n")
		b.WriteString("    • Enable the JSON-RPC web server on the player\n")
		b.WriteString("    • Press m to enter an address, or r to rescan\n")
		return b.String()
	}

	b.WriteString(m.DeviceList.View())
	return b.String()
}

func (m DiscoveryModel) renderInput() string {
	var b strings.Builder

	if m.Mode == inputRename {
		b.WriteString(RenderSubtitle("Enter a name for " + m.renameAddr + " (empty restores the discovered name)"))
		b.WriteString("\n\n  Name: ")
	} else {
		b.WriteString(RenderSubtitle("Enter device address (port defaults to 8080)"))
		b.WriteString("\n\n  Address: ")
	}
	b.WriteString(m.Input.View())
	b.WriteString("\n\n")

	return b.String()
}
