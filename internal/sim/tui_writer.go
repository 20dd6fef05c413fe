package sim

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"cop-sim/internal/config"
	"cop-sim/internal/cop"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type unitsMsg struct{ units []cop.Unit }

type spectrumMsg struct{ readings []cop.SpectrumActivity }

// incidentMsg carries an incident log line and the incident itself.
type incidentMsg struct {
	line string
	inc  cop.Incident
}

type commandMsg struct{ cmd cop.Command }

// apiStatusMsg reports whether the HTTP API is listening.
type apiStatusMsg struct{ listening bool }

type setCommanderMsg struct{ c Commander }

// commandResultMsg reports the outcome of a dialog command.
type commandResultMsg struct{ err error }

const (
	maxLogLines         = 1000
	maxSectionHeightPct = 0.2
	mapIncidents        = 20
)

type dialogKind int

const (
	dialogNone dialogKind = iota
	dialogSend
	dialogAck
)

// TUIWriter renders the feed using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. Quitting
// the TUI interrupts the process.
func NewTUIWriter(cfg *config.SimulationConfig) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteUnits implements FeedWriter.
func (w *TUIWriter) WriteUnits(units []cop.Unit) error {
	w.program.Send(unitsMsg{units: units})
	return nil
}

// WriteSpectrum implements FeedWriter.
func (w *TUIWriter) WriteSpectrum(readings []cop.SpectrumActivity) error {
	w.program.Send(spectrumMsg{readings: readings})
	return nil
}

// WriteIncident implements FeedWriter.
func (w *TUIWriter) WriteIncident(inc cop.Incident) error {
	w.program.Send(incidentMsg{line: incidentLine(inc), inc: inc})
	return nil
}

// WriteCommand implements FeedWriter.
func (w *TUIWriter) WriteCommand(cmd cop.Command) error {
	w.program.Send(commandMsg{cmd: cmd})
	return nil
}

// SetAPIStatus updates the API indicator.
func (w *TUIWriter) SetAPIStatus(listening bool) {
	w.program.Send(apiStatusMsg{listening: listening})
}

// SetCommander enables the send and acknowledge dialogs.
func (w *TUIWriter) SetCommander(c Commander) {
	w.program.Send(setCommanderMsg{c: c})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg        *config.SimulationConfig
	header     string
	settings   table.Model
	units      table.Model
	unitRows   []cop.Unit
	spectrum   []cop.SpectrumActivity
	vp         viewport.Model // incidents
	cmdVP      viewport.Model
	logs       []string
	incidents  []cop.Incident
	commands   map[string]cop.Command
	cmdOrder   []string
	commander  Commander
	dialog     dialogKind
	input      textinput.Model
	dialogErr  string
	notice     string
	api        bool
	wrap       bool
	autoscroll bool
	help       bool
	showMap    bool
	mapZoom    float64
	width      int
	height     int
}

func newTUIModel(cfg *config.SimulationConfig) tuiModel {
	if cfg == nil {
		cfg = config.Default()
	}
	cols := []table.Column{
		{Title: "Setting", Width: 18},
		{Title: "Value", Width: 24},
	}
	a := cfg.Area
	rows := []table.Row{
		{"Area", fmt.Sprintf("%.3f,%.3f +%.2f°", a.MinLat, a.MinLon, a.SpanDeg)},
		{"Intervals", fmt.Sprintf("%s / %s / %s", cfg.Intervals.UnitDrift, cfg.Intervals.SpectrumRefresh, cfg.Intervals.IncidentSpawn)},
		{"API", cfg.Server.Addr},
	}
	settings := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))

	unitCols := []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Name", Width: 8},
		{Title: "Type", Width: 9},
		{Title: "Lat", Width: 10},
		{Title: "Lon", Width: 10},
		{Title: "Updated", Width: 10},
	}
	units := table.New(table.WithColumns(unitCols), table.WithHeight(cop.SeedUnitCount+1))

	m := tuiModel{
		cfg:        cfg,
		settings:   settings,
		units:      units,
		vp:         viewport.New(0, 0),
		cmdVP:      viewport.New(0, 0),
		commands:   make(map[string]cop.Command),
		autoscroll: true,
		mapZoom:    1,
	}
	m.header = m.renderHeader()
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.cmdVP.Width = msg.Width
		m.header = m.renderHeader()
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshCommands()
	case tea.KeyMsg:
		if m.dialog != dialogNone {
			return m.updateDialog(msg)
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		if m.showMap {
			switch msg.String() {
			case "+", "=":
				m.mapZoom *= 1.25
				return m, nil
			case "-":
				m.mapZoom /= 1.25
				if m.mapZoom < 0.25 {
					m.mapZoom = 0.25
				}
				return m, nil
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.cmdVP.GotoBottom()
			}
			return m, nil
		case "c":
			return m.openDialog(dialogSend, "unit-1,Hold position", "unitId,content"), nil
		case "a":
			val := ""
			if id := m.lastPending(); id != "" {
				val = id + ","
			}
			return m.openDialog(dialogAck, val, "commandId,response"), nil
		case "m":
			m.showMap = !m.showMap
			return m, nil
		case "h", "?":
			m.help = !m.help
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
		return m, nil
	case unitsMsg:
		m.unitRows = msg.units
		rows := make([]table.Row, 0, len(msg.units))
		for _, u := range msg.units {
			rows = append(rows, table.Row{
				u.ID, u.Name, string(u.Type),
				fmt.Sprintf("%.5f", u.Latitude), fmt.Sprintf("%.5f", u.Longitude),
				u.LastUpdated.Format(time.TimeOnly),
			})
		}
		m.units.SetRows(rows)
	case spectrumMsg:
		m.spectrum = msg.readings
	case incidentMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.incidents = append(m.incidents, msg.inc)
		if len(m.incidents) > mapIncidents {
			m.incidents = m.incidents[len(m.incidents)-mapIncidents:]
		}
		m.refreshViewport()
	case commandMsg:
		if _, ok := m.commands[msg.cmd.ID]; !ok {
			m.cmdOrder = append(m.cmdOrder, msg.cmd.ID)
		}
		m.commands[msg.cmd.ID] = msg.cmd
		m.updateViewportHeight()
		m.refreshCommands()
	case apiStatusMsg:
		m.api = msg.listening
	case setCommanderMsg:
		m.commander = msg.c
	case commandResultMsg:
		m.notice = ""
		if msg.err != nil {
			m.notice = msg.err.Error()
		}
	}
	return m, nil
}

func (m tuiModel) openDialog(kind dialogKind, value, placeholder string) tuiModel {
	m.input = textinput.New()
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	m.dialog = kind
	m.dialogErr = ""
	return m
}

func (m tuiModel) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		cmd, err := m.submitDialog(m.input.Value())
		if err != nil {
			m.dialogErr = err.Error()
			return m, nil
		}
		m.dialog = dialogNone
		return m, cmd
	case tea.KeyEsc:
		m.dialog = dialogNone
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// submitDialog validates the dialog input and returns a command that
// applies it off the update loop, since the commander publishes back to the
// program.
func (m tuiModel) submitDialog(val string) (tea.Cmd, error) {
	if m.commander == nil {
		return nil, fmt.Errorf("commands unavailable")
	}
	first, rest, _ := strings.Cut(val, ",")
	first = strings.TrimSpace(first)
	rest = strings.TrimSpace(rest)
	c := m.commander
	switch m.dialog {
	case dialogSend:
		if first == "" || rest == "" {
			return nil, fmt.Errorf("expected unitId,content")
		}
		return func() tea.Msg {
			c.SendCommand(first, rest)
			return commandResultMsg{}
		}, nil
	case dialogAck:
		id, err := m.resolveCommand(first)
		if err != nil {
			return nil, err
		}
		return func() tea.Msg {
			_, err := c.AcknowledgeCommand(id, rest)
			if err != nil {
				err = fmt.Errorf("ack %s: %w", id, err)
			}
			return commandResultMsg{err: err}
		}, nil
	}
	return nil, nil
}

// resolveCommand expands a unique id prefix of a known command.
func (m tuiModel) resolveCommand(prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("expected commandId,response")
	}
	if _, ok := m.commands[prefix]; ok {
		return prefix, nil
	}
	var match string
	for id := range m.commands {
		if strings.HasPrefix(id, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous id %q", prefix)
			}
			match = id
		}
	}
	if match == "" {
		// unknown to the TUI, let the store decide
		return prefix, nil
	}
	return match, nil
}

func (m tuiModel) lastPending() string {
	for i := len(m.cmdOrder) - 1; i >= 0; i-- {
		if c := m.commands[m.cmdOrder[i]]; !c.Acknowledged {
			return c.ID
		}
	}
	return ""
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m *tuiModel) updateViewportHeight() {
	cmdLines := len(m.cmdOrder)
	if cmdLines == 0 {
		cmdLines = 1
	}
	if limit := m.maxSectionLines(); cmdLines > limit {
		cmdLines = limit
	}
	m.cmdVP.Height = cmdLines

	fixed := lipgloss.Height(m.header) + lipgloss.Height(m.units.View()) +
		lipgloss.Height(m.renderSpectrum()) + lipgloss.Height(m.renderBottom())
	// dividers, section titles and the dialog line
	h := m.height - fixed - m.cmdVP.Height - 8
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
		m.cmdVP.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		lines = make([]string, len(m.logs))
		for i, l := range m.logs {
			lines[i] = wordwrap.String(l, m.vp.Width)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshCommands() {
	content := "none"
	if len(m.cmdOrder) > 0 {
		lines := make([]string, 0, len(m.cmdOrder))
		for _, id := range m.cmdOrder {
			lines = append(lines, commandLine(m.commands[id]))
		}
		content = strings.Join(lines, "\n")
	}
	m.cmdVP.SetContent(content)
	if m.autoscroll {
		m.cmdVP.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return renderHelp()
	}
	divider := strings.Repeat("─", m.width)
	if m.showMap {
		return strings.Join([]string{m.header, divider, m.renderMap(), divider, m.renderBottom()}, "\n")
	}
	sections := []string{
		m.header,
		divider,
		m.units.View(),
		divider,
		m.renderSpectrum(),
		divider,
		"Incidents:",
		m.vp.View(),
		divider,
		"Commands:",
		m.cmdVP.View(),
	}
	if m.dialog != dialogNone {
		sections = append(sections, divider, m.renderDialog())
	}
	sections = append(sections, divider, m.renderBottom())
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Render("COMMON OPERATIONAL PICTURE")
	return lipgloss.JoinVertical(lipgloss.Left, title, m.settings.View())
}

func (m tuiModel) renderSpectrum() string {
	if len(m.spectrum) == 0 {
		return "Spectrum: waiting for refresh"
	}
	readings := append([]cop.SpectrumActivity(nil), m.spectrum...)
	sort.Slice(readings, func(i, j int) bool { return readings[i].Band < readings[j].Band })
	var b strings.Builder
	b.WriteString("Spectrum:\n")
	for _, a := range readings {
		color := lipgloss.Color("10")
		switch {
		case a.Intensity >= 0.75:
			color = lipgloss.Color("9")
		case a.Intensity >= 0.4:
			color = lipgloss.Color("11")
		}
		bar := lipgloss.NewStyle().Foreground(color).Render(intensityBar(a.Intensity, 20))
		fmt.Fprintf(&b, " %-3s %s %.2f\n", a.Band, bar, a.Intensity)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m tuiModel) renderDialog() string {
	title := "Send Command (unitId,content)"
	if m.dialog == dialogAck {
		title = "Acknowledge Command (commandId,response)"
	}
	line := fmt.Sprintf("%s - Enter to apply, Esc to cancel: %s", title, m.input.View())
	if m.dialogErr != "" {
		line += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("  " + m.dialogErr)
	}
	return line
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	pending := 0
	for _, c := range m.commands {
		if !c.Acknowledged {
			pending++
		}
	}
	stats := fmt.Sprintf("%sSTATS%s %sunits=%d%s %sincidents=%d%s %scommands=%d%s %spending=%d%s",
		colorBlue, colorReset,
		colorGreen, len(m.unitRows), colorReset,
		colorRed, len(m.logs), colorReset,
		colorMagenta, len(m.cmdOrder), colorReset,
		colorYellow, pending, colorReset)
	line := fmt.Sprintf("%s | API %s | Wrap %s | Scroll %s | Map %s | h help",
		stats, indicator(m.api), indicator(m.wrap), indicator(m.autoscroll), indicator(m.showMap))
	if m.notice != "" {
		line += lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("  " + m.notice)
	}
	return line
}

func renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" c  send command (unitId,content)",
		" a  acknowledge command (commandId,response)",
		" w  toggle wrap for incident log",
		" s  toggle auto-scroll",
		" m  toggle map view",
		" +  zoom in map",
		" -  zoom out map",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}

func unitGlyph(t cop.UnitType) string {
	switch t {
	case cop.UnitMilitary:
		return "M"
	case cop.UnitPolice:
		return "P"
	case cop.UnitSensor:
		return "S"
	default:
		return "?"
	}
}

// renderMap plots units and recent incidents over the operating area.
func (m tuiModel) renderMap() string {
	width := m.width
	mapHeight := m.height - lipgloss.Height(m.header) - lipgloss.Height(m.renderBottom()) - 5
	if width < 2 || mapHeight < 1 {
		return "No room for map"
	}
	a := m.cfg.Area
	span := a.SpanDeg / m.mapZoom
	centerLat := a.MinLat + a.SpanDeg/2
	centerLon := a.MinLon + a.SpanDeg/2
	minLat, maxLat := centerLat-span/2, centerLat+span/2
	minLon, maxLon := centerLon-span/2, centerLon+span/2

	grid := make([][]string, mapHeight)
	for i := range grid {
		row := make([]string, width)
		for j := range row {
			row[j] = "."
		}
		grid[i] = row
	}
	plot := func(lat, lon float64, glyph string) {
		x := int(math.Round((lon - minLon) / (maxLon - minLon) * float64(width-1)))
		y := int(math.Round((maxLat - lat) / (maxLat - minLat) * float64(mapHeight-1)))
		if y >= 0 && y < mapHeight && x >= 0 && x < width {
			grid[y][x] = glyph
		}
	}
	for _, inc := range m.incidents {
		plot(inc.Latitude, inc.Longitude, severityColor(inc.Severity)+"!"+colorReset)
	}
	for _, u := range m.unitRows {
		plot(u.Latitude, u.Longitude, unitTypeColor(u.Type)+unitGlyph(u.Type)+colorReset)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "lat %.4f..%.4f lon %.4f..%.4f N↑ zoom x%.2f\n", maxLat, minLat, minLon, maxLon, m.mapZoom)
	for _, row := range grid {
		b.WriteString(strings.Join(row, ""))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%sM%s=military %sP%s=police %sS%s=sensor %s!%s=high %s!%s=medium %s!%s=low",
		unitTypeColor(cop.UnitMilitary), colorReset, unitTypeColor(cop.UnitPolice), colorReset,
		unitTypeColor(cop.UnitSensor), colorReset,
		colorRed, colorReset, colorYellow, colorReset, colorGreen, colorReset)
	return b.String()
}
