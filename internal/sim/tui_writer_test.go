package sim

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cop-sim/internal/config"
	"cop-sim/internal/cop"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

type fakeCommander struct {
	sent  chan [2]string
	acked chan [2]string
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{sent: make(chan [2]string, 1), acked: make(chan [2]string, 1)}
}

func (f *fakeCommander) SendCommand(unitID, content string) cop.Command {
	f.sent <- [2]string{unitID, content}
	return cop.Command{}
}

func (f *fakeCommander) AcknowledgeCommand(id, response string) (cop.Command, error) {
	f.acked <- [2]string{id, response}
	return cop.Command{}, nil
}

func update(t *testing.T, m tuiModel, msg tea.Msg) tuiModel {
	t.Helper()
	mi, _ := m.Update(msg)
	return mi.(tuiModel)
}

// updateRun applies msg and runs the returned command synchronously.
func updateRun(t *testing.T, m tuiModel, msg tea.Msg) tuiModel {
	t.Helper()
	mi, cmd := m.Update(msg)
	m = mi.(tuiModel)
	if cmd != nil {
		if res := cmd(); res != nil {
			m = update(t, m, res)
		}
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	ts := time.Unix(0, 0).UTC()
	if err := w.WriteIncident(cop.Incident{ID: "i1", Severity: cop.SeverityHigh, Timestamp: ts}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg, ok := p.msgs[0].(incidentMsg); !ok || !strings.Contains(msg.line, "INCIDENT") {
		t.Fatalf("expected incidentMsg, got %T", p.msgs[0])
	}
	if err := w.WriteUnits([]cop.Unit{{ID: "unit-1"}}); err != nil {
		t.Fatalf("units: %v", err)
	}
	if _, ok := p.msgs[1].(unitsMsg); !ok {
		t.Fatalf("expected unitsMsg, got %T", p.msgs[1])
	}
	w.SetAPIStatus(true)
	if _, ok := p.msgs[2].(apiStatusMsg); !ok {
		t.Fatalf("expected apiStatusMsg, got %T", p.msgs[2])
	}
	w.SetCommander(newFakeCommander())
	if _, ok := p.msgs[3].(setCommanderMsg); !ok {
		t.Fatalf("expected setCommanderMsg, got %T", p.msgs[3])
	}
}

func TestTUIUnitsAndCommandsState(t *testing.T) {
	m := newTUIModel(config.Default())
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 60})
	m = update(t, m, unitsMsg{units: []cop.Unit{{ID: "unit-1", Type: cop.UnitPolice}, {ID: "unit-2", Type: cop.UnitSensor}}})
	if len(m.units.Rows()) != 2 {
		t.Fatalf("expected 2 unit rows, got %d", len(m.units.Rows()))
	}

	cmd := cop.Command{ID: "abc-123", UnitID: "unit-1", Content: "Report"}
	m = update(t, m, commandMsg{cmd: cmd})
	if m.lastPending() != "abc-123" {
		t.Fatalf("expected pending command, got %q", m.lastPending())
	}
	r := "Done"
	cmd.Acknowledged, cmd.Response = true, &r
	m = update(t, m, commandMsg{cmd: cmd})
	if len(m.cmdOrder) != 1 {
		t.Fatalf("ack should update in place, have %d commands", len(m.cmdOrder))
	}
	if m.lastPending() != "" {
		t.Fatalf("no command should be pending")
	}
	if !strings.Contains(m.cmdVP.View(), `ack="Done"`) {
		t.Fatalf("commands view not refreshed: %s", m.cmdVP.View())
	}
}

func TestTUISendDialog(t *testing.T) {
	fc := newFakeCommander()
	m := newTUIModel(config.Default())
	m = update(t, m, setCommanderMsg{c: fc})
	m = update(t, m, runes("c"))
	if m.dialog != dialogSend {
		t.Fatalf("send dialog not opened")
	}
	m.input.SetValue("unit-4, Return to base")
	m = updateRun(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.dialog != dialogNone {
		t.Fatalf("dialog should close, err=%q", m.dialogErr)
	}
	select {
	case got := <-fc.sent:
		if got != [2]string{"unit-4", "Return to base"} {
			t.Fatalf("sent %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("command not sent")
	}
}

func TestTUIAckDialogResolvesPrefix(t *testing.T) {
	fc := newFakeCommander()
	m := newTUIModel(config.Default())
	m = update(t, m, setCommanderMsg{c: fc})
	m = update(t, m, commandMsg{cmd: cop.Command{ID: "5f0c2d1e-aaaa", UnitID: "unit-1"}})
	m = update(t, m, runes("a"))
	if m.dialog != dialogAck || m.input.Value() != "5f0c2d1e-aaaa," {
		t.Fatalf("ack dialog not prefilled: %q", m.input.Value())
	}
	m.input.SetValue("5f0c,Copy")
	m = updateRun(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	select {
	case got := <-fc.acked:
		if got != [2]string{"5f0c2d1e-aaaa", "Copy"} {
			t.Fatalf("acked %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("command not acknowledged")
	}
}

type missingCommander struct{ *fakeCommander }

func (missingCommander) AcknowledgeCommand(id, _ string) (cop.Command, error) {
	return cop.Command{}, cop.ErrCommandNotFound
}

func TestTUIAckUnknownShowsNotice(t *testing.T) {
	m := newTUIModel(config.Default())
	m = update(t, m, setCommanderMsg{c: missingCommander{newFakeCommander()}})
	m = update(t, m, runes("a"))
	m.input.SetValue("nope,ok")
	m = updateRun(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(m.notice, "ack nope") {
		t.Fatalf("expected notice about unknown command, got %q", m.notice)
	}
	if !strings.Contains(m.renderBottom(), "ack nope") {
		t.Fatalf("notice not rendered")
	}
}

func TestTUIDialogWithoutCommander(t *testing.T) {
	m := newTUIModel(config.Default())
	m = update(t, m, runes("c"))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.dialog != dialogSend || m.dialogErr == "" {
		t.Fatalf("expected dialog to stay open with an error")
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.dialog != dialogNone {
		t.Fatalf("esc should close dialog")
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	m = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 80})
	m = update(t, m, incidentMsg{line: "one two three four five six"})
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	m = update(t, m, runes("w"))
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel(config.Default())
	m.vp.Height = 1
	m.vp.Width = 20
	m = update(t, m, incidentMsg{line: "l1"})
	m = update(t, m, incidentMsg{line: "l2"})
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	m = update(t, m, runes("s"))
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	m = update(t, m, incidentMsg{line: "l3"})
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if m.vp.YOffset != 0 {
		t.Fatalf("expected YOffset 0 after scrolling up, got %d", m.vp.YOffset)
	}
	m = update(t, m, runes("s"))
	if !m.autoscroll {
		t.Fatalf("autoscroll should be on")
	}
	if want := len(m.logs) - m.vp.Height; m.vp.YOffset != want {
		t.Fatalf("expected YOffset %d, got %d", want, m.vp.YOffset)
	}
}

func TestMapView(t *testing.T) {
	m := newTUIModel(config.Default())
	m = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 40})
	m = update(t, m, unitsMsg{units: []cop.Unit{{ID: "unit-1", Type: cop.UnitMilitary, Latitude: 39.0, Longitude: -76.9}}})
	m = update(t, m, runes("m"))
	view := m.View()
	if !strings.Contains(view, "M"+colorReset) || !strings.Contains(view, "N↑") {
		t.Fatalf("map view missing unit glyph:\n%s", view)
	}
	m = update(t, m, runes("+"))
	if m.mapZoom <= 1 {
		t.Fatalf("zoom not applied")
	}
}
