package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/teewire/cli/reader"
)

// InspectModel is a Bubble Tea model for inspect views. The body is
// rendered once and scrolled in a viewport, since a buffer can hold
// more records than fit on screen.
type InspectModel struct {
	viewType string
	body     string
	vp       viewport.Model
	ready    bool
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		body:     renderInspect(viewType, data),
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-2, 1) // help line
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.vp.SetContent(m.body)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	content := m.body
	if m.ready {
		content = m.vp.View()
	}
	help := HelpStyle.Render("↑/↓ scroll • q quit")
	return content + "\n" + help
}

func renderInspect(viewType string, data any) string {
	switch viewType {
	case ViewInspectBuffer:
		d, ok := data.(*reader.InspectBufferResponse)
		if !ok {
			return "Invalid data type for " + viewType
		}
		return renderBuffer("Buffer", d)
	case ViewInspectCapture:
		d, ok := data.(*reader.CaptureDetailResponse)
		if !ok {
			return "Invalid data type for " + viewType
		}
		return renderCapture(d)
	case ViewInspectOperation:
		d, ok := data.(*reader.OperationResponse)
		if !ok {
			return "Invalid data type for " + viewType
		}
		return renderOperation(d)
	default:
		return fmt.Sprintf("Unknown view type: %s", viewType)
	}
}

func field(b *strings.Builder, label, value string, style lipgloss.Style) {
	fmt.Fprintf(b, "%s %s\n", LabelStyle.Render(label+":"), style.Render(value))
}

func renderBuffer(title string, d *reader.InspectBufferResponse) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	field(&b, "Source", d.Source, ValueStyle)
	field(&b, "Size", fmt.Sprintf("%d bytes", d.Size), ValueStyle)
	if d.Trailing > 0 {
		field(&b, "Trailing", fmt.Sprintf("%d bytes", d.Trailing), WarningStyle)
	}
	if d.Error != "" {
		field(&b, "Error", d.Error, ErrorStyle)
	}

	b.WriteString("\n")
	for _, r := range d.Records {
		fmt.Fprintf(&b, "  [%d] %s %s\n",
			r.Slot, KindStyle(r.Kind).Render(r.Kind), ValueStyle.Render(recordDetail(r)))
	}

	return BoxStyle.Render(b.String())
}

func recordDetail(r reader.RecordView) string {
	if r.A != nil && r.B != nil {
		return fmt.Sprintf("a=%d b=%d", *r.A, *r.B)
	}
	if r.Data == "" {
		return fmt.Sprintf("%d bytes", r.Length)
	}
	return fmt.Sprintf("%d bytes  %s", r.Length, r.Data)
}

func renderCapture(d *reader.CaptureDetailResponse) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Capture Details"))
	b.WriteString("\n\n")

	field(&b, "ID", d.ID, ValueStyle)
	if d.CallID != "" {
		field(&b, "Call ID", d.CallID, ValueStyle)
	}
	field(&b, "Session", d.Session, ValueStyle)
	field(&b, "Command", fmt.Sprintf("%d", d.Command), ValueStyle)
	field(&b, "Direction", d.Direction, ValueStyle)
	if d.Result != "" {
		field(&b, "Result", d.Result, ResultStyle(d.Result))
	}
	if d.Origin != "" {
		field(&b, "Origin", d.Origin, ValueStyle)
	}
	field(&b, "Captured At", d.Ts.Format("2006-01-02 15:04:05"), ValueStyle)

	out := BoxStyle.Render(b.String())
	if d.Buffer != nil {
		out = lipgloss.JoinVertical(lipgloss.Left, out, renderBuffer("Parameters", d.Buffer))
	}
	return out
}

func renderOperation(d *reader.OperationResponse) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Operation"))
	b.WriteString("\n\n")

	if d.Result != "" {
		field(&b, "Result", d.Result, ResultStyle(d.Result))
	}
	if d.Origin != "" {
		field(&b, "Origin", d.Origin, ValueStyle)
	}
	if d.Encoded > 0 {
		field(&b, "Encoded", fmt.Sprintf("%d bytes", d.Encoded), ValueStyle)
	}

	b.WriteString("\n")
	for _, s := range d.Slots {
		fmt.Fprintf(&b, "  [%d] %s %s\n",
			s.Slot, KindStyle(s.Kind).Render(s.Kind), ValueStyle.Render(slotDetail(s)))
	}

	if len(d.Shared) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Shared Memory"))
		b.WriteString("\n")
		for _, sh := range d.Shared {
			fmt.Fprintf(&b, "  %s %s\n",
				LabelStyle.Render(sh.Name),
				ValueStyle.Render(fmt.Sprintf("%s %d bytes  %s", sh.Flags, sh.Size, sh.Data)))
		}
	}

	return BoxStyle.Render(b.String())
}

func slotDetail(s reader.SlotView) string {
	switch {
	case s.A != nil && s.B != nil:
		return fmt.Sprintf("a=%d b=%d", *s.A, *s.B)
	case s.Shm != "":
		return fmt.Sprintf("shm=%s size=%d", s.Shm, s.Size)
	case s.Kind == "none":
		return ""
	default:
		return fmt.Sprintf("size=%d  %s", s.Size, s.Data)
	}
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	p := tea.NewProgram(NewInspectModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(NewInspectModel(viewType, data).View())
}
