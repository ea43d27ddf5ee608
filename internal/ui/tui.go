package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer provides rich terminal UI using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newIndexModel(tracker, cfg.VaultDir, GetStyles(cfg.NoColor))

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(s Snapshot) {
	r.tracker.Update(s)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(snapshotMsg(s))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(completeMsg(s))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()

	if program == nil {
		return nil
	}
	program.Quit()

	// An unresponsive TUI must not hang shutdown.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

// Message types for bubbletea
type snapshotMsg Snapshot
type completeMsg Summary
type tickMsg time.Time

// indexModel is the bubbletea model for indexing progress.
type indexModel struct {
	tracker  *ProgressTracker
	width    int
	quitting bool
	complete bool
	summary  Summary
	spinner  spinner.Model
	bar      progress.Model
	styles   Styles
	vaultDir string
}

func newIndexModel(tracker *ProgressTracker, vaultDir string, styles Styles) *indexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Success

	bar := progress.New(
		progress.WithSolidFill(ColorAccent),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &indexModel{
		tracker:  tracker,
		width:    80,
		spinner:  s,
		bar:      bar,
		styles:   styles,
		vaultDir: vaultDir,
	}
}

// Init implements tea.Model.
func (m *indexModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)

	case snapshotMsg:
		// The tracker already holds it; the next View picks it up.
		return m, nil

	case completeMsg:
		m.complete = true
		m.summary = Summary(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *indexModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	width := max(m.width-4, 40)
	inner := width - 2 // panel padding
	stats := m.tracker.Stats()

	sections := []string{
		m.renderProgress(stats),
		m.renderCounts(stats),
		m.styles.Border.Render(strings.Repeat("─", inner)),
		m.styles.Chart.Render(m.tracker.Chart(inner-9)) + " " + m.styles.Dim.Render("docs/sec"),
	}
	if len(stats.Active) > 0 {
		sections = append(sections, m.styles.Dim.Render(truncatePath(stats.Active[0], inner)))
	}

	title := "vaultindex"
	if m.vaultDir != "" {
		title += " • " + m.vaultDir
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(strings.Join(sections, "\n")),
		m.styles.Dim.Render("q to quit"),
	)
}

func (m *indexModel) renderProgress(stats ProgressStats) string {
	if stats.Progress.Total == 0 {
		return fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Label.Render("Scanning vault..."))
	}
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", stats.Ratio*100))
	return fmt.Sprintf("%s %s  %s", m.spinner.View(), m.bar.ViewAs(stats.Ratio), pct)
}

func (m *indexModel) renderCounts(stats ProgressStats) string {
	p := stats.Progress
	parts := []string{
		m.styles.Label.Render(fmt.Sprintf("%d / %d documents", stats.Done, p.Total)),
		m.styles.Label.Render(fmt.Sprintf("%d pending", p.Pending)),
	}
	if p.Failed > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("%d failed", p.Failed)))
	}
	if stats.Speed.Avg > 0 {
		parts = append(parts, m.styles.Label.Render(fmt.Sprintf("%.1f/s", stats.Speed.Avg)))
	}
	if stats.ETA > 0 {
		parts = append(parts, m.styles.Label.Render("ETA "+formatDuration(stats.ETA)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

func (m *indexModel) renderComplete() string {
	s := m.summary
	lines := []string{
		m.styles.Success.Render("✓ Indexing complete"),
		"",
		fmt.Sprintf("%s %s", m.styles.Label.Render("Documents:"), m.styles.Active.Render(fmt.Sprint(s.Indexed))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Processed:"), m.styles.Active.Render(fmt.Sprint(s.Completed))),
		fmt.Sprintf("%s  %s", m.styles.Label.Render("Duration:"), m.styles.Active.Render(formatDuration(s.Duration))),
	}
	if len(s.Failures) > 0 {
		lines = append(lines, "", m.styles.Error.Render(fmt.Sprintf("✗ %d failed", len(s.Failures))))
		for _, f := range s.Failures {
			lines = append(lines, m.styles.Dim.Render("  "+f.Key+": "+f.LastError))
		}
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorAccent)).
		Padding(1, 2).
		Width(max(m.width-4, 40))
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		m, s := int(d.Minutes()), int(d.Seconds())%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// truncatePath shortens a slash-separated key to maxLen, keeping the
// file name.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen < 4 {
		return "..."
	}
	i := strings.LastIndex(path, "/")
	name := path[i+1:]
	if len(name)+4 > maxLen {
		return "..." + path[len(path)-maxLen+3:]
	}
	dir := path[:i]
	keep := maxLen - len(name) - 4
	return "..." + dir[len(dir)-keep:] + "/" + name
}

var _ Renderer = (*TUIRenderer)(nil)
