package screens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/clearkeydrm/ckcli/internal/tui/common"
)

// ReportFunc decrypts the configured input and returns its report.
type ReportFunc func(ctx context.Context) (*models.DecryptReport, error)

// ReportState represents the current state of the report screen
type ReportState int

const (
	ReportStateLoading ReportState = iota
	ReportStateReady
	ReportStateError
)

// Report screen messages
type (
	// ReportLoadedMsg is sent when decryption finishes
	ReportLoadedMsg struct {
		Report *models.DecryptReport
	}

	// ReportErrorMsg is sent when decryption fails
	ReportErrorMsg struct {
		Err error
	}
)

// ReportModel is the model for the decrypt report screen
type ReportModel struct {
	run     ReportFunc
	report  *models.DecryptReport
	spinner spinner.Model
	help    help.Model
	keys    common.ListKeyMap

	state  ReportState
	err    error
	width  int
	height int
}

// NewReportModel creates a new report screen model
func NewReportModel(run ReportFunc) ReportModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(common.ColorPrimary)

	return ReportModel{
		run:     run,
		spinner: sp,
		help:    help.New(),
		keys:    common.DefaultListKeyMap(),
		state:   ReportStateLoading,
	}
}

// Init initializes the report model
func (m ReportModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.loadReport(),
	)
}

// Update handles messages for the report screen
func (m ReportModel) Update(msg tea.Msg) (ReportModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return NavigateMsg{Screen: "home"}
			}

		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Refresh):
			if m.state == ReportStateReady || m.state == ReportStateError {
				m.state = ReportStateLoading
				return m, tea.Batch(m.spinner.Tick, m.loadReport())
			}
		}

	case ReportLoadedMsg:
		m.state = ReportStateReady
		m.report = msg.Report
		return m, nil

	case ReportErrorMsg:
		m.state = ReportStateError
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.state == ReportStateLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

// View renders the report screen
func (m ReportModel) View() string {
	var content strings.Builder

	content.WriteString(common.TitleStyle.Render("Decrypt Report"))
	content.WriteString("\n")
	content.WriteString(common.SubtitleStyle.Render("Per-track summary of a CENC decryption"))
	content.WriteString("\n\n")

	switch m.state {
	case ReportStateLoading:
		content.WriteString(fmt.Sprintf("%s Decrypting...", m.spinner.View()))

	case ReportStateError:
		content.WriteString(common.ErrorTextStyle.Render("Error: " + m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString(common.MutedTextStyle.Render("Press 'r' to retry"))

	case ReportStateReady:
		content.WriteString(m.renderReport())
	}

	content.WriteString("\n\n")
	helpText := []string{
		common.FormatHelp("r", "run again"),
		common.FormatHelp("esc", "back"),
	}
	content.WriteString(strings.Join(helpText, "  "))

	style := lipgloss.NewStyle().
		Width(m.width).
		Padding(1, 2)

	return style.Render(content.String())
}

func (m ReportModel) renderReport() string {
	if m.report == nil {
		return common.MutedTextStyle.Render("Nothing to report.")
	}

	boxWidth := m.width - 8
	if boxWidth < 40 {
		boxWidth = 40
	}
	boxStyle := common.BoxStyle.Copy().Width(boxWidth)

	var b strings.Builder
	b.WriteString(boxStyle.Render(m.renderSummary()))

	for _, t := range m.report.Tracks {
		b.WriteString("\n\n")
		b.WriteString(boxStyle.Render(renderTrack(t)))
	}

	return b.String()
}

func (m ReportModel) renderSummary() string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(common.ColorSecondary)
	labelStyle := lipgloss.NewStyle().Foreground(common.ColorMuted).Width(12)
	valueStyle := lipgloss.NewStyle().Foreground(common.ColorForeground)

	b.WriteString(headerStyle.Render("Summary"))
	b.WriteString("\n\n")

	source := m.report.Source
	if source == "" {
		source = "-"
	}

	rows := [][2]string{
		{"Source:", source},
		{"Fragments:", fmt.Sprintf("%d", m.report.Fragments)},
		{"Samples:", fmt.Sprintf("%d", m.report.Samples())},
		{"Encrypted:", formatBytes(m.report.EncryptedBytes())},
		{"Took:", m.report.Duration.Round(time.Millisecond).String()},
	}
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(valueStyle.Render(r[1]))
	}

	if len(m.report.Tracks) == 0 {
		b.WriteString("\n\n")
		b.WriteString(common.WarningTextStyle.Render("No protected tracks"))
	}

	return b.String()
}

func renderTrack(t models.TrackReport) string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(common.ColorSecondary)
	labelStyle := lipgloss.NewStyle().Foreground(common.ColorMuted).Width(12)
	valueStyle := lipgloss.NewStyle().Foreground(common.ColorForeground)

	b.WriteString(headerStyle.Render(fmt.Sprintf("Track %d", t.TrackID)))
	b.WriteString("  ")
	b.WriteString(common.SuccessTextStyle.Render(string(t.Scheme)))
	b.WriteString("\n\n")

	rows := [][2]string{
		{"KID:", t.KID.String()},
		{"Samples:", fmt.Sprintf("%d", t.Samples)},
		{"Subsamples:", fmt.Sprintf("%d", t.Subsamples)},
		{"Clear:", formatBytes(t.ClearBytes)},
		{"Encrypted:", formatBytes(t.EncryptedBytes)},
	}
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(valueStyle.Render(r[1]))
	}

	return b.String()
}

// formatBytes renders n with a binary unit suffix.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func (m ReportModel) loadReport() tea.Cmd {
	return func() tea.Msg {
		if m.run == nil {
			return ReportErrorMsg{Err: errors.New("no input file, start with 'ckcli ui --in <file>'")}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		report, err := m.run(ctx)
		if err != nil {
			return ReportErrorMsg{Err: err}
		}

		return ReportLoadedMsg{Report: report}
	}
}
