package screens

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/tui/common"
)

// SelfTestState represents the current state of the self-test screen
type SelfTestState int

const (
	SelfTestStateRunning SelfTestState = iota
	SelfTestStateDone
)

// SelfTestDoneMsg is sent when every known vector has run
type SelfTestDoneMsg struct {
	Results []crypto.VectorResult
}

// SelfTestModel runs the known-answer vectors through the configured cipher
type SelfTestModel struct {
	cipher  crypto.BlockCipher
	backend string
	results []crypto.VectorResult
	spinner spinner.Model
	keys    common.ListKeyMap

	state SelfTestState
	width int
}

// NewSelfTestModel creates a new self-test screen model
func NewSelfTestModel(c crypto.BlockCipher, backend string) SelfTestModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(common.ColorPrimary)

	return SelfTestModel{
		cipher:  c,
		backend: backend,
		spinner: sp,
		keys:    common.DefaultListKeyMap(),
		state:   SelfTestStateRunning,
	}
}

// Init starts the first run
func (m SelfTestModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runVectors())
}

// Update handles messages for the self-test screen
func (m SelfTestModel) Update(msg tea.Msg) (SelfTestModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
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
			if m.state == SelfTestStateDone {
				m.state = SelfTestStateRunning
				m.results = nil
				return m, tea.Batch(m.spinner.Tick, m.runVectors())
			}
		}

	case SelfTestDoneMsg:
		m.state = SelfTestStateDone
		m.results = msg.Results
		return m, nil

	case spinner.TickMsg:
		if m.state == SelfTestStateRunning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

// Passed reports whether a run finished with every vector passing.
func (m SelfTestModel) Passed() bool {
	if m.state != SelfTestStateDone || len(m.results) == 0 {
		return false
	}
	for _, r := range m.results {
		if !r.Passed() {
			return false
		}
	}
	return true
}

// View renders the self-test screen
func (m SelfTestModel) View() string {
	var content strings.Builder

	content.WriteString(common.TitleStyle.Render("Self-test"))
	content.WriteString("\n")
	content.WriteString(common.SubtitleStyle.Render(fmt.Sprintf("NIST SP 800-38A CTR-AES128 on the %s backend", m.backend)))
	content.WriteString("\n\n")

	switch m.state {
	case SelfTestStateRunning:
		content.WriteString(fmt.Sprintf("%s Running vectors...", m.spinner.View()))

	case SelfTestStateDone:
		for _, r := range m.results {
			if r.Passed() {
				content.WriteString(common.SuccessTextStyle.Render("✓ "))
				content.WriteString(r.Name)
			} else {
				content.WriteString(common.ErrorTextStyle.Render("✗ "))
				content.WriteString(r.Name)
				content.WriteString(common.MutedTextStyle.Render(": " + r.Err.Error()))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		if m.Passed() {
			content.WriteString(common.SuccessTextStyle.Render("All vectors passed"))
		} else {
			content.WriteString(common.ErrorTextStyle.Render("Self-test failed"))
		}
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

func (m SelfTestModel) runVectors() tea.Cmd {
	return func() tea.Msg {
		return SelfTestDoneMsg{Results: crypto.SelfTest(m.cipher)}
	}
}
