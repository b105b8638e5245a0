package screens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/clearkeydrm/ckcli/internal/tui/common"
)

// KeysState represents the current state of the keys screen
type KeysState int

const (
	KeysStateLoading KeysState = iota
	KeysStateReady
	KeysStateError
	KeysStateDeleteConfirm
	KeysStateDeleting
)

// Key screen messages
type (
	// KeysLoadedMsg is sent when keys are read from the store
	KeysLoadedMsg struct {
		Keys []models.ContentKey
	}

	// KeysErrorMsg is sent when reading or deleting fails
	KeysErrorMsg struct {
		Err error
	}

	// KeyDeletedMsg is sent when a key is removed
	KeyDeletedMsg struct {
		KID models.KeyID
	}
)

// KeysModel is the model for the keys screen
type KeysModel struct {
	store   keystore.KeyStore
	keys    []models.ContentKey
	table   table.Model
	spinner spinner.Model
	help    help.Model
	keymap  common.ListKeyMap

	state  KeysState
	err    error
	width  int
	height int

	// Filtering
	filterInput  textinput.Model
	filterActive bool
	filterText   string
	filtered     []models.ContentKey

	// Delete confirmation
	deleteInput       textinput.Model
	deleteKey         *models.ContentKey
	deleteConfirmText string // first 4 hex chars of the KID
}

// NewKeysModel creates a new keys screen model
func NewKeysModel(store keystore.KeyStore) KeysModel {
	t := table.New(
		table.WithColumns(keyColumns(0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(common.ColorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(common.ColorSecondary)
	s.Selected = s.Selected.
		Foreground(common.ColorOnPrimary).
		Background(common.ColorPrimary).
		Bold(true)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(common.ColorPrimary)

	fi := textinput.New()
	fi.Placeholder = "Filter by KID..."
	fi.CharLimit = 36
	fi.Width = 40
	fi.PromptStyle = lipgloss.NewStyle().Foreground(common.ColorSecondary)
	fi.TextStyle = lipgloss.NewStyle().Foreground(common.ColorForeground)

	di := textinput.New()
	di.Placeholder = "xxxx"
	di.CharLimit = 4
	di.Width = 10
	di.PromptStyle = lipgloss.NewStyle().Foreground(common.ColorSecondary)
	di.TextStyle = lipgloss.NewStyle().Foreground(common.ColorForeground)

	return KeysModel{
		store:       store,
		table:       t,
		spinner:     sp,
		help:        help.New(),
		keymap:      common.DefaultListKeyMap(),
		state:       KeysStateLoading,
		filterInput: fi,
		deleteInput: di,
	}
}

// Init initializes the keys model
func (m KeysModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.loadKeys(),
	)
}

// Update handles messages for the keys screen
func (m KeysModel) Update(msg tea.Msg) (KeysModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		tableHeight := m.height - 15
		if m.filterActive {
			tableHeight -= 2
		}
		m.table.SetHeight(tableHeight)
		m.table.SetColumns(keyColumns(m.width))
		return m, nil

	case tea.KeyMsg:
		if m.state == KeysStateDeleteConfirm {
			switch msg.String() {
			case "esc":
				m.cancelDelete()
				return m, nil
			case "enter":
				if strings.EqualFold(m.deleteInput.Value(), m.deleteConfirmText) {
					m.state = KeysStateDeleting
					m.deleteInput.Blur()
					kid := m.deleteKey.KID
					m.deleteKey = nil
					m.deleteInput.SetValue("")
					return m, tea.Batch(m.spinner.Tick, m.deleteKeyCmd(kid))
				}
				return m, nil
			default:
				var cmd tea.Cmd
				m.deleteInput, cmd = m.deleteInput.Update(msg)
				return m, cmd
			}
		}

		if m.filterActive {
			switch msg.String() {
			case "esc":
				m.filterActive = false
				m.filterInput.Blur()
				m.table.Focus()
				return m, nil
			case "enter":
				m.filterActive = false
				m.filterInput.Blur()
				m.table.Focus()
				m.filterText = m.filterInput.Value()
				m.applyFilter()
				return m, nil
			default:
				var cmd tea.Cmd
				m.filterInput, cmd = m.filterInput.Update(msg)
				m.filterText = m.filterInput.Value()
				m.applyFilter()
				return m, cmd
			}
		}

		switch {
		case key.Matches(msg, m.keymap.Back):
			if m.filterText != "" {
				m.filterText = ""
				m.filterInput.SetValue("")
				m.applyFilter()
				return m, nil
			}
			return m, func() tea.Msg {
				return NavigateMsg{Screen: "home"}
			}

		case key.Matches(msg, m.keymap.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keymap.Refresh):
			if m.state == KeysStateReady || m.state == KeysStateError {
				m.state = KeysStateLoading
				return m, tea.Batch(m.spinner.Tick, m.loadKeys())
			}

		case key.Matches(msg, m.keymap.Search):
			if m.state == KeysStateReady {
				m.filterActive = true
				m.filterInput.Focus()
				return m, textinput.Blink
			}

		case msg.String() == "d":
			if m.state == KeysStateReady {
				if k := m.SelectedKey(); k != nil {
					m.state = KeysStateDeleteConfirm
					m.deleteKey = k
					m.deleteConfirmText = k.KID.String()[:4]
					m.deleteInput.SetValue("")
					m.deleteInput.Focus()
					return m, textinput.Blink
				}
			}
		}

	case KeysLoadedMsg:
		m.state = KeysStateReady
		m.keys = msg.Keys
		m.applyFilter()
		return m, nil

	case KeysErrorMsg:
		m.state = KeysStateError
		m.err = msg.Err
		return m, nil

	case KeyDeletedMsg:
		m.state = KeysStateLoading
		return m, tea.Batch(m.spinner.Tick, m.loadKeys())

	case spinner.TickMsg:
		if m.state == KeysStateLoading || m.state == KeysStateDeleting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	if m.state == KeysStateReady && !m.filterActive {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *KeysModel) cancelDelete() {
	m.state = KeysStateReady
	m.deleteInput.Blur()
	m.deleteInput.SetValue("")
	m.deleteKey = nil
	m.table.Focus()
}

// applyFilter narrows the key list to KIDs containing the filter text and
// refreshes the table.
func (m *KeysModel) applyFilter() {
	filter := strings.ToLower(strings.ReplaceAll(m.filterText, "-", ""))

	var filtered []models.ContentKey
	for _, k := range m.keys {
		if filter == "" || strings.Contains(k.KID.String(), filter) {
			filtered = append(filtered, k)
		}
	}
	m.filtered = filtered

	rows := make([]table.Row, len(m.filtered))
	for i, k := range m.filtered {
		kcv := k.CheckValueHex()
		if kcv == "" {
			kcv = "-"
		}
		rows[i] = table.Row{k.KID.String(), kcv, k.Masked()}
	}
	m.table.SetRows(rows)
}

// keyColumns sizes the table for the given screen width. A KID is always
// shown in full.
func keyColumns(width int) []table.Column {
	keyWidth := 36
	if avail := width - 32 - 10 - 10; avail > keyWidth {
		keyWidth = avail
	}

	return []table.Column{
		{Title: "KID", Width: 32},
		{Title: "Check", Width: 10},
		{Title: "Key", Width: keyWidth},
	}
}

// View renders the keys screen
func (m KeysModel) View() string {
	var content strings.Builder

	content.WriteString(common.TitleStyle.Render("Keys"))
	content.WriteString("\n")
	content.WriteString(common.SubtitleStyle.Render("Content keys in the local key store"))
	content.WriteString("\n\n")

	switch m.state {
	case KeysStateLoading:
		content.WriteString(fmt.Sprintf("%s Loading keys...", m.spinner.View()))

	case KeysStateDeleting:
		content.WriteString(fmt.Sprintf("%s Deleting key...", m.spinner.View()))

	case KeysStateDeleteConfirm:
		content.WriteString(common.ErrorTextStyle.Render("⚠ Delete Key"))
		content.WriteString("\n\n")
		content.WriteString(fmt.Sprintf("KID: %s\n\n", m.deleteKey.KID))
		content.WriteString("Type the first 4 characters of the KID to confirm deletion:\n\n")
		content.WriteString(fmt.Sprintf("  %s ", m.deleteInput.View()))
		if len(m.deleteInput.Value()) == 4 && !strings.EqualFold(m.deleteInput.Value(), m.deleteConfirmText) {
			content.WriteString(common.ErrorTextStyle.Render(" ✗ Does not match"))
		}

	case KeysStateError:
		content.WriteString(common.ErrorTextStyle.Render("Error: " + m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString(common.MutedTextStyle.Render("Press 'r' to retry"))

	case KeysStateReady:
		if len(m.keys) == 0 {
			content.WriteString(common.MutedTextStyle.Render("No keys found."))
			content.WriteString("\n\n")
			content.WriteString(common.MutedTextStyle.Render("Add one with 'ckcli keys add' or 'ckcli license'."))
		} else {
			if m.filterActive {
				content.WriteString(common.PrimaryTextStyle.Render("Filter: "))
				content.WriteString(m.filterInput.View())
				content.WriteString("\n\n")
			} else if m.filterText != "" {
				content.WriteString(common.MutedTextStyle.Render(fmt.Sprintf("Filter: %q", m.filterText)))
				content.WriteString("\n\n")
			}

			content.WriteString(common.MutedTextStyle.Render(fmt.Sprintf("%d of %d key(s)", len(m.filtered), len(m.keys))))
			content.WriteString("\n\n")
			content.WriteString(m.table.View())
		}
	}

	content.WriteString("\n\n")
	var helpText []string
	switch {
	case m.state == KeysStateDeleteConfirm:
		helpText = []string{
			common.FormatHelp("enter", "confirm delete"),
			common.FormatHelp("esc", "cancel"),
		}
	case m.filterActive:
		helpText = []string{
			common.FormatHelp("enter", "apply"),
			common.FormatHelp("esc", "cancel"),
		}
	default:
		helpText = []string{
			common.FormatHelp("↑/↓", "navigate"),
			common.FormatHelp("/", "filter"),
			common.FormatHelp("d", "delete"),
			common.FormatHelp("r", "refresh"),
			common.FormatHelp("esc", "back"),
		}
	}
	content.WriteString(strings.Join(helpText, "  "))

	style := lipgloss.NewStyle().
		Width(m.width).
		Padding(1, 2)

	return style.Render(content.String())
}

func (m KeysModel) loadKeys() tea.Cmd {
	return func() tea.Msg {
		if m.store == nil {
			return KeysErrorMsg{Err: errors.New("no key store")}
		}

		kids, err := m.store.List()
		if err != nil {
			return KeysErrorMsg{Err: err}
		}

		keys := make([]models.ContentKey, 0, len(kids))
		for _, kid := range kids {
			k, err := m.store.Get(kid)
			if err != nil {
				return KeysErrorMsg{Err: fmt.Errorf("key %s: %w", kid, err)}
			}
			keys = append(keys, *k)
		}

		return KeysLoadedMsg{Keys: keys}
	}
}

func (m KeysModel) deleteKeyCmd(kid models.KeyID) tea.Cmd {
	return func() tea.Msg {
		if m.store == nil {
			return KeysErrorMsg{Err: errors.New("no key store")}
		}

		if err := m.store.Delete(kid); err != nil {
			return KeysErrorMsg{Err: err}
		}

		return KeyDeletedMsg{KID: kid}
	}
}

// SelectedKey returns the currently selected key, if any
func (m KeysModel) SelectedKey() *models.ContentKey {
	if m.state != KeysStateReady || len(m.filtered) == 0 {
		return nil
	}

	row := m.table.SelectedRow()
	if len(row) == 0 {
		return nil
	}

	for i := range m.filtered {
		if m.filtered[i].KID.String() == row[0] {
			return &m.filtered[i]
		}
	}

	return nil
}
