package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/tui/screens"
)

// Screen represents the current screen in the TUI.
type Screen int

const (
	ScreenHome Screen = iota
	ScreenKeys
	ScreenReport
	ScreenSelfTest
)

// Deps are the services the screens work against.
type Deps struct {
	Keys    keystore.KeyStore
	Report  screens.ReportFunc // nil when no input file was given
	Cipher  crypto.BlockCipher
	Backend string
}

// App is the main application model.
type App struct {
	deps       Deps
	screen     Screen
	prevScreen Screen
	width      int
	height     int
	ready      bool

	// Screen models
	homeModel     screens.HomeModel
	keysModel     screens.KeysModel
	reportModel   screens.ReportModel
	selfTestModel screens.SelfTestModel
}

// NewApp creates a new application instance.
func NewApp(deps Deps) *App {
	return &App{
		deps:      deps,
		screen:    ScreenHome,
		homeModel: screens.NewHomeModel(deps.Backend),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.homeModel.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, a.forwardToCurrentScreen(msg)

	case screens.NavigateMsg:
		return a.handleNavigation(msg.Screen)
	}

	return a, a.forwardToCurrentScreen(msg)
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Loading..."
	}

	switch a.screen {
	case ScreenHome:
		return a.homeModel.View()
	case ScreenKeys:
		return a.keysModel.View()
	case ScreenReport:
		return a.reportModel.View()
	case ScreenSelfTest:
		return a.selfTestModel.View()
	default:
		return "Unknown screen"
	}
}

func (a *App) forwardToCurrentScreen(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	switch a.screen {
	case ScreenHome:
		a.homeModel, cmd = a.homeModel.Update(msg)
	case ScreenKeys:
		a.keysModel, cmd = a.keysModel.Update(msg)
	case ScreenReport:
		a.reportModel, cmd = a.reportModel.Update(msg)
	case ScreenSelfTest:
		a.selfTestModel, cmd = a.selfTestModel.Update(msg)
	}

	return cmd
}

func (a *App) handleNavigation(screen string) (tea.Model, tea.Cmd) {
	// "back" must not overwrite prevScreen
	if screen == "back" {
		a.screen = a.prevScreen
		return a, a.forwardToCurrentScreen(tea.WindowSizeMsg{
			Width:  a.width,
			Height: a.height,
		})
	}

	a.prevScreen = a.screen

	var initCmd tea.Cmd

	switch screen {
	case "keys":
		a.screen = ScreenKeys
		a.keysModel = screens.NewKeysModel(a.deps.Keys)
		initCmd = a.keysModel.Init()
	case "report":
		a.screen = ScreenReport
		a.reportModel = screens.NewReportModel(a.deps.Report)
		initCmd = a.reportModel.Init()
	case "selftest":
		a.screen = ScreenSelfTest
		a.selfTestModel = screens.NewSelfTestModel(a.deps.Cipher, a.deps.Backend)
		initCmd = a.selfTestModel.Init()
	case "home":
		a.screen = ScreenHome
	}

	sizeCmd := a.forwardToCurrentScreen(tea.WindowSizeMsg{
		Width:  a.width,
		Height: a.height,
	})

	if initCmd != nil {
		return a, tea.Batch(initCmd, sizeCmd)
	}
	return a, sizeCmd
}
