package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/clearkeydrm/ckcli/internal/tui"
	"github.com/clearkeydrm/ckcli/internal/tui/screens"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func uiFlags(fs *pflag.FlagSet) {
	fs.StringP("in", "i", "", "encrypted MP4 for the decrypt report screen")
}

func runUI(app *App, fs *pflag.FlagSet) error {
	// logging would draw over the alt screen
	log.SetOutput(io.Discard)

	deps := tui.Deps{
		Keys:    keystore.NewKeychainStore(app.cfg.Keystore.Service),
		Cipher:  app.cipher,
		Backend: app.cfg.Cipher.Backend,
	}
	if in, _ := fs.GetString("in"); in != "" {
		deps.Report = app.reportFor(in)
	}

	p := tea.NewProgram(tui.NewApp(deps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	return nil
}

// reportFor decrypts path and discards the output.
func (app *App) reportFor(path string) screens.ReportFunc {
	return func(ctx context.Context) (*models.DecryptReport, error) {
		return app.decryptFile(ctx, path, io.Discard)
	}
}
