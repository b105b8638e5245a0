package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/server"
	"github.com/spf13/pflag"
)

func runServe(app *App, _ *pflag.FlagSet) error {
	srv := server.New(
		app.Decryptor(),
		app.Mp4Decrypter(),
		keystore.Default(app.cfg.Keystore.Service),
		server.WithLogger(app.log.WithField("component", "server")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, app.cfg.Server.Address)
}

func runSelfTest(app *App, _ *pflag.FlagSet) error {
	failed := 0
	for _, r := range crypto.SelfTest(app.cipher, app.cfg.DecryptOptions()...) {
		if r.Passed() {
			app.log.Infof("ok   %s", r.Name)
			continue
		}
		failed++
		app.log.WithError(r.Err).Errorf("FAIL %s", r.Name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d vectors failed", failed, len(crypto.KnownVectors))
	}
	return nil
}
