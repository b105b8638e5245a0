package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/license"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/spf13/pflag"
)

func licenseFlags(fs *pflag.FlagSet) {
	fs.StringSlice("kid", nil, "key IDs to request (repeatable)")
	fs.Bool("print", false, "print kid:key pairs instead of storing them")
}

func runLicense(app *App, fs *pflag.FlagSet) error {
	if app.cfg.License.URL == "" {
		return fmt.Errorf("%w: --license-url or license.url is required", errUsage)
	}

	raw, _ := fs.GetStringSlice("kid")
	if len(raw) == 0 {
		return fmt.Errorf("%w: at least one --kid is required", errUsage)
	}

	kids := make([]models.KeyID, 0, len(raw))
	for _, s := range raw {
		kid, err := models.ParseKeyID(s)
		if err != nil {
			return err
		}
		kids = append(kids, kid)
	}

	client := license.NewClient(app.cfg.License.URL,
		license.WithTimeout(app.cfg.License.Timeout),
		license.WithMaxRetries(uint64(app.cfg.License.MaxRetries)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys, err := client.FetchKeys(ctx, kids)
	if err != nil {
		return err
	}

	if printOnly, _ := fs.GetBool("print"); printOnly {
		for _, k := range keys {
			fmt.Printf("%s:%s\n", k.KID, k.KeyHex())
		}
		return nil
	}

	store := keystore.NewKeychainStore(app.cfg.Keystore.Service)
	for i := range keys {
		if err := store.Save(&keys[i]); err != nil {
			return err
		}
		app.log.WithField("kid", keys[i].KID.String()).Infof("stored key from %s", client.URL())
	}

	return nil
}
