package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/clearkeydrm/ckcli/internal/cenc"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/spf13/pflag"
)

func mp4Flags(fs *pflag.FlagSet) {
	fs.StringP("in", "i", "", "encrypted fragmented MP4")
	fs.StringP("out", "o", "-", "output file")
}

// Mp4Decrypter returns a cenc decrypter resolving keys from the
// environment and the keychain.
func (app *App) Mp4Decrypter() *cenc.Decrypter {
	return cenc.NewDecrypter(
		keystore.Default(app.cfg.Keystore.Service),
		app.Decryptor(),
		cenc.WithWorkers(app.cfg.Decrypt.Workers),
		cenc.WithLogger(app.log.WithField("component", "cenc")),
	)
}

// decryptFile decrypts the MP4 at path into w.
func (app *App) decryptFile(ctx context.Context, path string, w io.Writer) (*models.DecryptReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	report, err := app.Mp4Decrypter().Decrypt(ctx, f, w)
	if err != nil {
		return nil, err
	}
	report.Source = path

	return report, nil
}

func runMP4(app *App, fs *pflag.FlagSet) error {
	in, _ := fs.GetString("in")
	if in == "" {
		return fmt.Errorf("%w: --in is required", errUsage)
	}

	var buf bytes.Buffer
	report, err := app.decryptFile(context.Background(), in, &buf)
	if err != nil {
		return err
	}

	for _, t := range report.Tracks {
		app.log.WithField("track", t.TrackID).
			WithField("kid", t.KID.String()).
			Infof("decrypted %d samples (%d subsamples, %d encrypted bytes)", t.Samples, t.Subsamples, t.EncryptedBytes)
	}
	app.log.Infof("decrypted %d fragments in %s", report.Fragments, report.Duration)

	out, _ := fs.GetString("out")
	return writeOutput(out, buf.Bytes())
}
