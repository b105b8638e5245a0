package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/spf13/pflag"
)

func bufferFlags(fs *pflag.FlagSet) {
	fs.String("key", "", "content key as hex")
	fs.String("kid", "", "key ID to look up in the key store instead of --key")
	fs.String("iv", "", "8 or 16 byte IV as hex")
	fs.String("subsamples", "", "clear:encrypted pairs, e.g. 8:64,0:32 (default: whole input encrypted)")
	fs.StringP("in", "i", "-", "input file")
	fs.StringP("out", "o", "-", "output file")
}

func runDecrypt(app *App, fs *pflag.FlagSet) error {
	return transformBuffer(app, fs, app.Decryptor().Decrypt)
}

func runEncrypt(app *App, fs *pflag.FlagSet) error {
	return transformBuffer(app, fs, app.Decryptor().Encrypt)
}

type transformFunc func(key, iv, src []byte, subsamples []crypto.Subsample) ([]byte, int, error)

func transformBuffer(app *App, fs *pflag.FlagSet, transform transformFunc) error {
	key, err := resolveKey(app, fs)
	if err != nil {
		return err
	}

	ivHex, _ := fs.GetString("iv")
	if ivHex == "" {
		return fmt.Errorf("%w: --iv is required", errUsage)
	}
	rawIV, err := hex.DecodeString(ivHex)
	if err != nil {
		return fmt.Errorf("%w: iv: %v", crypto.ErrInvalidArgument, err)
	}
	iv, err := crypto.PadIV(rawIV)
	if err != nil {
		return err
	}

	inPath, _ := fs.GetString("in")
	src, err := readInput(inPath)
	if err != nil {
		return err
	}

	layout, _ := fs.GetString("subsamples")
	subsamples, err := crypto.ParseSubsamples(layout)
	if err != nil {
		return err
	}
	if layout == "" {
		subsamples = []crypto.Subsample{{Encrypted: uint32(len(src))}}
	}

	out, n, err := transform(key, iv, src, subsamples)
	if err != nil {
		return err
	}

	app.log.WithField("subsamples", len(subsamples)).
		Debugf("transformed %d bytes, %d encrypted", n, crypto.EncryptedLength(subsamples))

	outPath, _ := fs.GetString("out")
	return writeOutput(outPath, out[:n])
}

// resolveKey returns the --key bytes or looks up --kid in the key store.
func resolveKey(app *App, fs *pflag.FlagSet) ([]byte, error) {
	keyHex, _ := fs.GetString("key")
	kidHex, _ := fs.GetString("kid")

	switch {
	case keyHex != "":
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("%w: key: %v", crypto.ErrInvalidArgument, err)
		}
		return key, nil

	case kidHex != "":
		kid, err := models.ParseKeyID(kidHex)
		if err != nil {
			return nil, err
		}
		ck, err := keystore.Lookup(kid, app.cfg.Keystore.Service)
		if err != nil {
			return nil, err
		}
		return ck.Key, nil

	default:
		return nil, fmt.Errorf("%w: one of --key or --kid is required", errUsage)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
