package main

import (
	"encoding/hex"
	"fmt"

	"github.com/clearkeydrm/ckcli/internal/crypto"
	"github.com/clearkeydrm/ckcli/internal/keystore"
	"github.com/clearkeydrm/ckcli/internal/models"
	"github.com/spf13/pflag"
)

func keysFlags(fs *pflag.FlagSet) {
	fs.String("kid", "", "key ID as hex or UUID")
	fs.String("key", "", "content key as hex (add)")
	fs.String("master", "", "master key as hex (derive)")
	fs.Bool("save", false, "store the derived key (derive)")
}

func runKeys(app *App, fs *pflag.FlagSet) error {
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: ckcli keys add|get|rm|ls|derive", errUsage)
	}

	store := keystore.NewKeychainStore(app.cfg.Keystore.Service)

	switch action := fs.Arg(0); action {
	case "ls":
		kids, err := store.List()
		if err != nil {
			return err
		}
		for _, kid := range kids {
			key, err := store.Get(kid)
			if err != nil {
				return fmt.Errorf("key %s: %w", kid, err)
			}
			fmt.Printf("%s  %s  %s\n", kid, key.CheckValueHex(), key.Masked())
		}
		return nil

	case "add", "get", "rm", "derive":
		kid, err := kidFlag(fs)
		if err != nil {
			return err
		}
		return keyAction(app, store, action, kid, fs)

	default:
		return fmt.Errorf("%w: unknown keys action %q", errUsage, action)
	}
}

func keyAction(app *App, store keystore.KeyStore, action string, kid models.KeyID, fs *pflag.FlagSet) error {
	switch action {
	case "add":
		raw, err := hexFlag(fs, "key")
		if err != nil {
			return err
		}
		key, err := keystore.NewContentKey(kid, raw)
		if err != nil {
			return err
		}
		if err := store.Save(key); err != nil {
			return err
		}
		app.log.WithField("kid", kid.String()).Infof("stored key, check value %s", key.CheckValueHex())

	case "get":
		key, err := keystore.Lookup(kid, app.cfg.Keystore.Service)
		if err != nil {
			return err
		}
		fmt.Println(key.KeyHex())

	case "rm":
		if err := store.Delete(kid); err != nil {
			return err
		}
		app.log.WithField("kid", kid.String()).Info("removed key")

	case "derive":
		master, err := hexFlag(fs, "master")
		if err != nil {
			return err
		}
		raw, err := crypto.DeriveContentKey(master, kid[:])
		if err != nil {
			return err
		}
		key, err := keystore.NewContentKey(kid, raw)
		if err != nil {
			return err
		}

		if save, _ := fs.GetBool("save"); save {
			if err := store.Save(key); err != nil {
				return err
			}
		}
		fmt.Printf("%s:%s\n", kid, key.KeyHex())
	}

	return nil
}

func kidFlag(fs *pflag.FlagSet) (models.KeyID, error) {
	s, _ := fs.GetString("kid")
	if s == "" {
		return models.KeyID{}, fmt.Errorf("%w: --kid is required", errUsage)
	}
	return models.ParseKeyID(s)
}

func hexFlag(fs *pflag.FlagSet, name string) ([]byte, error) {
	s, _ := fs.GetString(name)
	if s == "" {
		return nil, fmt.Errorf("%w: --%s is required", errUsage, name)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", crypto.ErrInvalidArgument, name, err)
	}
	return b, nil
}
