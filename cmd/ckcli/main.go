package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/clearkeydrm/ckcli/internal/config"
	"github.com/clearkeydrm/ckcli/internal/crypto"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// errUsage is returned when a command is invoked with missing arguments.
var errUsage = errors.New("usage")

type command struct {
	summary string
	flags   func(fs *pflag.FlagSet)
	run     func(app *App, fs *pflag.FlagSet) error
}

var commands = map[string]command{
	"decrypt":  {"decrypt a subsample buffer", bufferFlags, runDecrypt},
	"encrypt":  {"encrypt a subsample buffer", bufferFlags, runEncrypt},
	"mp4":      {"decrypt a cenc fragmented MP4", mp4Flags, runMP4},
	"keys":     {"manage stored content keys (add, get, rm, ls, derive)", keysFlags, runKeys},
	"license":  {"fetch keys from a ClearKey license server", licenseFlags, runLicense},
	"serve":    {"run the local decrypt service", nil, runServe},
	"selftest": {"check the cipher backend against known vectors", nil, runSelfTest},
	"ui":       {"open the terminal browser", uiFlags, runUI},
}

// App holds what every command needs once configuration is loaded.
type App struct {
	cfg    *config.Config
	cipher crypto.BlockCipher
	log    LogrusAdapter
}

// NewApp builds the block cipher for the configured backend.
func NewApp(cfg *config.Config) (*App, error) {
	bc, err := crypto.NewBlockCipher(cfg.Backend(), cfg.Cipher.ScheduleTTL)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:    cfg,
		cipher: bc,
		log:    LogrusAdapter{log.WithField("backend", cfg.Cipher.Backend)},
	}, nil
}

// Decryptor returns a subsample decryptor over the app's cipher.
func (app *App) Decryptor() *crypto.SubsampleDecryptor {
	return crypto.NewSubsampleDecryptor(app.cipher, app.cfg.DecryptOptions()...)
}

// Close releases the cipher backend.
func (app *App) Close() error {
	if c, ok := app.cipher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Usage: ckcli <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'ckcli <command> --help' for command flags.")
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return errUsage
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	fs := pflag.NewFlagSet("ckcli "+name, pflag.ContinueOnError)
	config.RegisterFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	path, _ := fs.GetString("config")
	cfg, err := config.Load(path, fs)
	if err != nil {
		return err
	}

	// parse and set log level
	logLevel, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(logLevel)

	app, err := NewApp(cfg)
	if err != nil {
		return fmt.Errorf("failed creating %s cipher: %w", cfg.Cipher.Backend, err)
	}
	defer func() { _ = app.Close() }()

	return cmd.run(app, fs)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
			os.Exit(2)
		}
		log.WithError(err).Fatal("command failed")
	}
}
