// ABOUTME: Entry point for the kiosk speaker
// ABOUTME: Cobra root command, config loading and logging setup shared by subcommands
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zenkiosk/kiosk-speaker/internal/app"
	"github.com/zenkiosk/kiosk-speaker/internal/config"
	"github.com/zenkiosk/kiosk-speaker/internal/logging"
	"github.com/zenkiosk/kiosk-speaker/internal/version"
)

var (
	configFile string
	dryRun     bool
	noTUI      bool
	logFile    string
	debug      bool

	cfg       *config.Config
	useTUI    bool
	logCloser = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:           version.Product,
		Short:         "Speak streamed TTS audio on a kiosk",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return logCloser()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/kiosk-speaker/kiosk-speaker.yaml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "play to a silent device at real-time pace")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "disable the TUI and stream logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(sayCmd, askCmd, playCmd, serveCmd, discoverCmd)
}

// setup loads config and routes logs. The TUI owns the terminal, so while
// it runs logs go only to a file.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(viper.GetViper(), configFile)
	if err != nil {
		return err
	}

	useTUI = cfg.UI.Enabled && !noTUI && wantsTUI(cmd) && isatty.IsTerminal(os.Stdout.Fd())

	opts := logging.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
		Debug: debug,
		Quiet: useTUI,
	}
	if useTUI && opts.File == "" {
		opts.File = version.Product + ".log"
	}

	logCloser, err = logging.Setup(opts)
	if err != nil {
		return err
	}
	log.Debug("Configuration loaded", "file", viper.ConfigFileUsed(), "codec", cfg.Audio.Codec, "tui", useTUI)
	return nil
}

// wantsTUI is false for commands that print their results
func wantsTUI(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == discoverCmd || c == remoteCmd {
			return false
		}
	}
	return true
}

func newPlayer() (*app.Player, error) {
	return app.New(cfg, app.Options{DryRun: dryRun, UseTUI: useTUI})
}

// finish maps a session result to the command's exit error
func finish(err error) error {
	if errors.Is(err, context.Canceled) {
		log.Info("Canceled")
		return nil
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		_ = logCloser()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
