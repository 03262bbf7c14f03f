package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/logging"
)

var (
	configFile string

	cfg    *config.Config
	logger = logging.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "faceauth",
	Short: "Face authentication against a local store of enrolled identities",
	Long: `faceauth authenticates people by comparing a face embedding computed by an
embedding server against the identities enrolled in a local directory.
Unknown faces can be enrolled on the spot with --autosave.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./faceauth.yaml)")
	flags.String("store", "", "Directory holding enrolled identities (default \"persist\")")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-format", "", "Log format: text, json or pretty")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v, err := config.InitViper(configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"store.dir":  "store",
		"log.format": "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	if mustGetBool(cmd, "debug") {
		v.Set("log.level", "debug")
	}

	loaded, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger = logging.New(logging.WithLevel(level), logging.WithFormat(cfg.Log.Format))
	slog.SetDefault(logger)
	return nil
}
