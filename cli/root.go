package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/airylvat/anime-quiz-bot/config"
	"github.com/airylvat/anime-quiz-bot/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "anime-quiz-bot",
		Short:         "Discord anime trivia bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			cfg = config.Load()
			logger.Init(cfg.LogLevel, cfg.AppEnv)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file")
	cmd.AddCommand(newRunCmd(&cfg))
	cmd.AddCommand(newCheckCmd(&cfg))
	return cmd
}

// loadEnvFile loads path into the environment. A missing file is fine,
// the variables may already be set.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}
