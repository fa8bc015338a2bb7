package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/airylvat/anime-quiz-bot/bot"
	"github.com/airylvat/anime-quiz-bot/config"
	"github.com/airylvat/anime-quiz-bot/db"
	"github.com/airylvat/anime-quiz-bot/logger"
	"github.com/airylvat/anime-quiz-bot/quiz"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
)

// newRunCmd builds the subcommand that connects the bot. It is also what the
// root command does when called without a subcommand.
func newRunCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and run the quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), *cfg)
		},
	}
}

func runBot(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	eval, bank, err := loadQuiz(cfg)
	if err != nil {
		return err
	}
	logger.Info("Question bank loaded", "questions", bank.Len(), "path", cfg.QuestionsPath)

	snap, closeSnap, err := openSnapshotter(cfg)
	if err != nil {
		return err
	}
	defer closeSnap()

	store := quiz.NewStore(snap)
	flagged := store.Load()
	if len(flagged) > 0 {
		logger.Warn("Quizzes interrupted by the last shutdown need a restart", "communities", flagged)
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}

	manager := quiz.NewManager(store, bank, eval, bot.NewAnnouncer(session), quiz.Options{
		QuestionDuration: cfg.QuestionDuration,
		Cooldown:         cfg.Cooldown,
	})
	b := bot.NewBot(session, manager, cfg, flagged)
	if err := b.Start(); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context canceled, shutting down")
	}
	return b.Close()
}

// loadQuiz builds the evaluator and the question bank. Both are fatal when
// their files are broken.
func loadQuiz(cfg *config.Config) (*quiz.Evaluator, *quiz.Bank, error) {
	folds, err := quiz.LoadFoldConfig(cfg.FoldRulesPath)
	if err != nil {
		return nil, nil, err
	}
	eval, err := quiz.NewEvaluator(folds)
	if err != nil {
		return nil, nil, fmt.Errorf("fold rules: %w", err)
	}
	bank, err := quiz.LoadBank(cfg.QuestionsPath, eval)
	if err != nil {
		return nil, nil, err
	}
	return eval, bank, nil
}

func openSnapshotter(cfg *config.Config) (quiz.Snapshotter, func(), error) {
	switch cfg.StoreBackend {
	case "sqlite":
		sqlite, err := db.NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using SQLite session store", "path", cfg.DatabasePath)
		return sqlite, func() { sqlite.Close() }, nil
	case "json", "":
		logger.Info("Using JSON session store", "path", cfg.DataPath)
		return db.NewJSONFile(cfg.DataPath), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}
