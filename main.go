package main

import (
	"fmt"
	"os"

	"github.com/airylvat/anime-quiz-bot/cli"
	"github.com/airylvat/anime-quiz-bot/logger"
)

func main() {
	if err := cli.Execute(); err != nil {
		logger.Error("Bot stopped with an error", "error", err)
		logger.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	logger.Sync()
}
