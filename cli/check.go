package cli

import (
	"fmt"

	"github.com/airylvat/anime-quiz-bot/config"

	"github.com/spf13/cobra"
)

func newCheckCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the question catalog and fold rules without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if err := c.ValidateQuiz(); err != nil {
				return err
			}
			_, bank, err := loadQuiz(c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d questions OK\n", c.QuestionsPath, bank.Len())
			if c.FoldRulesPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: fold rules OK\n", c.FoldRulesPath)
			}
			return nil
		},
	}
}
