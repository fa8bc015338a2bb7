package bot

import (
	"context"

	"github.com/airylvat/anime-quiz-bot/logger"
	"github.com/airylvat/anime-quiz-bot/quiz"

	"github.com/bwmarrin/discordgo"
)

// Announcer posts quiz rounds to Discord. It only formats what the quiz
// manager hands it.
type Announcer struct {
	Session *discordgo.Session
}

func NewAnnouncer(s *discordgo.Session) *Announcer {
	return &Announcer{Session: s}
}

func (a *Announcer) PostQuestion(ctx context.Context, channelID string, round quiz.Round) (string, error) {
	msg, err := a.Session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{questionEmbed(round)},
		Components: questionComponents(round, false),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (a *Announcer) UpdateCountdown(ctx context.Context, channelID, messageID string, round quiz.Round) error {
	if messageID == "" {
		return nil
	}
	_, err := a.Session.ChannelMessageEditEmbed(channelID, messageID, questionEmbed(round), discordgo.WithContext(ctx))
	return err
}

// RevealAnswer freezes the question message at zero with its buttons
// disabled, then posts the correct answer. The answer is posted even when
// the edit fails.
func (a *Announcer) RevealAnswer(ctx context.Context, channelID, messageID string, round quiz.Round) error {
	if messageID != "" {
		if err := a.closeQuestion(ctx, channelID, messageID, round); err != nil {
			logger.Warn("Failed to close question message", "channel", channelID, "error", err)
		}
	}
	_, err := a.Session.ChannelMessageSendEmbed(channelID, revealEmbed(round.Question), discordgo.WithContext(ctx))
	return err
}

func (a *Announcer) closeQuestion(ctx context.Context, channelID, messageID string, round quiz.Round) error {
	edit := discordgo.NewMessageEdit(channelID, messageID).SetEmbed(questionEmbed(round))
	if round.Question.IsMultipleChoice() {
		components := questionComponents(round, true)
		edit.Components = &components
	}
	_, err := a.Session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return err
}
