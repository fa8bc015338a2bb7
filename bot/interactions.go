package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/airylvat/anime-quiz-bot/logger"
	"github.com/airylvat/anime-quiz-bot/quiz"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	defer b.recoverEvent("interaction")
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlashCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleButton(s, i)
	}
}

func (b *Bot) handleSlashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	def, ok := lookupCommand(name)
	if !ok {
		return
	}

	var flags discordgo.MessageFlags
	if !def.Public {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		logger.Warn("Failed to defer interaction", "command", name, "error", err)
		return
	}

	user := i.Member.User
	cc := commandContext{
		Def:       def,
		GuildID:   i.GuildID,
		GuildName: b.guildName(i.GuildID),
		ChannelID: i.ChannelID,
		UserID:    user.ID,
		Username:  user.Username,
	}
	if def.Admin {
		cc.Admin = b.isAdmin(i.GuildID, i.ChannelID, user.ID, i.Member)
	}

	r := b.runCommand(context.Background(), cc)
	edit := &discordgo.WebhookEdit{}
	if r.Content != "" {
		edit.Content = &r.Content
	}
	if r.Embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{r.Embed}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		logger.Warn("Failed to answer interaction", "command", name, "error", err)
	}
}

func (b *Bot) handleButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	round, index, ok := parseAnswerID(i.MessageComponentData().CustomID)
	if !ok {
		return
	}
	userID := i.Member.User.ID

	res, submitErr := b.Quiz.SubmitChoice(context.Background(), i.GuildID, i.ChannelID, userID, round, index)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: choiceReply(res, submitErr),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Warn("Failed to answer button press", "error", err)
	}

	if res.Correct {
		if _, err := s.ChannelMessageSend(i.ChannelID, fmt.Sprintf(msgCorrect, userID, res.Score)); err != nil {
			logger.Warn("Failed to announce correct answer", "error", err)
		}
	}
}

func choiceReply(res quiz.AnswerResult, err error) string {
	switch {
	case err == nil && res.Correct:
		return msgCorrectChoice
	case err == nil:
		return msgWrongChoice
	case errors.Is(err, quiz.ErrWrongChannel), errors.Is(err, quiz.ErrNoChannel):
		return msgQuestionClosed
	}
	return errorReply(err)
}
