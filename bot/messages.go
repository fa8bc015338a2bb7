package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/airylvat/anime-quiz-bot/quiz"

	"github.com/bwmarrin/discordgo"
)

const (
	colorQuestion    = 0xFFD700
	colorReveal      = 0xFF0000
	colorLeaderboard = 0x00FF00
	colorHelp        = 0x00BFFF
	colorStatus      = 0xFFA500

	footerText   = "Anime Quiz Bot"
	thumbnailURL = "https://static.wikia.nocookie.net/frieren/images/9/96/Himmel_anime_portrait.png"

	answerIDPrefix = "answer"
	leaderboardLen = 10
)

// User-visible rejections and replies.
const (
	msgNoPermission    = "❌ You don't have permission to use this command!"
	msgNoChannel       = "❌ The quiz channel hasn't been set yet! Use `/setup` first."
	msgWrongChannel    = "❌ Quiz commands must be used in the quiz channel: <#%s>"
	msgAlreadyActive   = "ℹ️ The quiz is already running!"
	msgAlreadyInactive = "ℹ️ The quiz is already stopped!"
	msgNotActive       = "ℹ️ The quiz is not running. Use `/start` first."
	msgStarted         = "🎉 Quiz started! Questions will be posted automatically."
	msgStopped         = "⏸️ Quiz stopped."
	msgSkipped         = "⏭️ Moving on to the next question."
	msgReset           = "🔄 Scores have been reset for everyone!"
	msgSetup           = "✅ <#%s> is now the quiz channel!"
	msgMissingPerms    = "❌ The bot needs these permissions in this channel:\n%s"
	msgAlreadyAnswered = "⏳ You already answered this question!"
	msgQuestionClosed  = "⌛ This question is already closed."
	msgCorrect         = "🎉 <@%s> answered correctly! (%d points)"
	msgCorrectChoice   = "✅ Correct!"
	msgWrongChoice     = "❌ Wrong answer. Better luck with the next question!"
	msgUnknownCommand  = "❓ Unknown command. Use `%s help`."
	msgCommandFailed   = "❌ Something went wrong while running the command!"
	msgShuttingDown    = "💤 The bot is restarting, try again in a moment."
	msgPostFailed      = "❌ Couldn't post in the quiz channel, so the quiz was stopped. Check the bot's permissions there."
	msgRestartNeeded   = "⚠️ The quiz was running before the bot restarted. An admin needs to use `/start` to resume it."
)

func questionEmbed(round quiz.Round) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🎌 Anime Quiz #%d 🎌", round.Number),
		Description: round.Question.Text,
		Color:       colorQuestion,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: thumbnailURL},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Time left", Value: fmt.Sprintf("⏳ %d seconds", round.Remaining)},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: footerText},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if round.Question.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: round.Question.ImageURL}
	}
	if !round.Question.IsMultipleChoice() {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "How to answer",
			Value: "Type your answer in this channel. Only the first correct answer scores.",
		})
	}
	return embed
}

// questionComponents renders one button per option, five per row.
func questionComponents(round quiz.Round, disabled bool) []discordgo.MessageComponent {
	opts := round.Question.Options
	if len(opts) == 0 {
		return nil
	}

	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for i, opt := range opts {
		row = append(row, discordgo.Button{
			Label:    truncate(opt, 80),
			Style:    discordgo.PrimaryButton,
			CustomID: answerID(round.Number, i),
			Disabled: disabled,
		})
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}

func revealEmbed(q quiz.Question) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "⏰ Time's up ⏰",
		Description: fmt.Sprintf("The correct answer was: **%s**", q.CorrectAnswer),
		Color:       colorReveal,
		Footer:      &discordgo.MessageEmbedFooter{Text: footerText},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func leaderboardEmbed(entries []quiz.ScoreEntry, guildName string) *discordgo.MessageEmbed {
	footer := footerText
	if guildName != "" {
		footer += " | " + guildName
	}
	return &discordgo.MessageEmbed{
		Title:       "🏆 Leaderboard 🏆",
		Description: formatLeaderboard(entries),
		Color:       colorLeaderboard,
		Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func formatLeaderboard(entries []quiz.ScoreEntry) string {
	if len(entries) == 0 {
		return "No points yet!"
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("**%d.** <@%s>: %d points", e.Rank, e.UserID, e.Score))
	}
	return strings.Join(lines, "\n")
}

func helpEmbed(prefix string, duration int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🛠️ Anime Quiz Bot Help 🛠️",
		Description: "**Hi! Here's how to use the bot:**",
		Color:       colorHelp,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "⚙️ Setup commands (admins)",
				Value: strings.Join([]string{
					"- `/setup`: use the current channel for the quiz",
					"- `/start`: start the quiz",
					"- `/stop`: stop the quiz",
					"- `/next`: skip to the next question",
					"- `/reset`: reset everyone's points",
					"- `/test`: show the bot's status",
				}, "\n"),
			},
			{
				Name: "🏆 Quiz commands",
				Value: strings.Join([]string{
					"- `/score`: show the top 10 players",
					"- `/help`: show this message",
					fmt.Sprintf("- every command also works as `%s <command>`", prefix),
				}, "\n"),
			},
			{
				Name: "⏱️ Rules",
				Value: strings.Join([]string{
					"- type the correct answer in the quiz channel, or press a button",
					fmt.Sprintf("- you have %d seconds to answer", duration),
					"- one answer per question, 1 point for each correct answer",
				}, "\n"),
			},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Enjoy your anime time!"},
	}
}

func statusEmbed(st quiz.Status) *discordgo.MessageEmbed {
	question, answer := "None", "None"
	if st.Question != nil {
		question = st.Question.Text
		answer = st.Question.CorrectAnswer
	}
	channel := "Not set"
	if st.ChannelID != "" {
		channel = "<#" + st.ChannelID + ">"
	}
	state := "Inactive"
	switch st.State {
	case quiz.StateActiveWaiting:
		state = "Active (waiting for next question)"
	case quiz.StateActivePosted:
		state = fmt.Sprintf("Active (%d seconds left)", st.Remaining)
	}
	if st.NeedsRestart {
		state += " - needs restart"
	}

	return &discordgo.MessageEmbed{
		Title: "🧪 Bot status",
		Color: colorStatus,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Current question", Value: question},
			{Name: "Correct answer", Value: answer},
			{Name: "Quiz channel", Value: channel},
			{Name: "Quiz state", Value: state},
			{Name: "Round", Value: strconv.Itoa(st.Round), Inline: true},
			{Name: "Players", Value: strconv.Itoa(st.Players), Inline: true},
			{Name: "Questions", Value: strconv.Itoa(st.BankSize), Inline: true},
		},
	}
}

func answerID(round, index int) string {
	return fmt.Sprintf("%s:%d:%d", answerIDPrefix, round, index)
}

func parseAnswerID(id string) (round, index int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != answerIDPrefix {
		return 0, 0, false
	}
	round, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	index, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return round, index, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
