package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/airylvat/anime-quiz-bot/logger"
	"github.com/airylvat/anime-quiz-bot/quiz"

	"github.com/bwmarrin/discordgo"
)

type commandDef struct {
	Name        string
	Description string
	Admin       bool
	// Public commands answer visibly in the channel; the rest reply ephemerally.
	Public bool
}

var commandTable = []commandDef{
	{Name: "setup", Description: "Use the current channel for the quiz (admins)", Admin: true},
	{Name: "start", Description: "Start the quiz (admins)", Admin: true, Public: true},
	{Name: "stop", Description: "Stop the quiz (admins)", Admin: true},
	{Name: "next", Description: "Skip to the next question (admins)", Admin: true},
	{Name: "score", Description: "Show the top 10 players", Public: true},
	{Name: "help", Description: "Show the help message", Public: true},
	{Name: "reset", Description: "Reset everyone's points (admins)", Admin: true},
	{Name: "test", Description: "Show the bot's status (admins)", Admin: true},
}

func lookupCommand(name string) (commandDef, bool) {
	for _, def := range commandTable {
		if def.Name == name {
			return def, true
		}
	}
	return commandDef{}, false
}

func applicationCommands() []*discordgo.ApplicationCommand {
	adminPerm := int64(discordgo.PermissionAdministrator)
	cmds := make([]*discordgo.ApplicationCommand, 0, len(commandTable))
	for _, def := range commandTable {
		cmd := &discordgo.ApplicationCommand{
			Name:        def.Name,
			Description: def.Description,
		}
		if def.Admin {
			cmd.DefaultMemberPermissions = &adminPerm
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// commandContext is what a command needs to know about its caller,
// independent of whether it arrived as a slash command or a text message.
type commandContext struct {
	Def       commandDef
	GuildID   string
	GuildName string
	ChannelID string
	UserID    string
	Username  string
	Admin     bool
}

type reply struct {
	Content string
	Embed   *discordgo.MessageEmbed
}

// gate applies the channel and privilege rules. Only setup may run before a
// channel is bound or outside it.
func gate(cc commandContext, boundChannel string) (string, bool) {
	if cc.Def.Name != "setup" {
		if boundChannel == "" {
			return msgNoChannel, false
		}
		if cc.ChannelID != boundChannel {
			return fmt.Sprintf(msgWrongChannel, boundChannel), false
		}
	}
	if cc.Def.Admin && !cc.Admin {
		return msgNoPermission, false
	}
	return "", true
}

func (b *Bot) runCommand(ctx context.Context, cc commandContext) reply {
	status := b.Quiz.Status(cc.GuildID)
	if msg, ok := gate(cc, status.ChannelID); !ok {
		return reply{Content: msg}
	}

	logger.Info("Command", "command", cc.Def.Name, "community", cc.GuildID, "user", cc.Username)

	switch cc.Def.Name {
	case "setup":
		return b.handleSetup(cc)
	case "start":
		if err := b.Quiz.Start(ctx, cc.GuildID); err != nil {
			return reply{Content: errorReply(err)}
		}
		return reply{Content: msgStarted}
	case "stop":
		if err := b.Quiz.Stop(cc.GuildID); err != nil {
			return reply{Content: errorReply(err)}
		}
		return reply{Content: msgStopped}
	case "next":
		if err := b.Quiz.Next(ctx, cc.GuildID); err != nil {
			return reply{Content: errorReply(err)}
		}
		return reply{Content: msgSkipped}
	case "score":
		return reply{Embed: leaderboardEmbed(b.Quiz.Leaderboard(cc.GuildID, leaderboardLen), cc.GuildName)}
	case "help":
		return reply{Embed: helpEmbed(b.Prefix, b.QuestionDuration)}
	case "reset":
		if err := b.Quiz.ResetScores(cc.GuildID); err != nil {
			return reply{Content: errorReply(err)}
		}
		return reply{Content: msgReset}
	case "test":
		return reply{Embed: statusEmbed(status)}
	}
	return reply{Content: fmt.Sprintf(msgUnknownCommand, b.Prefix)}
}

func (b *Bot) handleSetup(cc commandContext) reply {
	perms, err := b.Session.UserChannelPermissions(b.Session.State.User.ID, cc.ChannelID)
	if err != nil {
		logger.Warn("Could not compute channel permissions", "channel", cc.ChannelID, "error", err)
		return reply{Content: msgCommandFailed}
	}
	if missing := missingPermissions(perms); len(missing) > 0 {
		return reply{Content: fmt.Sprintf(msgMissingPerms, strings.Join(missing, "\n"))}
	}

	if err := b.Quiz.Setup(cc.GuildID, cc.ChannelID); err != nil {
		return reply{Content: errorReply(err)}
	}
	return reply{Content: fmt.Sprintf(msgSetup, cc.ChannelID)}
}

var requiredPermissions = []struct {
	bit  int64
	name string
}{
	{discordgo.PermissionViewChannel, "View Channel"},
	{discordgo.PermissionSendMessages, "Send Messages"},
	{discordgo.PermissionReadMessageHistory, "Read Message History"},
	{discordgo.PermissionEmbedLinks, "Embed Links"},
}

func missingPermissions(perms int64) []string {
	if perms&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	var missing []string
	for _, p := range requiredPermissions {
		if perms&p.bit == 0 {
			missing = append(missing, p.name)
		}
	}
	return missing
}

// errorReply turns quiz errors into user-visible rejections.
func errorReply(err error) string {
	switch {
	case errors.Is(err, quiz.ErrAlreadyActive):
		return msgAlreadyActive
	case errors.Is(err, quiz.ErrAlreadyInactive):
		return msgAlreadyInactive
	case errors.Is(err, quiz.ErrNotActive):
		return msgNotActive
	case errors.Is(err, quiz.ErrNoChannel):
		return msgNoChannel
	case errors.Is(err, quiz.ErrDuplicateAnswer):
		return msgAlreadyAnswered
	case errors.Is(err, quiz.ErrStaleRound), errors.Is(err, quiz.ErrNoActiveQuestion):
		return msgQuestionClosed
	case errors.Is(err, quiz.ErrShuttingDown):
		return msgShuttingDown
	case errors.Is(err, quiz.ErrPostFailed):
		return msgPostFailed
	}
	logger.Error("Command failed", "error", err)
	return msgCommandFailed
}

// parseTextCommand extracts the command name from "<prefix> <name> ...".
// A bare prefix means help.
func parseTextCommand(prefix, content string) (string, bool) {
	content = strings.TrimSpace(content)
	if content != prefix && !strings.HasPrefix(content, prefix+" ") {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "help", true
	}
	return strings.ToLower(fields[0]), true
}
