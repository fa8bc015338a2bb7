package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airylvat/anime-quiz-bot/config"
	"github.com/airylvat/anime-quiz-bot/logger"
	"github.com/airylvat/anime-quiz-bot/quiz"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/singleflight"
)

type Bot struct {
	Session          *discordgo.Session
	Quiz             *quiz.Manager
	AdminUsers       map[string]struct{}
	AdminRoleID      string
	Prefix           string
	QuestionDuration int

	members        singleflight.Group
	pruneEvery     time.Duration
	restartFlagged []string
	notifyOnce     sync.Once
	ready          atomic.Bool
	done           chan struct{}
	wg             sync.WaitGroup
}

// isAdmin accepts the configured admin users, the admin role, and members
// with the Administrator permission.
func (b *Bot) isAdmin(guildID, channelID, userID string, member *discordgo.Member) bool {
	if _, ok := b.AdminUsers[userID]; ok {
		return true
	}

	if member != nil && member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if perms, err := b.Session.UserChannelPermissions(userID, channelID); err == nil && perms&discordgo.PermissionAdministrator != 0 {
		return true
	}

	if b.AdminRoleID == "" {
		return false
	}
	if member == nil || len(member.Roles) == 0 {
		m, err := b.guildMember(guildID, userID)
		if err != nil {
			logger.Warn("Error fetching member roles", "user", userID, "error", err)
			return false
		}
		member = m
	}
	for _, roleID := range member.Roles {
		if roleID == b.AdminRoleID {
			return true
		}
	}
	return false
}

// guildMember collapses concurrent lookups of the same member into one
// REST call.
func (b *Bot) guildMember(guildID, userID string) (*discordgo.Member, error) {
	v, err, _ := b.members.Do(guildID+":"+userID, func() (interface{}, error) {
		if m, err := b.Session.State.Member(guildID, userID); err == nil {
			return m, nil
		}
		return b.Session.GuildMember(guildID, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*discordgo.Member), nil
}

// NewBot wires the gateway handlers. restartFlagged lists the communities
// whose quiz was running when the previous process stopped.
func NewBot(session *discordgo.Session, manager *quiz.Manager, cfg *config.Config, restartFlagged []string) *Bot {
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent

	admins := make(map[string]struct{}, len(cfg.AdminUsers))
	for _, id := range cfg.AdminUsers {
		admins[id] = struct{}{}
	}

	bot := &Bot{
		Session:          session,
		Quiz:             manager,
		AdminUsers:       admins,
		AdminRoleID:      cfg.AdminRoleID,
		Prefix:           cfg.CommandPrefix,
		QuestionDuration: cfg.QuestionDuration,
		pruneEvery:       cfg.PruneInterval,
		restartFlagged:   restartFlagged,
		done:             make(chan struct{}),
	}

	session.AddHandler(bot.handleReady)
	session.AddHandler(bot.handleMessage)
	session.AddHandler(bot.handleInteraction)
	session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		logger.Warn("Gateway disconnected")
	})
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Resumed) {
		logger.Info("Gateway session resumed")
	})
	return bot
}

func (b *Bot) Start() error {
	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	logger.Info("Bot is running",
		"user", b.Session.State.User.Username,
		"admin_role", b.AdminRoleID,
		"admins", len(b.AdminUsers),
	)

	b.wg.Add(1)
	go b.pruneLoop()
	return nil
}

// Close stops every quiz timer and writes the final snapshot before the
// gateway connection is released.
func (b *Bot) Close() error {
	close(b.done)
	b.wg.Wait()

	err := b.Quiz.Shutdown()
	if err != nil {
		logger.Error("Final save failed", "error", err)
	} else {
		logger.Info("Session data saved")
	}
	return errors.Join(err, b.Session.Close())
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	defer b.recoverEvent("ready")
	logger.Info("Logged in", "user", r.User.Username, "guilds", len(r.Guilds))
	b.ready.Store(true)

	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, "", applicationCommands()); err != nil {
		logger.Error("Error registering commands", "error", err)
	} else {
		logger.Info("Registered application commands", "count", len(commandTable))
	}

	b.notifyOnce.Do(b.notifyRestart)
}

// notifyRestart tells each community whose quiz was interrupted by the
// restart that an admin has to start it again.
func (b *Bot) notifyRestart() {
	for _, id := range b.restartFlagged {
		st := b.Quiz.Status(id)
		if !st.NeedsRestart || st.ChannelID == "" {
			continue
		}
		if _, err := b.Session.ChannelMessageSend(st.ChannelID, msgRestartNeeded); err != nil {
			logger.Warn("Could not post restart notice", "community", id, "error", err)
		}
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	defer b.recoverEvent("message")
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	if m.GuildID == "" {
		return
	}

	if name, ok := parseTextCommand(b.Prefix, m.Content); ok {
		b.handleTextCommand(s, m, name)
		return
	}
	b.handleAnswer(s, m)
}

func (b *Bot) handleTextCommand(s *discordgo.Session, m *discordgo.MessageCreate, name string) {
	def, ok := lookupCommand(name)
	if !ok {
		sendReply(s, m, fmt.Sprintf(msgUnknownCommand, b.Prefix), "unknown command")
		return
	}

	cc := commandContext{
		Def:       def,
		GuildID:   m.GuildID,
		GuildName: b.guildName(m.GuildID),
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
	}
	if def.Admin {
		cc.Admin = b.isAdmin(m.GuildID, m.ChannelID, m.Author.ID, m.Member)
	}

	r := b.runCommand(context.Background(), cc)
	if r.Embed == nil {
		sendReply(s, m, r.Content, name)
		return
	}
	if _, err := s.ChannelMessageSendEmbedReply(m.ChannelID, r.Embed, m.Reference()); err != nil {
		logger.Warn("Failed to reply", "reply", name, "channel", m.ChannelID, "error", err)
	}
}

type messageReplier interface {
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// sendReply answers m in its channel. what names the reply in the log when
// the send fails.
func sendReply(s messageReplier, m *discordgo.MessageCreate, content, what string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		logger.Warn("Failed to reply", "reply", what, "channel", m.ChannelID, "error", err)
	}
}

func (b *Bot) handleAnswer(s *discordgo.Session, m *discordgo.MessageCreate) {
	res, err := b.Quiz.SubmitAnswer(context.Background(), m.GuildID, m.ChannelID, m.Author.ID, m.Content)
	if errors.Is(err, quiz.ErrDuplicateAnswer) {
		sendReply(s, m, msgAlreadyAnswered, "duplicate answer")
		return
	}
	if err != nil || !res.Correct {
		return
	}

	if err := s.MessageReactionAdd(m.ChannelID, m.ID, "✅"); err != nil {
		logger.Debug("Couldn't react, continuing", "error", err)
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, fmt.Sprintf(msgCorrect, m.Author.ID, res.Score)); err != nil {
		logger.Warn("Failed to announce correct answer", "error", err)
	}
}

func (b *Bot) guildName(guildID string) string {
	g, err := b.Session.State.Guild(guildID)
	if err != nil {
		return ""
	}
	return g.Name
}

func (b *Bot) pruneLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.pruneEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.prune()
		}
	}
}

// prune drops sessions of communities the bot is no longer a member of.
func (b *Bot) prune() {
	if !b.ready.Load() {
		return
	}
	b.Session.State.RLock()
	ids := make([]string, 0, len(b.Session.State.Guilds))
	for _, g := range b.Session.State.Guilds {
		ids = append(ids, g.ID)
	}
	b.Session.State.RUnlock()

	b.Quiz.Prune(ids)
}

func (b *Bot) recoverEvent(event string) {
	if r := recover(); r != nil {
		logger.Error("Recovered panic in event handler", "event", event, "panic", r)
	}
}
