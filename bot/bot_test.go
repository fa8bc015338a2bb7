package bot

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/airylvat/anime-quiz-bot/logger"
	"github.com/airylvat/anime-quiz-bot/quiz"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseTextCommand(t *testing.T) {
	tests := []struct {
		content string
		want    string
		ok      bool
	}{
		{"!!trivia start", "start", true},
		{"  !!trivia   STOP  now", "stop", true},
		{"!!trivia", "help", true},
		{"!!triviastart", "", false},
		{"naruto", "", false},
		{"hey !!trivia start", "", false},
	}

	for _, tt := range tests {
		got, ok := parseTextCommand("!!trivia", tt.content)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseTextCommand(%q) = %q, %v; want %q, %v", tt.content, got, ok, tt.want, tt.ok)
		}
	}
}

func TestGate(t *testing.T) {
	setup, _ := lookupCommand("setup")
	start, _ := lookupCommand("start")
	score, _ := lookupCommand("score")

	tests := []struct {
		name    string
		cc      commandContext
		bound   string
		wantMsg string
		wantOK  bool
	}{
		{"setup before binding", commandContext{Def: setup, ChannelID: "c1", Admin: true}, "", "", true},
		{"setup from another channel", commandContext{Def: setup, ChannelID: "c2", Admin: true}, "c1", "", true},
		{"setup without privilege", commandContext{Def: setup, ChannelID: "c1"}, "", msgNoPermission, false},
		{"start before binding", commandContext{Def: start, ChannelID: "c1", Admin: true}, "", msgNoChannel, false},
		{"start in wrong channel", commandContext{Def: start, ChannelID: "c2", Admin: true}, "c1", fmt.Sprintf(msgWrongChannel, "c1"), false},
		{"start without privilege", commandContext{Def: start, ChannelID: "c1"}, "c1", msgNoPermission, false},
		{"start allowed", commandContext{Def: start, ChannelID: "c1", Admin: true}, "c1", "", true},
		{"score is public", commandContext{Def: score, ChannelID: "c1"}, "c1", "", true},
		{"score still needs the channel", commandContext{Def: score, ChannelID: "c1"}, "", msgNoChannel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := gate(tt.cc, tt.bound)
			if msg != tt.wantMsg || ok != tt.wantOK {
				t.Errorf("gate() = %q, %v; want %q, %v", msg, ok, tt.wantMsg, tt.wantOK)
			}
		})
	}
}

func TestAnswerID(t *testing.T) {
	round, index, ok := parseAnswerID(answerID(12, 3))
	if !ok || round != 12 || index != 3 {
		t.Fatalf("round trip = %d, %d, %v", round, index, ok)
	}

	for _, id := range []string{"", "answer", "answer:1", "answer:x:1", "answer:1:y", "vote:1:2", "answer:1:2:3"} {
		if _, _, ok := parseAnswerID(id); ok {
			t.Errorf("parseAnswerID(%q) accepted", id)
		}
	}
}

func TestMissingPermissions(t *testing.T) {
	all := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory | discordgo.PermissionEmbedLinks)

	if got := missingPermissions(all); len(got) != 0 {
		t.Errorf("all granted: missing %v", got)
	}
	if got := missingPermissions(discordgo.PermissionAdministrator); len(got) != 0 {
		t.Errorf("administrator: missing %v", got)
	}

	got := missingPermissions(all &^ discordgo.PermissionEmbedLinks)
	if len(got) != 1 || got[0] != "Embed Links" {
		t.Errorf("without embed links: missing %v", got)
	}
	if got := missingPermissions(0); len(got) != len(requiredPermissions) {
		t.Errorf("none granted: missing %v", got)
	}
}

func TestErrorReply(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{quiz.ErrAlreadyActive, msgAlreadyActive},
		{quiz.ErrAlreadyInactive, msgAlreadyInactive},
		{fmt.Errorf("next: %w", quiz.ErrNotActive), msgNotActive},
		{quiz.ErrNoChannel, msgNoChannel},
		{quiz.ErrDuplicateAnswer, msgAlreadyAnswered},
		{quiz.ErrStaleRound, msgQuestionClosed},
		{quiz.ErrNoActiveQuestion, msgQuestionClosed},
		{quiz.ErrShuttingDown, msgShuttingDown},
		{fmt.Errorf("%w: %v", quiz.ErrPostFailed, errors.New("unknown channel")), msgPostFailed},
		{errors.New("disk full"), msgCommandFailed},
	}

	for _, tt := range tests {
		if got := errorReply(tt.err); got != tt.want {
			t.Errorf("errorReply(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestChoiceReply(t *testing.T) {
	if got := choiceReply(quiz.AnswerResult{Correct: true}, nil); got != msgCorrectChoice {
		t.Errorf("correct: %q", got)
	}
	if got := choiceReply(quiz.AnswerResult{}, nil); got != msgWrongChoice {
		t.Errorf("wrong: %q", got)
	}
	if got := choiceReply(quiz.AnswerResult{}, quiz.ErrWrongChannel); got != msgQuestionClosed {
		t.Errorf("wrong channel: %q", got)
	}
	if got := choiceReply(quiz.AnswerResult{}, quiz.ErrDuplicateAnswer); got != msgAlreadyAnswered {
		t.Errorf("duplicate: %q", got)
	}
}

func TestQuestionComponents(t *testing.T) {
	round := quiz.Round{
		Number:   4,
		Question: quiz.Question{Text: "Pick one", CorrectAnswer: "a", Options: []string{"a", "b", "c", "d", "e", "f", "g"}},
	}

	rows := questionComponents(round, true)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	first := rows[0].(discordgo.ActionsRow)
	second := rows[1].(discordgo.ActionsRow)
	if len(first.Components) != 5 || len(second.Components) != 2 {
		t.Fatalf("row sizes = %d, %d", len(first.Components), len(second.Components))
	}

	btn := second.Components[1].(discordgo.Button)
	if btn.CustomID != answerID(4, 6) || btn.Label != "g" || !btn.Disabled {
		t.Errorf("last button = %+v", btn)
	}

	text := quiz.Round{Number: 1, Question: quiz.Question{Text: "Name it", CorrectAnswer: "x"}}
	if got := questionComponents(text, false); got != nil {
		t.Errorf("text question has components: %v", got)
	}
}

func TestFormatLeaderboard(t *testing.T) {
	if got := formatLeaderboard(nil); got != "No points yet!" {
		t.Errorf("empty = %q", got)
	}

	got := formatLeaderboard([]quiz.ScoreEntry{
		{UserID: "u1", Score: 5, Rank: 1},
		{UserID: "u2", Score: 3, Rank: 2},
	})
	want := "**1.** <@u1>: 5 points\n**2.** <@u2>: 3 points"
	if got != want {
		t.Errorf("formatLeaderboard = %q, want %q", got, want)
	}
}

func TestApplicationCommands(t *testing.T) {
	cmds := applicationCommands()
	if len(cmds) != len(commandTable) {
		t.Fatalf("registered %d commands, want %d", len(cmds), len(commandTable))
	}
	for _, cmd := range cmds {
		def, ok := lookupCommand(cmd.Name)
		if !ok {
			t.Fatalf("unknown command %q", cmd.Name)
		}
		restricted := cmd.DefaultMemberPermissions != nil
		if restricted != def.Admin {
			t.Errorf("%s: restricted = %v, admin = %v", cmd.Name, restricted, def.Admin)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	got := truncate(strings.Repeat("ア", 100), 80)
	if n := len([]rune(got)); n != 80 || !strings.HasSuffix(got, "…") {
		t.Errorf("truncate long = %d runes, %q", n, got)
	}
}

type failingReplier struct {
	calls int
	ref   *discordgo.MessageReference
}

func (r *failingReplier) ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.calls++
	r.ref = reference
	return nil, errors.New("missing access")
}

func TestSendReplyLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(zap.NewNop()) })

	r := &failingReplier{}
	m := &discordgo.MessageCreate{Message: &discordgo.Message{ID: "m1", ChannelID: "c1", GuildID: "g1"}}
	sendReply(r, m, msgAlreadyAnswered, "duplicate answer")

	if r.calls != 1 || r.ref == nil || r.ref.MessageID != "m1" {
		t.Fatalf("calls = %d, reference = %+v", r.calls, r.ref)
	}
	entries := logs.FilterMessage("Failed to reply").All()
	if len(entries) != 1 {
		t.Fatalf("logged %d warnings, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["reply"]; got != "duplicate answer" {
		t.Errorf("reply field = %v, want %q", got, "duplicate answer")
	}
}
