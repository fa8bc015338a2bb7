package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/airylvat/anime-quiz-bot/quiz"
)

type snapshotter interface {
	Load() (map[string]*quiz.Session, error)
	Save(map[string]*quiz.Session) error
}

func sampleSessions() map[string]*quiz.Session {
	q := quiz.Question{Text: "Who wrote Frieren?", CorrectAnswer: "Kanehito Yamada", ImageURL: "https://example.com/f.png"}
	active := quiz.NewSession()
	active.ChannelID = "c1"
	active.Active = true
	active.CurrentQuestion = &q
	active.LastQuestion = &q
	active.AnsweredUsers = []string{"u9"}
	active.Scores = map[string]int{"u1": 3, "u2": 1}
	active.Round = 7

	idle := quiz.NewSession()
	idle.ChannelID = "c2"

	return map[string]*quiz.Session{"g1": active, "g2": idle}
}

func backends(t *testing.T) map[string]snapshotter {
	t.Helper()
	dir := t.TempDir()
	sqlite, err := NewSQLite(filepath.Join(dir, "quiz.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]snapshotter{
		"json":   NewJSONFile(filepath.Join(dir, "server_data.json")),
		"sqlite": sqlite,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for name, snap := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := snap.Save(sampleSessions()); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := snap.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("Load() returned %d sessions, want 2", len(got))
			}

			g1 := got["g1"]
			if !g1.Active || g1.ChannelID != "c1" || g1.Round != 7 {
				t.Errorf("g1 = %+v", g1)
			}
			if g1.Scores["u1"] != 3 || g1.Scores["u2"] != 1 {
				t.Errorf("g1 scores = %v", g1.Scores)
			}
			if g1.CurrentQuestion == nil || g1.CurrentQuestion.ImageURL != "https://example.com/f.png" {
				t.Errorf("g1 current question = %+v", g1.CurrentQuestion)
			}
			if got["g2"].ChannelID != "c2" || got["g2"].Active {
				t.Errorf("g2 = %+v", got["g2"])
			}
		})
	}
}

func TestSnapshotSaveReplacesPrevious(t *testing.T) {
	for name, snap := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := snap.Save(sampleSessions()); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if err := snap.Save(map[string]*quiz.Session{"g3": quiz.NewSession()}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := snap.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if _, ok := got["g1"]; ok || len(got) != 1 {
				t.Errorf("Load() = %v, want only g3", got)
			}
		})
	}
}

func TestSnapshotLoadEmpty(t *testing.T) {
	for name, snap := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := snap.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Load() = %v, want empty", got)
			}
		})
	}
}

func TestJSONFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewJSONFile(path).Load(); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

func TestStoreReloadThroughJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_data.json")
	if err := NewJSONFile(path).Save(sampleSessions()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	store := quiz.NewStore(NewJSONFile(path))
	flagged := store.Load()
	if len(flagged) != 1 || flagged[0] != "g1" {
		t.Fatalf("flagged = %v, want [g1]", flagged)
	}
	sess, _ := store.Get("g1")
	if sess.Active || !sess.NeedsRestart || sess.CurrentQuestion != nil || len(sess.AnsweredUsers) != 0 {
		t.Errorf("reloaded g1 = %+v", sess)
	}
}
