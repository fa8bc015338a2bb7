package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/airylvat/anime-quiz-bot/quiz"
)

// JSONFile keeps the session snapshot in a single pretty-printed JSON file,
// rewritten wholesale on every save.
type JSONFile struct {
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Load returns an empty map when the file does not exist yet.
func (f *JSONFile) Load() (map[string]*quiz.Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]*quiz.Session), nil
	}
	if err != nil {
		return nil, err
	}

	sessions := make(map[string]*quiz.Session)
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return sessions, nil
}

// Save writes to a temp file next to the target and renames it over, so a
// crash mid-write never leaves a truncated snapshot.
func (f *JSONFile) Save(sessions map[string]*quiz.Session) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
