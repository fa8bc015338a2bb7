package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/airylvat/anime-quiz-bot/logger"
	"github.com/airylvat/anime-quiz-bot/quiz"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores the session snapshot as one JSON document per community.
// Every save replaces the whole table in a single transaction.
type SQLite struct {
	*sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	logger.Info("Opening database", "path", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS sessions (
            community_id TEXT PRIMARY KEY,
            data TEXT NOT NULL
        );
    `)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db}, nil
}

func (db *SQLite) Load() (map[string]*quiz.Session, error) {
	rows, err := db.Query("SELECT community_id, data FROM sessions ORDER BY community_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make(map[string]*quiz.Session)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		var sess quiz.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", id, err)
		}
		sessions[id] = &sess
	}

	return sessions, rows.Err()
}

func (db *SQLite) Save(sessions map[string]*quiz.Session) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM sessions"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO sessions (community_id, data) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, sess := range sessions {
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session %s: %w", id, err)
		}
		if _, err := stmt.Exec(id, string(data)); err != nil {
			return err
		}
	}

	return tx.Commit()
}
