package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"chambers/internal/apperr"
	"chambers/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the durable keyed storage for exercise and session documents.
// Documents are read and written whole; there are no field-level updates.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		exercise_id TEXT NOT NULL,
		owner_id INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		data TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (exercise_id) REFERENCES exercises(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'trainee',
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveExercise upserts an exercise document whole. The owner id is only
// written on first insert; ownership never changes afterward.
func (s *Store) SaveExercise(ex *model.Exercise, ownerID int64) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exercise: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO exercises (id, owner_id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		ex.ID, ownerID, string(data), time.Now(),
	)
	return err
}

// GetExercise returns an exercise document, or nil if absent.
func (s *Store) GetExercise(id string) (*model.Exercise, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM exercises WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ex model.Exercise
	if err := json.Unmarshal([]byte(data), &ex); err != nil {
		return nil, fmt.Errorf("unmarshal exercise %s: %w", id, err)
	}
	return &ex, nil
}

// ExerciseOwner returns the owner's user id, or 0 for unowned templates.
func (s *Store) ExerciseOwner(id string) (int64, error) {
	var ownerID int64
	err := s.db.QueryRow(`SELECT owner_id FROM exercises WHERE id = ?`, id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, apperr.ErrNotFound
	}
	return ownerID, err
}

// ListExercises returns all exercise documents, most recently updated first.
func (s *Store) ListExercises() ([]*model.Exercise, error) {
	rows, err := s.db.Query(`SELECT data FROM exercises ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exercises []*model.Exercise
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var ex model.Exercise
		if err := json.Unmarshal([]byte(data), &ex); err != nil {
			return nil, fmt.Errorf("unmarshal exercise: %w", err)
		}
		exercises = append(exercises, &ex)
	}
	return exercises, rows.Err()
}

// DeleteExercise removes an exercise document.
func (s *Store) DeleteExercise(id string) error {
	_, err := s.db.Exec(`DELETE FROM exercises WHERE id = ?`, id)
	return err
}

// SaveSession persists a session document whole. Saves are a compare-and-
// swap on the session's version: a session with Version 0 is inserted, any
// other version must match the stored row or the save fails with
// apperr.ErrConflict. On success the in-memory Version is advanced.
func (s *Store) SaveSession(sess *model.Session, ownerID int64) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if sess.Version == 0 {
		_, err = s.db.Exec(
			`INSERT INTO sessions (id, exercise_id, owner_id, version, data, updated_at)
			 VALUES (?, ?, ?, 1, ?, ?)`,
			sess.ID, sess.ExerciseID, ownerID, string(data), time.Now(),
		)
		if err != nil {
			return err
		}
		sess.Version = 1
		return nil
	}

	res, err := s.db.Exec(
		`UPDATE sessions SET data = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(data), time.Now(), sess.ID, sess.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("save session %s at version %d: %w", sess.ID, sess.Version, apperr.ErrConflict)
	}
	sess.Version++
	return nil
}

// GetSession returns a session document with its current version, or nil if
// absent.
func (s *Store) GetSession(id string) (*model.Session, error) {
	var (
		data    string
		version int64
	)
	err := s.db.QueryRow(`SELECT data, version FROM sessions WHERE id = ?`, id).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	sess.Version = version
	return &sess, nil
}

// SessionOwner returns the owning trainee's user id, or 0 if unowned.
func (s *Store) SessionOwner(id string) (int64, error) {
	var ownerID int64
	err := s.db.QueryRow(`SELECT owner_id FROM sessions WHERE id = ?`, id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, apperr.ErrNotFound
	}
	return ownerID, err
}

// ListSessions returns all session documents, most recently updated first.
func (s *Store) ListSessions() ([]*model.Session, error) {
	rows, err := s.db.Query(`SELECT data, version FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []*model.Session
	for rows.Next() {
		var (
			data    string
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, err
		}
		var sess model.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		sess.Version = version
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session document.
func (s *Store) DeleteSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// GetImportedFileHash returns the recorded content hash for a seed file, or
// empty string if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash of an imported seed file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = ?`,
		path, hash, hash,
	)
	return err
}
