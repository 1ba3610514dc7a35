package syncer

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/meltforce/liftplan/internal/models"
)

// BackupStore keeps a local copy of in-progress exercise data so a session
// survives a crashed or offline client. Written continuously by the
// autosaver; consulted once at resume time and only honored when newer than
// the server's record.
type BackupStore struct {
	db *sql.DB
}

// Backup is one stored session backup.
type Backup struct {
	SessionID uuid.UUID
	Exercises []models.SessionExercise
	Duration  string
	SavedAt   time.Time
}

// OpenBackupStore opens (or creates) the SQLite backup database at
// dir/backup.db.
func OpenBackupStore(dir string) (*BackupStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "backup.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening backup db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session_backups (
		session_id TEXT PRIMARY KEY,
		exercises  TEXT NOT NULL,
		duration   TEXT NOT NULL,
		saved_at   TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating backup table: %w", err)
	}

	return &BackupStore{db: db}, nil
}

// Save upserts the backup for a session.
func (b *BackupStore) Save(sessionID uuid.UUID, exercises []models.SessionExercise, duration string, savedAt time.Time) error {
	data, err := json.Marshal(exercises)
	if err != nil {
		return fmt.Errorf("encoding exercises: %w", err)
	}

	_, err = b.db.Exec(
		`INSERT OR REPLACE INTO session_backups (session_id, exercises, duration, saved_at) VALUES (?, ?, ?, ?)`,
		sessionID.String(), string(data), duration, savedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}

// Load returns the backup for a session, or (nil, nil) if none exists.
func (b *BackupStore) Load(sessionID uuid.UUID) (*Backup, error) {
	var exercises string
	backup := &Backup{SessionID: sessionID}

	err := b.db.QueryRow(
		`SELECT exercises, duration, saved_at FROM session_backups WHERE session_id = ?`,
		sessionID.String(),
	).Scan(&exercises, &backup.Duration, &backup.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}

	if err := json.Unmarshal([]byte(exercises), &backup.Exercises); err != nil {
		return nil, fmt.Errorf("decoding backup exercises: %w", err)
	}
	return backup, nil
}

// Delete discards the backup for a session.
func (b *BackupStore) Delete(sessionID uuid.UUID) error {
	_, err := b.db.Exec(`DELETE FROM session_backups WHERE session_id = ?`, sessionID.String())
	return err
}

// Close closes the backup database.
func (b *BackupStore) Close() error {
	return b.db.Close()
}
