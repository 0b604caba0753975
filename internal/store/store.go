// Package store is the device-local persistence layer: a string-keyed durable
// KV holding the cached task list, device settings and small ancillary state.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	_ "modernc.org/sqlite"

	"liquid-tasks/internal/models"
)

// Keys of the local store. Task data is cleared on logout; the rest are
// device-level settings that survive sign-outs.
const (
	KeyTasks          = "tasks"
	KeyTheme          = "theme"
	KeyAnimation      = "animation"
	KeyHaptics        = "haptics"
	KeySounds         = "sounds"
	KeyGuestPhoto     = "guest_photo"
	KeyWeather        = "weather"
	KeyLastDailyCheck = "last_daily_check"
	KeyStreak         = "streak"
	KeyGuestID        = "guest_id"
	KeySession        = "session"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("local store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS prefs (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`
	_, err := s.db.Exec(ddl)
	return err
}

// Get returns the stored value and whether the key exists.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?;`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		key, value, now)
	return err
}

func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM prefs WHERE key = ?;`, key)
	return err
}

// LoadTasks reads the cached task list. A corrupt or unreadable entry is
// logged and treated as an empty list rather than surfaced.
func (s *Store) LoadTasks() []models.Task {
	raw, ok, err := s.Get(KeyTasks)
	if err != nil {
		log.Printf("⚠️  Failed to read local task list: %v", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var tasks []models.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		log.Printf("⚠️  Corrupt local task list, starting empty: %v", err)
		return nil
	}
	return tasks
}

func (s *Store) SaveTasks(tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}
	raw, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return s.Set(KeyTasks, string(raw))
}

func (s *Store) ClearTasks() error {
	return s.Delete(KeyTasks)
}

// GuestID returns the stable per-device id, generating it on first use.
func (s *Store) GuestID() (string, error) {
	id, ok, err := s.Get(KeyGuestID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.Must(uuid.NewV4()).String()
	if err := s.Set(KeyGuestID, id); err != nil {
		return "", err
	}
	return id, nil
}

// GetBool reads a flag key. Missing keys report the fallback.
func (s *Store) GetBool(key string, fallback bool) bool {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s *Store) SetBool(key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

func (s *Store) GetInt(key string, fallback int) int {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s *Store) SetInt(key string, value int) error {
	return s.Set(key, strconv.Itoa(value))
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
