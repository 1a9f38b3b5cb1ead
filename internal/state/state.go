// Package state persists the playback session between runs.
package state

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	dbutil "github.com/llehouerou/loopdeck/internal/db"
)

const (
	appName      = "loopdeck"
	dbFileName   = "loopdeck.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *Session
}

// Open opens the store at its default location under the XDG data home.
func Open() (*Manager, error) {
	dbPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the store at dbPath.
func OpenPath(dbPath string) (*Manager, error) {
	sqlDB, err := dbutil.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "init schema")
	}
	return &Manager{db: sqlDB}, nil
}

// DefaultPath returns the database file under the XDG data home.
func DefaultPath() (string, error) {
	p, err := xdg.DataFile(filepath.Join(appName, dbFileName))
	if err != nil {
		return "", errors.Wrap(err, "resolve data path")
	}
	return p, nil
}

// Close flushes a pending save and closes the database.
func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = nil
	m.saveMu.Unlock()

	if pending != nil {
		if err := saveSession(context.Background(), m.db, *pending); err != nil {
			zlog.Warn().Err(err).Msg("state: flush session")
		}
	}

	return m.db.Close()
}

func (m *Manager) GetSession() (*Session, error) {
	return getSession(m.db)
}

// SaveSession schedules a save. Bursts of calls collapse into one write of
// the latest session.
func (m *Manager) SaveSession(s Session) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &s

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		m.saveMu.Unlock()

		if pending != nil {
			if err := saveSession(context.Background(), m.db, *pending); err != nil {
				zlog.Warn().Err(err).Msg("state: save session")
			}
		}
	})
}

// SaveSessionNow writes s immediately, dropping any pending save.
func (m *Manager) SaveSessionNow(ctx context.Context, s Session) error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.pending = nil
	m.saveMu.Unlock()
	return saveSession(ctx, m.db, s)
}

// ClearSession forgets the saved session.
func (m *Manager) ClearSession() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.pending = nil
	m.saveMu.Unlock()
	return clearSession(m.db)
}
