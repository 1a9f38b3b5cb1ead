package state

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	dbutil "github.com/llehouerou/loopdeck/internal/db"
)

// Session is the resumable playback state: the item under the cursor, the
// position in it and the modes in effect.
type Session struct {
	Location       string
	SubPath        string
	Title          string
	Position       time.Duration
	TrackMode      string // "regular" or "looped"
	NavigationMode string // "ordered", "looped" or "shuffle"
	SavedAt        time.Time
}

func getSession(db *sql.DB) (*Session, error) {
	row := db.QueryRow(`
		SELECT location, sub_path, title, position_ms, track_mode, navigation_mode, saved_at
		FROM playback_session WHERE id = 1
	`)

	var s Session
	var title, trackMode, navMode sql.NullString
	var positionMs, savedAt int64
	err := row.Scan(&s.Location, &s.SubPath, &title, &positionMs, &trackMode, &navMode, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no saved session is valid on first run
	}
	if err != nil {
		return nil, errors.Wrap(err, "read session")
	}

	s.Title = dbutil.NullStringValue(title)
	s.TrackMode = dbutil.NullStringValue(trackMode)
	s.NavigationMode = dbutil.NullStringValue(navMode)
	s.Position = time.Duration(positionMs) * time.Millisecond
	s.SavedAt = time.Unix(savedAt, 0)
	return &s, nil
}

func saveSession(ctx context.Context, db *sql.DB, s Session) error {
	if s.Location == "" {
		return errors.AssertionFailedf("session without location")
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now()
	}
	return dbutil.WithTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO playback_session (id, location, sub_path, title, position_ms, track_mode, navigation_mode, saved_at)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				location = excluded.location,
				sub_path = excluded.sub_path,
				title = excluded.title,
				position_ms = excluded.position_ms,
				track_mode = excluded.track_mode,
				navigation_mode = excluded.navigation_mode,
				saved_at = excluded.saved_at
		`, s.Location, s.SubPath, s.Title, max(s.Position, 0).Milliseconds(),
			s.TrackMode, s.NavigationMode, s.SavedAt.Unix())
		return errors.Wrap(err, "write session")
	})
}

func clearSession(db *sql.DB) error {
	_, err := db.Exec(`DELETE FROM playback_session WHERE id = 1`)
	return errors.Wrap(err, "clear session")
}
