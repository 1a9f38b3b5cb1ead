package main

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/llehouerou/loopdeck/internal/errmsg"
	"github.com/llehouerou/loopdeck/internal/playback"
	"github.com/llehouerou/loopdeck/internal/playlist"
	"github.com/llehouerou/loopdeck/internal/state"
)

// sessionKeeper mirrors playback progress into the state store. A nil
// store turns every method into a no-op.
type sessionKeeper struct {
	store state.Interface
	track playback.TrackMode
	nav   playlist.NavigationMode
}

// load returns the saved session, or nil when there is none or it cannot
// be read.
func (k sessionKeeper) load() *state.Session {
	if k.store == nil {
		return nil
	}
	s, err := k.store.GetSession()
	if err != nil {
		zlog.Warn().Msg(errmsg.Format(errmsg.OpSessionLoad, err))
		return nil
	}
	return s
}

func (k sessionKeeper) session(snap playback.Snapshot) state.Session {
	return state.Session{
		Location:       snap.Item.Location,
		SubPath:        snap.Item.SubPath,
		Title:          snap.Item.DisplayTitle(),
		Position:       snap.Position,
		TrackMode:      k.track.String(),
		NavigationMode: k.nav.String(),
	}
}

// schedule queues a debounced save of snap.
func (k sessionKeeper) schedule(snap playback.Snapshot, ok bool) {
	if k.store == nil || !ok {
		return
	}
	k.store.SaveSession(k.session(snap))
}

// flush writes snap now. With ok false the saved session is cleared.
func (k sessionKeeper) flush(ctx context.Context, snap playback.Snapshot, ok bool) {
	if k.store == nil {
		return
	}
	var err error
	if ok {
		err = k.store.SaveSessionNow(ctx, k.session(snap))
	} else {
		err = k.store.ClearSession()
	}
	if err != nil {
		zlog.Warn().Msg(errmsg.Format(errmsg.OpSessionSave, err))
	}
}

// resumePoint finds the saved item in pl. It reports false when the
// session is missing or its item is no longer part of the playlist.
func resumePoint(pl *playlist.Playlist, saved *state.Session) (int, time.Duration, bool) {
	if saved == nil {
		return 0, 0, false
	}
	idx := pl.IndexOf(saved.Location, saved.SubPath)
	if idx < 0 {
		return 0, 0, false
	}
	return idx, saved.Position, true
}
