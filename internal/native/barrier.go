package native

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Barrier exposes the engine operations, each waiting for the Slot to
// resolve before it delegates.
type Barrier struct {
	slot *Slot
}

// NewBarrier returns a barrier over slot.
func NewBarrier(slot *Slot) *Barrier {
	return &Barrier{slot: slot}
}

// Slot returns the slot the barrier waits on.
func (b *Barrier) Slot() *Slot {
	return b.slot
}

// DetectFormat lists the playable tracks in data.
func (b *Barrier) DetectFormat(ctx context.Context, data []byte) ([]Candidate, error) {
	engine, err := b.slot.Engine(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := engine.DetectFormat(data)
	if err != nil {
		return nil, errors.Wrap(err, "detect format")
	}
	return candidates, nil
}

// LoadModule opens a decode session for the track at subPath.
func (b *Barrier) LoadModule(ctx context.Context, data []byte, subPath string) (Session, error) {
	engine, err := b.slot.Engine(ctx)
	if err != nil {
		return nil, err
	}
	session, err := engine.LoadModule(data, subPath)
	if err != nil {
		if subPath != "" {
			return nil, errors.Wrapf(err, "load module %q", subPath)
		}
		return nil, errors.Wrap(err, "load module")
	}
	return session, nil
}

// EnumerateCapabilities visits every capability the engine supports.
func (b *Barrier) EnumerateCapabilities(ctx context.Context, visit func(Capability)) error {
	engine, err := b.slot.Engine(ctx)
	if err != nil {
		return err
	}
	engine.EnumerateCapabilities(visit)
	return nil
}

// QueryOptions returns the engine options.
func (b *Barrier) QueryOptions(ctx context.Context) (Options, error) {
	engine, err := b.slot.Engine(ctx)
	if err != nil {
		return Options{}, err
	}
	return engine.QueryOptions(), nil
}
