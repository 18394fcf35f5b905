package authority

import (
	"context"

	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

//go:generate mockgen -destination=mock/mock_ports.go -package=mockauthority -source=ports.go

// Publisher replicates snapshots to read-only mirrors.
type Publisher interface {
	Publish(ctx context.Context, s encounter.Snapshot) error
	Remove(ctx context.Context, encounterID string) error
}

// Store persists snapshots so an authority can resume its encounters.
type Store interface {
	// Save reports false when a newer snapshot is already stored.
	Save(ctx context.Context, s encounter.Snapshot) (bool, error)
	// Load fails with postgres.ErrEncounterNotFound for an unknown encounter.
	Load(ctx context.Context, encounterID string) (encounter.Snapshot, error)
	Delete(ctx context.Context, encounterID string) error
}
