package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
	"github.com/cory-johannsen/tactics/internal/game/encounter"
)

// ErrEncounterNotFound is returned when no encounter is stored under an ID.
var ErrEncounterNotFound = errors.New("encounter not found")

// EncounterRepository persists encounter snapshots. Queued commands are not stored.
type EncounterRepository struct {
	db *pgxpool.Pool
}

// NewEncounterRepository creates an EncounterRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewEncounterRepository(db *pgxpool.Pool) *EncounterRepository {
	return &EncounterRepository{db: db}
}

// Save stores s and the attributes of every character in it in one transaction.
//
// Postcondition: Returns false without writing when a snapshot with a higher
// sequence is already stored.
func (r *EncounterRepository) Save(ctx context.Context, s encounter.Snapshot) (bool, error) {
	roster, err := json.Marshal(nonNil(s.Roster))
	if err != nil {
		return false, fmt.Errorf("marshalling roster: %w", err)
	}
	initiative := s.Initiative
	if initiative == nil {
		initiative = []encounter.InitiativeEntry{}
	}
	initJSON, err := json.Marshal(initiative)
	if err != nil {
		return false, fmt.Errorf("marshalling initiative: %w", err)
	}

	var written bool
	err = inTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO encounters
				(id, sequence, mode, state, roster, roster_active, active_character, initiative)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8::jsonb)
			ON CONFLICT (id) DO UPDATE SET
				sequence = EXCLUDED.sequence,
				mode = EXCLUDED.mode,
				state = EXCLUDED.state,
				roster = EXCLUDED.roster,
				roster_active = EXCLUDED.roster_active,
				active_character = EXCLUDED.active_character,
				initiative = EXCLUDED.initiative,
				updated_at = NOW()
			WHERE encounters.sequence <= EXCLUDED.sequence`,
			s.EncounterID, int64(s.Sequence), string(s.Mode), s.State,
			string(roster), s.RosterActive, s.ActiveCharacter, string(initJSON),
		)
		if err != nil {
			return fmt.Errorf("saving encounter %s: %w", s.EncounterID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		written = true
		for id, values := range s.Attributes {
			if err := saveAttributes(ctx, tx, id, values); err != nil {
				return err
			}
		}
		return nil
	})
	return written, err
}

// Load returns the stored snapshot of id with the current attributes of its roster.
//
// Postcondition: Returns ErrEncounterNotFound when nothing is stored.
func (r *EncounterRepository) Load(ctx context.Context, id string) (encounter.Snapshot, error) {
	s := encounter.Snapshot{
		EncounterID: id,
		Commands:    map[string][]encounter.CommandEntry{},
		Attributes:  map[string]map[attribute.Name]float64{},
	}
	var (
		seq              int64
		mode             string
		roster, initJSON []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT sequence, mode, state, roster, roster_active, active_character, initiative
		FROM encounters WHERE id = $1`,
		id,
	).Scan(&seq, &mode, &s.State, &roster, &s.RosterActive, &s.ActiveCharacter, &initJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, ErrEncounterNotFound
		}
		return s, fmt.Errorf("loading encounter %s: %w", id, err)
	}
	s.Sequence = uint64(seq)
	s.Mode = encounter.Mode(mode)
	if err := json.Unmarshal(roster, &s.Roster); err != nil {
		return s, fmt.Errorf("unmarshalling roster of %s: %w", id, err)
	}
	if err := json.Unmarshal(initJSON, &s.Initiative); err != nil {
		return s, fmt.Errorf("unmarshalling initiative of %s: %w", id, err)
	}
	for _, charID := range s.Roster {
		values, err := loadAttributes(ctx, r.db, charID)
		if err != nil {
			return s, err
		}
		if len(values) > 0 {
			s.Attributes[charID] = values
		}
	}
	return s, nil
}

// Delete removes the stored encounter. Character attributes are kept.
//
// Postcondition: Returns ErrEncounterNotFound when nothing was stored.
func (r *EncounterRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM encounters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting encounter %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEncounterNotFound
	}
	return nil
}

// IDs returns the stored encounter IDs, most recently updated first.
func (r *EncounterRepository) IDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM encounters ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing encounters: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning encounter row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
