package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tactics/internal/game/attribute"
)

// AttributeRepository persists one row per character attribute.
type AttributeRepository struct {
	db *pgxpool.Pool
}

// NewAttributeRepository creates an AttributeRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewAttributeRepository(db *pgxpool.Pool) *AttributeRepository {
	return &AttributeRepository{db: db}
}

// Save upserts every value in values for characterID. Attributes absent from
// values are left untouched.
//
// Precondition: characterID must be non-empty.
func (r *AttributeRepository) Save(ctx context.Context, characterID string, values map[attribute.Name]float64) error {
	return saveAttributes(ctx, r.db, characterID, values)
}

// Load returns the stored attributes of characterID.
//
// Postcondition: Returns an empty map when nothing is stored.
func (r *AttributeRepository) Load(ctx context.Context, characterID string) (map[attribute.Name]float64, error) {
	return loadAttributes(ctx, r.db, characterID)
}

// Delete removes every stored attribute of characterID.
func (r *AttributeRepository) Delete(ctx context.Context, characterID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM character_attributes WHERE character_id = $1`, characterID); err != nil {
		return fmt.Errorf("deleting attributes of %s: %w", characterID, err)
	}
	return nil
}

func saveAttributes(ctx context.Context, q querier, characterID string, values map[attribute.Name]float64) error {
	if len(values) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for name, value := range values {
		batch.Queue(`
			INSERT INTO character_attributes (character_id, name, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (character_id, name)
			DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			characterID, string(name), value)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving attributes of %s: %w", characterID, err)
	}
	return nil
}

func loadAttributes(ctx context.Context, q querier, characterID string) (map[attribute.Name]float64, error) {
	rows, err := q.Query(ctx, `
		SELECT name, value FROM character_attributes WHERE character_id = $1`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading attributes of %s: %w", characterID, err)
	}
	defer rows.Close()

	values := make(map[attribute.Name]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning attribute row: %w", err)
		}
		values[attribute.Name(name)] = value
	}
	return values, rows.Err()
}
