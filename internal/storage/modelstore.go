package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ModelInfo describes the cached model artifact.
type ModelInfo struct {
	SnapshotID string
	CardCount  int
	DeckCount  int
	Config     string // JSON-encoded fitting parameters
	CreatedAt  time.Time
}

// CardRow is one entry of the cached card index.
type CardRow struct {
	Idx       int
	OracleID  string
	Frequency int
}

// NeighborRow is one cached neighbor entry. Rank is the position within the
// card's neighbor list, starting at 0.
type NeighborRow struct {
	CardIdx     int
	Rank        int
	NeighborIdx int
	Similarity  float64
}

// ModelStore reads and writes the fitted model cache.
type ModelStore struct {
	db *DB
}

// NewModelStore creates a model store over an open cache database.
func NewModelStore(db *DB) *ModelStore {
	return &ModelStore{db: db}
}

// Save replaces the cached model in a single transaction.
func (s *ModelStore) Save(ctx context.Context, info ModelInfo, cards []CardRow, neighbors []NeighborRow) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback returns error if already committed, which is fine
	}()

	for _, table := range []string{"neighbors", "cards", "cache_info"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_info (id, snapshot_id, card_count, deck_count, config, created_at)
		VALUES (1, ?, ?, ?, ?, ?)
	`, info.SnapshotID, info.CardCount, info.DeckCount, info.Config, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save cache info: %w", err)
	}

	cardStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (idx, oracle_id, frequency) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare card statement: %w", err)
	}
	defer cardStmt.Close()

	for _, card := range cards {
		if _, err := cardStmt.ExecContext(ctx, card.Idx, card.OracleID, card.Frequency); err != nil {
			return fmt.Errorf("failed to save card %s: %w", card.OracleID, err)
		}
	}

	neighborStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO neighbors (card_idx, rank, neighbor_idx, similarity) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare neighbor statement: %w", err)
	}
	defer neighborStmt.Close()

	for _, n := range neighbors {
		if _, err := neighborStmt.ExecContext(ctx, n.CardIdx, n.Rank, n.NeighborIdx, n.Similarity); err != nil {
			return fmt.Errorf("failed to save neighbor row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Info retrieves the cached model metadata. Returns nil without error when
// the cache holds no model.
func (s *ModelStore) Info(ctx context.Context) (*ModelInfo, error) {
	query := `
		SELECT snapshot_id, card_count, deck_count, config, created_at
		FROM cache_info
		WHERE id = 1
	`

	var info ModelInfo
	err := s.db.Conn().QueryRowContext(ctx, query).Scan(
		&info.SnapshotID, &info.CardCount, &info.DeckCount, &info.Config, &info.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache info: %w", err)
	}

	return &info, nil
}

// Cards retrieves the cached card index ordered by column index.
func (s *ModelStore) Cards(ctx context.Context) ([]CardRow, error) {
	query := `
		SELECT idx, oracle_id, frequency
		FROM cards
		ORDER BY idx ASC
	`

	rows, err := s.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []CardRow
	for rows.Next() {
		var card CardRow
		if err := rows.Scan(&card.Idx, &card.OracleID, &card.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}

	return cards, nil
}

// Neighbors retrieves the cached neighbor lists ordered by card and rank.
func (s *ModelStore) Neighbors(ctx context.Context) ([]NeighborRow, error) {
	query := `
		SELECT card_idx, rank, neighbor_idx, similarity
		FROM neighbors
		ORDER BY card_idx ASC, rank ASC
	`

	rows, err := s.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached neighbors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var neighbors []NeighborRow
	for rows.Next() {
		var n NeighborRow
		if err := rows.Scan(&n.CardIdx, &n.Rank, &n.NeighborIdx, &n.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor row: %w", err)
		}
		neighbors = append(neighbors, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating neighbors: %w", err)
	}

	return neighbors, nil
}
