package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

// Store is the append-only audit journal of committed core mutations. The core
// ledger never reads from it; it exists so operators can reconstruct who did
// what after the fact.
type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// Append records one committed mutation.
func (s *Store) Append(ctx context.Context, e domain.JournalEntry) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO journal (id, op, actor, entity_key, amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		e.ID, e.Op, string(e.Actor), e.EntityKey, e.Amount, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal insert failed: %w", err)
	}
	return nil
}

// EntriesByActor returns the actor's journal, newest first.
func (s *Store) EntriesByActor(ctx context.Context, actor domain.Account) ([]domain.JournalEntry, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT id, op, actor, entity_key, amount, created_at FROM journal WHERE actor = $1 ORDER BY created_at DESC",
		string(actor))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var actor string
		if err := rows.Scan(&e.ID, &e.Op, &actor, &e.EntityKey, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Actor = domain.Account(actor)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
