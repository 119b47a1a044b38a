package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kitchen-rush/internal/domain/ledger"
)

const (
	insertPlayerSQL = `INSERT INTO players (id, money, satisfaction, starting_balance, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	getPlayerSQL = `SELECT id, money, satisfaction, starting_balance, created_at FROM players WHERE id = $1`

	lockPlayerSQL = getPlayerSQL + ` FOR UPDATE`

	updatePlayerSQL = `UPDATE players SET money = $2, satisfaction = $3 WHERE id = $1`

	listStockSQL = `SELECT ingredient_id, quantity FROM player_stock WHERE player_id = $1`

	upsertStockSQL = `INSERT INTO player_stock (player_id, ingredient_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (player_id, ingredient_id) DO UPDATE SET quantity = EXCLUDED.quantity`

	listDiscoveredSQL = `SELECT recipe_id FROM player_recipes WHERE player_id = $1`

	insertDiscoveredSQL = `INSERT INTO player_recipes (player_id, recipe_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	insertEntrySQL = `INSERT INTO ledger_entries (id, player_id, kind, amount, description, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	listEntriesSQL = `SELECT id, player_id, kind, amount, description, order_id, created_at
		FROM ledger_entries WHERE player_id = $1 ORDER BY seq DESC LIMIT $2`

	exportEntriesSQL = `SELECT id, player_id, kind, amount, description, order_id, created_at
		FROM ledger_entries WHERE created_at >= $1 ORDER BY seq`
)

var _ ledger.Store = (*LedgerStore)(nil)

// LedgerStore implements ledger.Store backed by PostgreSQL. Update locks the
// player row with SELECT ... FOR UPDATE for the length of the transaction.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore returns a LedgerStore that uses the given pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Create inserts the progress unless the player already exists.
func (s *LedgerStore) Create(ctx context.Context, p *ledger.Progress) (bool, error) {
	created := false
	err := withTx(ctx, s.pool, func(ctx context.Context) error {
		q := conn(ctx, s.pool)
		tag, err := q.Exec(ctx, insertPlayerSQL, p.PlayerID, p.Money, p.Satisfaction, p.StartingBalance, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting player %q: %w", p.PlayerID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		created = true
		return s.writeDiff(ctx, q, &ledger.Progress{Stock: map[string]int{}, Discovered: map[string]bool{}}, p)
	})
	return created, err
}

// Get returns the player's progress.
func (s *LedgerStore) Get(ctx context.Context, playerID string) (*ledger.Progress, error) {
	return s.load(ctx, conn(ctx, s.pool), getPlayerSQL, playerID)
}

// Update runs fn on the locked progress and writes back what changed.
func (s *LedgerStore) Update(ctx context.Context, playerID string, fn func(p *ledger.Progress) ([]ledger.Entry, error)) (*ledger.Progress, error) {
	var result *ledger.Progress
	err := withTx(ctx, s.pool, func(ctx context.Context) error {
		q := conn(ctx, s.pool)
		before, err := s.load(ctx, q, lockPlayerSQL, playerID)
		if err != nil {
			return err
		}

		after := before.Clone()
		entries, err := fn(after)
		if err != nil {
			return err
		}

		if _, err := q.Exec(ctx, updatePlayerSQL, playerID, after.Money, after.Satisfaction); err != nil {
			return fmt.Errorf("updating player %q: %w", playerID, err)
		}
		if err := s.writeDiff(ctx, q, before, after); err != nil {
			return err
		}
		for _, e := range entries {
			_, err := q.Exec(ctx, insertEntrySQL,
				e.ID, e.PlayerID, string(e.Kind), e.Amount, e.Description, e.OrderID, e.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("inserting ledger entry: %w", err)
			}
		}
		result = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Entries returns the player's entries, newest first.
func (s *LedgerStore) Entries(ctx context.Context, playerID string, limit int) ([]ledger.Entry, error) {
	q := conn(ctx, s.pool)
	if _, err := s.load(ctx, q, getPlayerSQL, playerID); err != nil {
		return nil, err
	}
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := q.Query(ctx, listEntriesSQL, playerID, lim)
	if err != nil {
		return nil, fmt.Errorf("listing entries of %q: %w", playerID, err)
	}
	return pgx.CollectRows(rows, scanEntry)
}

// Export streams every entry created at or after since, oldest first, to fn.
// Iteration stops at the first error fn returns.
func (s *LedgerStore) Export(ctx context.Context, since time.Time, fn func(ledger.Entry) error) error {
	rows, err := conn(ctx, s.pool).Query(ctx, exportEntriesSQL, since)
	if err != nil {
		return fmt.Errorf("exporting entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scanning entry: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanEntry(row pgx.CollectableRow) (ledger.Entry, error) {
	var (
		e    ledger.Entry
		kind string
	)
	err := row.Scan(&e.ID, &e.PlayerID, &kind, &e.Amount, &e.Description, &e.OrderID, &e.CreatedAt)
	e.Kind = ledger.Kind(kind)
	return e, err
}

func (s *LedgerStore) load(ctx context.Context, q querier, query, playerID string) (*ledger.Progress, error) {
	p := &ledger.Progress{Stock: map[string]int{}, Discovered: map[string]bool{}}
	err := q.QueryRow(ctx, query, playerID).
		Scan(&p.PlayerID, &p.Money, &p.Satisfaction, &p.StartingBalance, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("loading player %q: %w", playerID, err)
	}

	rows, err := q.Query(ctx, listStockSQL, playerID)
	if err != nil {
		return nil, fmt.Errorf("loading stock of %q: %w", playerID, err)
	}
	var (
		ingredientID string
		quantity     int
	)
	_, err = pgx.ForEachRow(rows, []any{&ingredientID, &quantity}, func() error {
		p.Stock[ingredientID] = quantity
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading stock of %q: %w", playerID, err)
	}

	rows, err = q.Query(ctx, listDiscoveredSQL, playerID)
	if err != nil {
		return nil, fmt.Errorf("loading recipes of %q: %w", playerID, err)
	}
	var recipeID string
	_, err = pgx.ForEachRow(rows, []any{&recipeID}, func() error {
		p.Discovered[recipeID] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading recipes of %q: %w", playerID, err)
	}
	return p, nil
}

// writeDiff persists stock quantities and discoveries that differ between
// before and after. Discoveries are never removed.
func (s *LedgerStore) writeDiff(ctx context.Context, q querier, before, after *ledger.Progress) error {
	for id, qty := range after.Stock {
		if old, ok := before.Stock[id]; ok && old == qty {
			continue
		}
		if _, err := q.Exec(ctx, upsertStockSQL, after.PlayerID, id, qty); err != nil {
			return fmt.Errorf("writing stock %q: %w", id, err)
		}
	}
	for id := range after.Discovered {
		if before.Discovered[id] {
			continue
		}
		if _, err := q.Exec(ctx, insertDiscoveredSQL, after.PlayerID, id); err != nil {
			return fmt.Errorf("writing discovery %q: %w", id, err)
		}
	}
	return nil
}
