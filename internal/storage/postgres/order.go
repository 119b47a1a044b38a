package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kitchen-rush/internal/domain/order"
)

const (
	orderColumns = `id, player_id, recipe_id, recipe_name, status, created_at, expires_at, resolved_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// The status predicate makes the update a compare-and-set: only one of
	// two concurrent resolutions sees a row.
	resolveOrderSQL = `UPDATE orders SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + orderColumns

	listOrdersByPlayerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE player_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

	listPendingOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE player_id = $1 AND status = 'pending' AND expires_at > $2
		ORDER BY created_at DESC, id DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, o.PlayerID, o.RecipeID, o.RecipeName, string(o.Status), o.CreatedAt, o.ExpiresAt, o.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// Resolve moves a pending order to a terminal status.
func (r *OrderRepository) Resolve(ctx context.Context, id string, to order.Status, at time.Time) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, resolveOrderSQL, id, string(to), at)
	if err != nil {
		return nil, fmt.Errorf("resolving order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolving order %q: %w", id, err)
	}

	// No row updated: tell a missing order apart from a resolved one.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, order.ErrInvalidState
}

// ListByPlayer returns the most recent orders of a player.
func (r *OrderRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]order.Order, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := conn(ctx, r.pool).Query(ctx, listOrdersByPlayerSQL, playerID, lim)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", playerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListPending returns the player's pending orders whose deadline is after now.
func (r *OrderRepository) ListPending(ctx context.Context, playerID string, now time.Time) ([]order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listPendingOrdersSQL, playerID, now)
	if err != nil {
		return nil, fmt.Errorf("listing pending orders of %q: %w", playerID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(&o.ID, &o.PlayerID, &o.RecipeID, &o.RecipeName, &status, &o.CreatedAt, &o.ExpiresAt, &o.ResolvedAt)
	o.Status = order.Status(status)
	return o, err
}
