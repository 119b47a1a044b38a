// Package ledger owns a player's economy: money, satisfaction, ingredient
// stock and discovered recipes, together with the append-only log of every
// money movement.
//
// All writes go through Store.Update, which applies a mutation to one player
// atomically. For every player the starting balance plus the sum of all entry
// amounts equals the current money.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindSale     Kind = "sale"
	KindPenalty  Kind = "penalty"
)

// Sentinel errors for ledger operations.
var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrEmptyPurchase      = errors.New("purchase has no lines")
	ErrInvalidRequirement = errors.New("required quantity must be positive")
)

// InsufficientFundsError reports a purchase the player cannot afford.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: cost %s, available %s", e.Required, e.Available)
}

// Is reports ErrInsufficientFunds.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Shortfall describes one ingredient the player does not have enough of.
type Shortfall struct {
	IngredientID string
	Name         string
	Needed       int
	InStock      int
}

// InsufficientStockError lists every short ingredient, not just the first.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		parts[i] = fmt.Sprintf("%s (need %d, have %d)", s.Name, s.Needed, s.InStock)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

// Is reports ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Entry is one immutable money movement.
type Entry struct {
	ID          string
	PlayerID    string
	Kind        Kind
	Amount      decimal.Decimal
	Description string
	OrderID     string
	CreatedAt   time.Time
}

// Progress is a player's persistent economy state.
type Progress struct {
	PlayerID        string
	Money           decimal.Decimal
	Satisfaction    int
	StartingBalance decimal.Decimal
	Stock           map[string]int
	Discovered      map[string]bool
	CreatedAt       time.Time
}

// Clone returns a deep copy so a mutation can be discarded on failure.
func (p *Progress) Clone() *Progress {
	cp := *p
	cp.Stock = make(map[string]int, len(p.Stock))
	for k, v := range p.Stock {
		cp.Stock[k] = v
	}
	cp.Discovered = make(map[string]bool, len(p.Discovered))
	for k, v := range p.Discovered {
		cp.Discovered[k] = v
	}
	return &cp
}

// Knows reports whether the player has discovered the recipe.
func (p *Progress) Knows(recipeID string) bool {
	return p.Discovered[recipeID]
}

// Quantity returns the stock of an ingredient, zero when absent.
func (p *Progress) Quantity(ingredientID string) int {
	return p.Stock[ingredientID]
}

// Store persists player progress and the entry log.
type Store interface {
	// Create inserts the progress unless the player already has one.
	Create(ctx context.Context, p *Progress) (created bool, err error)
	Get(ctx context.Context, playerID string) (*Progress, error)
	// Update runs fn on a private copy of the player's progress while holding
	// an exclusive per-player lock, then persists the copy and the returned
	// entries together. Nothing is written when fn returns an error.
	Update(ctx context.Context, playerID string, fn func(p *Progress) ([]Entry, error)) (*Progress, error)
	// Entries returns the player's entries, newest first. limit <= 0 means all.
	Entries(ctx context.Context, playerID string, limit int) ([]Entry, error)
}
