package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rules are the fixed economy constants.
type Rules struct {
	StartingBalance      decimal.Decimal
	StartingSatisfaction int
	SaleSatisfaction     int
	PenaltySatisfaction  int
}

// DefaultRules returns the reference economy: 1000 money, 20 satisfaction,
// +1 per sale and -10 per penalty.
func DefaultRules() Rules {
	return Rules{
		StartingBalance:      decimal.NewFromInt(1000),
		StartingSatisfaction: 20,
		SaleSatisfaction:     1,
		PenaltySatisfaction:  10,
	}
}

// Requirement is a quantity of one ingredient.
type Requirement struct {
	IngredientID string
	Name         string
	Quantity     int
}

// PurchaseLine is one priced line of a market purchase.
type PurchaseLine struct {
	IngredientID string
	Name         string
	UnitPrice    decimal.Decimal
	Quantity     int
}

// Total returns unit price times quantity.
func (l PurchaseLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PurchaseResult holds the outcome of ApplyPurchase.
type PurchaseResult struct {
	Progress *Progress
	Total    decimal.Decimal
	Lines    []PurchaseLine
}

// Service implements the atomic economy operations on top of a Store.
type Service struct {
	store Store
	rules Rules
	now   func() time.Time
}

// NewService creates a ledger Service.
func NewService(store Store, rules Rules) *Service {
	return &Service{store: store, rules: rules, now: time.Now}
}

// Rules returns the economy constants in use.
func (s *Service) Rules() Rules {
	return s.rules
}

// OpenAccount creates the player's progress with the starting balance if it
// does not exist yet and returns the current progress either way.
func (s *Service) OpenAccount(ctx context.Context, playerID string) (*Progress, error) {
	p := &Progress{
		PlayerID:        playerID,
		Money:           s.rules.StartingBalance,
		Satisfaction:    s.rules.StartingSatisfaction,
		StartingBalance: s.rules.StartingBalance,
		Stock:           map[string]int{},
		Discovered:      map[string]bool{},
		CreatedAt:       s.now(),
	}
	if _, err := s.store.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create progress")
	}
	return s.store.Get(ctx, playerID)
}

// Progress returns the player's current progress.
func (s *Service) Progress(ctx context.Context, playerID string) (*Progress, error) {
	return s.store.Get(ctx, playerID)
}

// Entries returns the player's ledger entries, newest first.
func (s *Service) Entries(ctx context.Context, playerID string, limit int) ([]Entry, error) {
	return s.store.Entries(ctx, playerID, limit)
}

// ApplySale credits a served order.
func (s *Service) ApplySale(ctx context.Context, playerID string, amount decimal.Decimal, description, orderID string) (*Progress, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return s.store.Update(ctx, playerID, func(p *Progress) ([]Entry, error) {
		p.Money = p.Money.Add(amount)
		p.Satisfaction += s.rules.SaleSatisfaction
		return []Entry{s.entry(playerID, KindSale, amount, description, orderID)}, nil
	})
}

// ApplyPenalty debits an expired order. Money and satisfaction are clamped at
// zero; the entry records the amount actually deducted, which is smaller
// than amount when the balance could not cover it.
func (s *Service) ApplyPenalty(ctx context.Context, playerID string, amount decimal.Decimal, description, orderID string) (*Progress, decimal.Decimal, error) {
	if amount.IsNegative() {
		return nil, decimal.Zero, ErrInvalidAmount
	}
	var charged decimal.Decimal
	p, err := s.store.Update(ctx, playerID, func(p *Progress) ([]Entry, error) {
		charged = decimal.Min(amount, p.Money)
		p.Money = p.Money.Sub(charged)
		p.Satisfaction = max(0, p.Satisfaction-s.rules.PenaltySatisfaction)
		return []Entry{s.entry(playerID, KindPenalty, charged.Neg(), description, orderID)}, nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return p, charged, nil
}

// ApplyPurchase buys every line or none: the total is checked against the
// balance before any stock changes.
func (s *Service) ApplyPurchase(ctx context.Context, playerID string, lines []PurchaseLine) (*PurchaseResult, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyPurchase
	}
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidRequirement
		}
		total = total.Add(l.Total())
	}

	p, err := s.store.Update(ctx, playerID, func(p *Progress) ([]Entry, error) {
		if total.GreaterThan(p.Money) {
			return nil, &InsufficientFundsError{Required: total, Available: p.Money}
		}
		p.Money = p.Money.Sub(total)

		entries := make([]Entry, 0, len(lines))
		for _, l := range lines {
			p.Stock[l.IngredientID] += l.Quantity
			entries = append(entries, s.entry(playerID, KindPurchase, l.Total().Neg(),
				fmt.Sprintf("Purchase of %dx %s", l.Quantity, l.Name), ""))
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Progress: p, Total: total, Lines: lines}, nil
}

// ConsumeIngredients removes every required quantity from stock, or nothing
// when any line is short. The error lists all shortfalls.
func (s *Service) ConsumeIngredients(ctx context.Context, playerID string, required []Requirement) (*Progress, error) {
	if err := validateRequirements(required); err != nil {
		return nil, err
	}
	required = mergeRequirements(required)
	return s.store.Update(ctx, playerID, func(p *Progress) ([]Entry, error) {
		var short []Shortfall
		for _, r := range required {
			if have := p.Quantity(r.IngredientID); have < r.Quantity {
				short = append(short, Shortfall{
					IngredientID: r.IngredientID,
					Name:         r.Name,
					Needed:       r.Quantity,
					InStock:      have,
				})
			}
		}
		if len(short) > 0 {
			return nil, &InsufficientStockError{Shortfalls: short}
		}
		for _, r := range required {
			p.Stock[r.IngredientID] -= r.Quantity
		}
		return nil, nil
	})
}

// RestockIngredients gives consumed ingredients back. It compensates a serve
// that consumed stock but then lost the order to a concurrent expiry.
func (s *Service) RestockIngredients(ctx context.Context, playerID string, lines []Requirement) (*Progress, error) {
	if err := validateRequirements(lines); err != nil {
		return nil, err
	}
	lines = mergeRequirements(lines)
	return s.store.Update(ctx, playerID, func(p *Progress) ([]Entry, error) {
		for _, r := range lines {
			p.Stock[r.IngredientID] += r.Quantity
		}
		return nil, nil
	})
}

// DiscoverRecipe marks a recipe as known. It reports true only when this call
// made the discovery.
func (s *Service) DiscoverRecipe(ctx context.Context, playerID, recipeID string) (bool, error) {
	var discovered bool
	_, err := s.store.Update(ctx, playerID, func(p *Progress) ([]Entry, error) {
		if p.Discovered[recipeID] {
			return nil, nil
		}
		p.Discovered[recipeID] = true
		discovered = true
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	return discovered, nil
}

func (s *Service) entry(playerID string, kind Kind, amount decimal.Decimal, description, orderID string) Entry {
	return Entry{
		ID:          uuid.New().String(),
		PlayerID:    playerID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		OrderID:     orderID,
		CreatedAt:   s.now(),
	}
}

func validateRequirements(lines []Requirement) error {
	for _, r := range lines {
		if r.Quantity <= 0 {
			return ErrInvalidRequirement
		}
	}
	return nil
}

// mergeRequirements sums lines naming the same ingredient, keeping first-seen
// order.
func mergeRequirements(lines []Requirement) []Requirement {
	out := make([]Requirement, 0, len(lines))
	at := make(map[string]int, len(lines))
	for _, r := range lines {
		if i, ok := at[r.IngredientID]; ok {
			out[i].Quantity += r.Quantity
			continue
		}
		at[r.IngredientID] = len(out)
		out = append(out, r)
	}
	return out
}
