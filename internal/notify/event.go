// Package notify delivers game events to connected players and mirrors them
// to a message broker.
package notify

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Type names an event on the wire.
type Type string

const (
	TypeNewOrder         Type = "new-order"
	TypeOrderServed      Type = "order-served"
	TypeOrderExpired     Type = "order-expired"
	TypeGameOver         Type = "game-over"
	TypeRecipeDiscovered Type = "recipe-discovered"
)

// Event is a server push message.
type Event interface {
	Type() Type
	encodeData(e *jx.Encoder)
}

// Ingredient is one line of a new order's recipe.
type Ingredient struct {
	ID       string
	Name     string
	Quantity int
}

// NewOrder announces a freshly generated order.
type NewOrder struct {
	OrderID     string
	RecipeID    string
	RecipeName  string
	Ingredients []Ingredient
	ExpiresAt   time.Time
	Duration    time.Duration
}

func (NewOrder) Type() Type { return TypeNewOrder }

func (n NewOrder) encodeData(e *jx.Encoder) {
	e.Field("orderId", func(e *jx.Encoder) { e.Str(n.OrderID) })
	e.Field("recipeName", func(e *jx.Encoder) { e.Str(n.RecipeName) })
	e.Field("recipeId", func(e *jx.Encoder) { e.Str(n.RecipeID) })
	e.Field("ingredients", func(e *jx.Encoder) {
		e.ArrStart()
		for _, in := range n.Ingredients {
			e.Obj(func(e *jx.Encoder) {
				e.Field("ingredientId", func(e *jx.Encoder) { e.Str(in.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(in.Name) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(in.Quantity) })
			})
		}
		e.ArrEnd()
	})
	e.Field("expiresAt", func(e *jx.Encoder) { e.Str(FormatTime(n.ExpiresAt)) })
	e.Field("duration", func(e *jx.Encoder) { e.Int64(n.Duration.Milliseconds()) })
}

// OrderServed confirms a successful serve.
type OrderServed struct {
	OrderID      string
	RecipeName   string
	Satisfaction int
	Money        decimal.Decimal
}

func (OrderServed) Type() Type { return TypeOrderServed }

func (o OrderServed) encodeData(e *jx.Encoder) {
	e.Field("orderId", func(e *jx.Encoder) { e.Str(o.OrderID) })
	e.Field("recipeName", func(e *jx.Encoder) { e.Str(o.RecipeName) })
	e.Field("satisfaction", func(e *jx.Encoder) { e.Int(o.Satisfaction) })
	e.Field("money", func(e *jx.Encoder) { EncodeDecimal(e, o.Money) })
}

// OrderExpired reports a missed deadline and the penalty applied.
type OrderExpired struct {
	OrderID      string
	RecipeName   string
	Satisfaction int
	Money        decimal.Decimal
	Penalty      decimal.Decimal
}

func (OrderExpired) Type() Type { return TypeOrderExpired }

func (o OrderExpired) encodeData(e *jx.Encoder) {
	e.Field("orderId", func(e *jx.Encoder) { e.Str(o.OrderID) })
	e.Field("recipeName", func(e *jx.Encoder) { e.Str(o.RecipeName) })
	e.Field("satisfaction", func(e *jx.Encoder) { e.Int(o.Satisfaction) })
	e.Field("money", func(e *jx.Encoder) { EncodeDecimal(e, o.Money) })
	e.Field("penalty", func(e *jx.Encoder) { EncodeDecimal(e, o.Penalty) })
}

// GameOver ends the session.
type GameOver struct {
	Reason  string
	Message string
}

func (GameOver) Type() Type { return TypeGameOver }

func (g GameOver) encodeData(e *jx.Encoder) {
	e.Field("reason", func(e *jx.Encoder) { e.Str(g.Reason) })
	e.Field("message", func(e *jx.Encoder) { e.Str(g.Message) })
}

// RecipeDiscovered reports a recipe found in the laboratory.
type RecipeDiscovered struct {
	RecipeID   string
	RecipeName string
}

func (RecipeDiscovered) Type() Type { return TypeRecipeDiscovered }

func (r RecipeDiscovered) encodeData(e *jx.Encoder) {
	e.Field("recipeId", func(e *jx.Encoder) { e.Str(r.RecipeID) })
	e.Field("recipeName", func(e *jx.Encoder) { e.Str(r.RecipeName) })
}

// Encode returns the wire form {"type":...,"data":{...}}.
func Encode(ev Event) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(string(ev.Type())) })
		e.Field("data", func(e *jx.Encoder) {
			e.Obj(ev.encodeData)
		})
	})
	return e.Bytes()
}

// EncodeDecimal writes a decimal as a bare JSON number.
func EncodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.String()))
}

// FormatTime renders t as UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
