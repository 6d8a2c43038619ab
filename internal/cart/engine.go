package cart

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

const maxSessionIDLen = 128

// LineInput is one item of a mutation request. Only ID and Quantity are
// used by removals.
type LineInput struct {
	ID          ItemID    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Price       float64   `json:"price,omitempty"`
	Quantity    *Quantity `json:"quantity,omitempty"`
	Image       string    `json:"image,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Engine applies cart mutations as load, transform, save against a Store.
// Calls for one session are serialized; distinct sessions never wait on
// each other.
type Engine struct {
	Store   Store
	Log     *zap.Logger
	Metrics *Metrics

	locks sessionLocks
}

func NewEngine(store Store, log *zap.Logger, m *Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{Store: store, Log: log, Metrics: m}
}

func (e *Engine) Get(ctx context.Context, sessionID string) (Cart, error) {
	if err := validateSession(sessionID); err != nil {
		return Cart{}, err
	}

	unlock := e.locks.lock(sessionID)
	defer unlock()

	c, err := e.Store.Load(ctx, sessionID)
	if err != nil {
		e.logger().Error("load cart failed", zap.Error(err), zap.String("session_id", sessionID))
		return Cart{}, storageErr("load", sessionID, err)
	}
	return c, nil
}

// AddItems merges each line into the cart in order. Lines with an id already
// present add to its quantity; others are appended.
func (e *Engine) AddItems(ctx context.Context, sessionID string, lines []LineInput) (Cart, error) {
	items, err := addLines(lines)
	if err != nil {
		return e.reject("add", err)
	}

	return e.mutate(ctx, "add", sessionID, func(c *Cart) error {
		for _, it := range items {
			if err := c.merge(it); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveItems subtracts each line's quantity, deleting entries that reach
// zero. Unknown ids are skipped.
func (e *Engine) RemoveItems(ctx context.Context, sessionID string, lines []LineInput) (Cart, error) {
	if len(lines) == 0 {
		return e.reject("remove", invalid("items", "at least one item is required"))
	}
	type removal struct {
		id  ItemID
		qty int
	}
	removals := make([]removal, 0, len(lines))
	for i, ln := range lines {
		if ln.ID == "" {
			return e.reject("remove", invalid(fmt.Sprintf("items[%d].id", i), "required"))
		}
		qty, err := positive(fmt.Sprintf("items[%d].quantity", i), ln.Quantity)
		if err != nil {
			return e.reject("remove", err)
		}
		removals = append(removals, removal{id: ln.ID, qty: qty})
	}

	return e.mutate(ctx, "remove", sessionID, func(c *Cart) error {
		for _, rm := range removals {
			c.subtract(rm.id, rm.qty)
		}
		return nil
	})
}

func (e *Engine) DeleteItem(ctx context.Context, sessionID string, id ItemID) (Cart, error) {
	if id == "" {
		return e.reject("delete", invalid("id", "required"))
	}
	return e.mutate(ctx, "delete", sessionID, func(c *Cart) error {
		c.remove(id)
		return nil
	})
}

// DecrementOrRemove takes one unit off id, removing the entry at quantity 1.
func (e *Engine) DecrementOrRemove(ctx context.Context, sessionID string, id ItemID) (Cart, error) {
	if id == "" {
		return e.reject("decrement", invalid("id", "required"))
	}
	return e.mutate(ctx, "decrement", sessionID, func(c *Cart) error {
		c.decrement(id)
		return nil
	})
}

func (e *Engine) ApplyCannedItem(ctx context.Context, sessionID string, kind CannedKind, quantity int, description string) (Cart, error) {
	it, err := CannedItem(kind, quantity, description)
	if err != nil {
		return e.reject(string(kind), err)
	}
	return e.mutate(ctx, string(kind), sessionID, func(c *Cart) error { return c.merge(it) })
}

// mutate runs fn on the session's cart and writes the result back. Mutations
// are not cancelled by the caller going away; store timeouts still apply.
// When fn fails nothing is saved.
func (e *Engine) mutate(ctx context.Context, op, sessionID string, fn func(*Cart) error) (Cart, error) {
	if err := validateSession(sessionID); err != nil {
		return e.reject(op, err)
	}
	ctx = context.WithoutCancel(ctx)

	unlock := e.locks.lock(sessionID)
	defer unlock()

	c, err := e.Store.Load(ctx, sessionID)
	if err != nil {
		return e.fail(op, sessionID, storageErr("load", sessionID, err))
	}

	if err := fn(&c); err != nil {
		return e.reject(op, err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}

	if err := e.Store.Save(ctx, sessionID, c); err != nil {
		return e.fail(op, sessionID, storageErr("save", sessionID, err))
	}

	e.Metrics.observe(op, nil)
	return c, nil
}

func (e *Engine) reject(op string, err error) (Cart, error) {
	e.Metrics.observe(op, err)
	return Cart{}, err
}

func (e *Engine) fail(op, sessionID string, err error) (Cart, error) {
	e.Metrics.observe(op, err)
	e.logger().Error("cart mutation failed",
		zap.String("op", op),
		zap.String("session_id", sessionID),
		zap.Error(err),
	)
	return Cart{}, err
}

func (e *Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func addLines(lines []LineInput) ([]Item, error) {
	if len(lines) == 0 {
		return nil, invalid("items", "at least one item is required")
	}

	items := make([]Item, 0, len(lines))
	for i, ln := range lines {
		if ln.ID == "" {
			return nil, invalid(fmt.Sprintf("items[%d].id", i), "required")
		}
		qty, err := positive(fmt.Sprintf("items[%d].quantity", i), ln.Quantity)
		if err != nil {
			return nil, err
		}
		if ln.Price < 0 || math.IsNaN(ln.Price) || math.IsInf(ln.Price, 0) {
			return nil, invalid(fmt.Sprintf("items[%d].price", i), "must be a non-negative number")
		}
		items = append(items, Item{
			ID:          ln.ID,
			Name:        ln.Name,
			Price:       ln.Price,
			Quantity:    qty,
			Image:       ln.Image,
			Description: ln.Description,
		})
	}
	return items, nil
}

func positive(field string, q *Quantity) (int, error) {
	if q == nil {
		return 0, invalid(field, "required")
	}
	if *q <= 0 {
		return 0, invalid(field, "must be positive")
	}
	if *q > MaxQuantity {
		return 0, invalid(field, "too large")
	}
	return int(*q), nil
}

func validateSession(sessionID string) error {
	switch {
	case strings.TrimSpace(sessionID) == "":
		return invalid("session_id", "required")
	case len(sessionID) > maxSessionIDLen:
		return invalid("session_id", fmt.Sprintf("longer than %d bytes", maxSessionIDLen))
	}
	return nil
}
