package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ItemID identifies a line item. Payloads may carry it as a JSON string or
// number; both normalize to the same text form.
type ItemID string

func (id *ItemID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return invalid("id", "must be a string or number")
		}
		*id = ItemID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return invalid("id", "must be a string or number")
	}
	*id = ItemID(canonicalNumber(n))
	return nil
}

// canonicalNumber maps integral spellings such as 1.0 and 1e0 to "1".
func canonicalNumber(n json.Number) string {
	if v, err := n.Int64(); err == nil {
		return strconv.FormatInt(v, 10)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return n.String()
	}
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MaxQuantity bounds a single line's quantity, both per request and after
// merging into the cart.
const MaxQuantity = math.MaxInt32

// Quantity is a unit count decoded from a JSON number or numeric string.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return invalid("quantity", "must be numeric")
		}
		raw = strings.TrimSpace(s)
	}

	n, err := parseQuantity(raw)
	if err != nil {
		return err
	}
	*q = Quantity(n)
	return nil
}

func parseQuantity(s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, invalid("quantity", "too large")
		}
		return 0, invalid("quantity", "must be numeric")
	}
	if f != math.Trunc(f) {
		return 0, invalid("quantity", "must be a whole number")
	}
	if math.Abs(f) > MaxQuantity {
		return 0, invalid("quantity", "too large")
	}
	return int(f), nil
}

type Item struct {
	ID          ItemID  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Cart is the ordered, id-unique item list of one session.
type Cart struct {
	Items []Item `json:"items"`
}

func Empty() Cart {
	return Cart{Items: []Item{}}
}

func (c Cart) Clone() Cart {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}

func (c Cart) Find(id ItemID) (Item, bool) {
	if i := c.index(id); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

func (c Cart) Total() float64 {
	var total float64
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return math.Round(total*100) / 100
}

func (c Cart) index(id ItemID) int {
	for i, it := range c.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// merge adds in.Quantity to an existing entry with the same id, or appends in.
// Informational fields of an existing entry are left untouched. A resulting
// quantity above MaxQuantity is rejected and leaves the cart unchanged.
func (c *Cart) merge(in Item) error {
	if in.Quantity > MaxQuantity {
		return invalid("quantity", "too large")
	}
	if i := c.index(in.ID); i >= 0 {
		if c.Items[i].Quantity > MaxQuantity-in.Quantity {
			return invalid("quantity", fmt.Sprintf("%s would exceed %d", in.ID, MaxQuantity))
		}
		c.Items[i].Quantity += in.Quantity
		return nil
	}
	c.Items = append(c.Items, in)
	return nil
}

// subtract lowers the quantity of id by qty and drops the entry once it
// reaches zero. Unknown ids are ignored.
func (c *Cart) subtract(id ItemID, qty int) {
	i := c.index(id)
	if i < 0 {
		return
	}
	if left := c.Items[i].Quantity - qty; left > 0 {
		c.Items[i].Quantity = left
		return
	}
	c.drop(i)
}

func (c *Cart) decrement(id ItemID) {
	i := c.index(id)
	if i < 0 {
		return
	}
	if c.Items[i].Quantity > 1 {
		c.Items[i].Quantity--
		return
	}
	c.drop(i)
}

func (c *Cart) remove(id ItemID) {
	if i := c.index(id); i >= 0 {
		c.drop(i)
	}
}

func (c *Cart) drop(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}
