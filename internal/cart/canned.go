package cart

import "fmt"

// CannedKind selects a server-defined item template.
type CannedKind string

const (
	SeatPurchase CannedKind = "seat_purchase"
	SeatUpgrade  CannedKind = "seat_upgrade"
)

var cannedItems = map[CannedKind]Item{
	SeatPurchase: {
		ID:          "seat-purchase",
		Name:        "Additional Seat",
		Price:       49.99,
		Image:       "/images/seat.png",
		Description: "Additional seat",
	},
	SeatUpgrade: {
		ID:          "seat-upgrade",
		Name:        "Seat Upgrade",
		Price:       19.99,
		Image:       "/images/seat-upgrade.png",
		Description: "Upgrade to a premium seat",
	},
}

// CannedItem builds the template for kind with the given quantity and,
// when non-empty, description.
func CannedItem(kind CannedKind, quantity int, description string) (Item, error) {
	it, ok := cannedItems[kind]
	if !ok {
		return Item{}, invalid("kind", fmt.Sprintf("unknown canned item %q", kind))
	}
	if quantity <= 0 {
		return Item{}, invalid("quantity", "must be positive")
	}
	if quantity > MaxQuantity {
		return Item{}, invalid("quantity", "too large")
	}

	it.Quantity = quantity
	if description != "" {
		it.Description = description
	}
	return it, nil
}
