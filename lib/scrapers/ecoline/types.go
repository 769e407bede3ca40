package ecoline

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	Name     string
	Quantity int
}

// BasketItem is one line of the remote basket. DeleteLink is the opaque
// site-relative url that removes this specific line.
type BasketItem struct {
	ID         string
	Name       string
	Quantity   int
	DeleteLink string
}

// BasketSnapshot is derived from the rendered basket page, it is never
// persisted and must be refetched after every basket-affecting operation.
type BasketSnapshot struct {
	Items []BasketItem
	Total decimal.Decimal
}

func (s BasketSnapshot) Empty() bool {
	return len(s.Items) == 0
}

type LastOrder struct {
	Date    time.Time
	DaysAgo int
}

// CheckoutResult distinguishes a structurally accepted order from one
// where the server silently swapped or dropped the requested product:
// Accepted reflects the confirmation heading, PropertiesMatched the
// reconciliation of the confirmed product/quantity against the request.
type CheckoutResult struct {
	Accepted          bool
	PropertiesMatched bool
	OrderID           string
}

type CheckoutRequest struct {
	Fields  map[string]string
	Product Product
}
