package orderbot

import (
	"context"
	"time"

	"ecoline-bot/lib/scrapers/ecoline"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// OrderClient is the slice of the scraping client the engine drives.
// An interface so conversation tests can run against a fake shop.
type OrderClient interface {
	Bonus(ctx context.Context) (int, bool, error)
	LastOrder(ctx context.Context) (ecoline.LastOrder, bool, error)
	Basket(ctx context.Context) (ecoline.BasketSnapshot, error)
	ClearBasket(ctx context.Context) (bool, error)
	AddToBasket(ctx context.Context, product ecoline.Product) error
	OrderFormFields(ctx context.Context) (map[string]string, error)
	Checkout(ctx context.Context, req ecoline.CheckoutRequest) (ecoline.CheckoutResult, error)
}

// ClientFactory creates a freshly authenticated client. Called when a
// conversation has no cached session yet or its session was evicted.
type ClientFactory func(ctx context.Context) (OrderClient, error)

// clientCache holds one authenticated client per chat. Each chat owns
// its own remote session: the basket is server-side state keyed by
// session, so sharing a client between chats would interleave orders.
type clientCache struct {
	cache   *expirable.LRU[int64, OrderClient]
	factory ClientFactory
}

func newClientCache(factory ClientFactory) clientCache {
	return clientCache{
		cache:   expirable.NewLRU[int64, OrderClient](64, nil, time.Minute*30),
		factory: factory,
	}
}

func (c clientCache) Get(ctx context.Context, chatID int64) (OrderClient, error) {
	cached, hit := c.cache.Get(chatID)
	if hit {
		return cached, nil
	}

	client, err := c.factory(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Add(chatID, client)
	return client, nil
}
