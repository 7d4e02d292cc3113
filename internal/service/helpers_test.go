package service

import (
	"time"

	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/engine"
	"github.com/mylittleshop/fulfillment/internal/store"
)

// testEnv wires fresh stores and services around a fixed clock.
type testEnv struct {
	clock     domain.Clock
	products  *store.ProductStore
	users     *store.UserStore
	inventory *store.InventoryStore
	orders    *store.OrderStore
	templates *store.RecurringOrderStore
	subs      *store.SubscriptionStore
	dueIndex  *engine.DueIndex

	inventorySvc *InventoryService
	orderSvc     *OrderService
	recurringSvc *RecurringOrderService
	subSvc       *SubscriptionService
}

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	return newTestEnvAt(testNow)
}

func newTestEnvAt(now time.Time) *testEnv {
	env := &testEnv{
		clock:     domain.FixedClock(now),
		products:  store.NewProductStore(),
		users:     store.NewUserStore(),
		inventory: store.NewInventoryStore(),
		orders:    store.NewOrderStore(),
		templates: store.NewRecurringOrderStore(),
		subs:      store.NewSubscriptionStore(),
		dueIndex:  engine.NewDueIndex(),
	}
	ledger := engine.NewLedger(env.inventory, env.clock)
	env.inventorySvc = NewInventoryService(ledger, env.products, store.NewHistoryStore(), env.clock)
	env.orderSvc = NewOrderService(env.orders, env.inventorySvc, env.products, env.users, env.clock)
	env.recurringSvc = NewRecurringOrderService(env.templates, env.orderSvc, env.dueIndex, env.products, env.users, env.clock)
	env.subSvc = NewSubscriptionService(env.subs, env.templates, env.recurringSvc, env.users, env.clock)
	return env
}

// seedProduct registers a product and gives it initial stock.
func (env *testEnv) seedProduct(id string, price, stock int64) {
	env.products.Create(&domain.Product{
		ProductID:     id,
		Name:          "product " + id,
		ConsumerPrice: price,
		Status:        domain.ProductStatusActive,
	})
	if stock > 0 {
		env.inventorySvc.AddStock(id, stock, "initial receipt")
	}
}

func (env *testEnv) seedUser(id string) {
	env.users.Create(&domain.User{UserID: id, Name: "user " + id})
}

// available returns the product's current available stock.
func (env *testEnv) available(productID string) int64 {
	snap, err := env.inventorySvc.GetStock(productID)
	if err != nil {
		return 0
	}
	return snap.AvailableStock
}
