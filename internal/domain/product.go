package domain

import "time"

// ProductStatus represents the catalog lifecycle state of a product.
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusNew          ProductStatus = "new"
	ProductStatusPromotion    ProductStatus = "promotion"
	ProductStatusSoldOut      ProductStatus = "sold_out"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

// Product is owned by the catalog; the fulfillment core only references it
// by ID and reads its prices and denormalized stock cache. Prices are in
// cents, one per customer tier plus the cost price.
type Product struct {
	ProductID        string
	Name             string
	ConsumerPrice    int64
	MemberPrice      int64
	DistributorPrice int64
	CostPrice        int64
	// StockQuantity is a denormalized cache of the inventory row's
	// available stock; the inventory service refreshes it after every
	// ledger mutation. The ledger row is the source of truth.
	StockQuantity int64
	Status        ProductStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// User is owned by the identity system; the core needs only an existence
// lookup and an ID to stamp on orders.
type User struct {
	UserID    string
	Name      string
	Email     string
	CreatedAt time.Time
}
