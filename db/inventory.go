// inventory.go holds the fixed-shape reads and writes behind the
// dashboards and the agent's non-SQL tools.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Product is one row of the inventory.
type Product struct {
	ID          int64    `json:"id"`
	ProductName *string  `json:"product_name"`
	Supplier    *string  `json:"supplier"`
	Category    *string  `json:"category"`
	StockCount  *int64   `json:"stock_count"`
	Cost        *float64 `json:"cost"`
	Description *string  `json:"description"`
}

// Order is one purchase order, with the product name for display.
type Order struct {
	OrderID      int64   `json:"order_id"`
	ProductID    int64   `json:"product_id"`
	OrderDate    *string `json:"order_date"`
	Quantity     int64   `json:"quantity"`
	DateExpected *string `json:"date_expected"`
	ProductName  *string `json:"product_name"`
}

// ExpiryBatch is a quantity of one product expiring on one date.
type ExpiryBatch struct {
	BatchID     int64   `json:"batch_id"`
	ProductID   int64   `json:"product_id"`
	ProductName *string `json:"product_name"`
	ExpiryDate  string  `json:"expiry_date"`
	Quantity    int64   `json:"quantity"`
}

const listInventoryQuery = `
SELECT id, product_name, supplier, category, stock_count, cost::float8, description
FROM products
ORDER BY id`

const listOrdersQuery = `
SELECT o.order_id, o.product_id, o.order_date, o.quantity, o.date_expected, p.product_name
FROM orders o
JOIN products p ON p.id = o.product_id
ORDER BY o.order_id`

const listExpiryQuery = `
SELECT e.id, e.product_id, p.product_name, e.expiry_date, e.quantity
FROM expiry e
JOIN products p ON p.id = e.product_id
ORDER BY e.expiry_date, e.id`

// ListInventory returns every product.
func (d *DB) ListInventory(ctx context.Context) ([]Product, error) {
	rows, err := d.SQL.QueryContext(ctx, listInventoryQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ProductName, &p.Supplier, &p.Category, &p.StockCount, &p.Cost, &p.Description); err != nil {
			return nil, err
		}
		// A zero cost is shown as unknown, like a missing one.
		if p.Cost != nil && *p.Cost == 0 {
			p.Cost = nil
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListOrders returns every order joined with its product.
func (d *DB) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := d.SQL.QueryContext(ctx, listOrdersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var o Order
		var ordered, expected sql.NullTime
		if err := rows.Scan(&o.OrderID, &o.ProductID, &ordered, &o.Quantity, &expected, &o.ProductName); err != nil {
			return nil, err
		}
		o.OrderDate = isoDate(ordered)
		o.DateExpected = isoDate(expected)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListExpiry returns every expiry batch joined with its product.
func (d *DB) ListExpiry(ctx context.Context) ([]ExpiryBatch, error) {
	rows, err := d.SQL.QueryContext(ctx, listExpiryQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ExpiryBatch{}
	for rows.Next() {
		var e ExpiryBatch
		var expires time.Time
		if err := rows.Scan(&e.BatchID, &e.ProductID, &e.ProductName, &expires, &e.Quantity); err != nil {
			return nil, err
		}
		e.ExpiryDate = expires.Format("2006-01-02")
		out = append(out, e)
	}
	return out, rows.Err()
}

func isoDate(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.Format("2006-01-02")
	return &s
}

// ─────────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────────

// Column limits of the products table.
const (
	MaxProductNameLen = 100
	MaxSupplierLen    = 100
	MaxCategoryLen    = 18
	DefaultCategory   = "Medicine"
)

// NewProduct is the input for AddProduct.
type NewProduct struct {
	ProductName string  `json:"product_name"`
	Supplier    string  `json:"supplier"`
	Category    string  `json:"category"`
	StockCount  int64   `json:"stock_count"`
	Cost        float64 `json:"cost"`
	Description string  `json:"description"`
}

// ErrInvalidProduct wraps every NewProduct validation failure.
var ErrInvalidProduct = errors.New("invalid product")

type productError struct{ msg string }

func (e *productError) Error() string        { return e.msg }
func (e *productError) Is(target error) bool { return target == ErrInvalidProduct }

// Normalize trims fields and applies the default category.
func (p *NewProduct) Normalize() {
	p.ProductName = strings.TrimSpace(p.ProductName)
	p.Supplier = strings.TrimSpace(p.Supplier)
	p.Category = strings.TrimSpace(p.Category)
	p.Description = strings.TrimSpace(p.Description)
	if p.Category == "" {
		p.Category = DefaultCategory
	}
}

// Validate checks the products table limits.
func (p NewProduct) Validate() error {
	if p.ProductName == "" || len(p.ProductName) > MaxProductNameLen {
		return &productError{"Product name is invalid, or more than 100 characters."}
	}
	if len(p.Supplier) > MaxSupplierLen {
		return &productError{"Supplier name is invalid and or is more than 100 characters."}
	}
	if p.Category == "" || len(p.Category) > MaxCategoryLen {
		return &productError{"Error with category, or category is more than 18 characters."}
	}
	if p.StockCount < 0 {
		return &productError{"Stock count cannot be negative."}
	}
	if p.Cost < 0 {
		return &productError{"Cost cannot be negative."}
	}
	return nil
}

const insertProductQuery = `
INSERT INTO products (product_name, supplier, category, stock_count, cost, description)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

// AddProduct validates and inserts a product, returning its id.
func (d *DB) AddProduct(ctx context.Context, p NewProduct) (int64, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := d.SQL.QueryRowContext(ctx, insertProductQuery,
		p.ProductName, nullString(p.Supplier), p.Category, p.StockCount, p.Cost, nullString(p.Description),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	d.logger.Info().Int64("id", id).Str("product", p.ProductName).Msg("product added")
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ─────────────────────────────────────────────────────────────────
// Overview
// ─────────────────────────────────────────────────────────────────

// DefaultOverviewDays is the expiry window when none is given.
const DefaultOverviewDays = 7

// Overview summarises stock and upcoming expiry.
type Overview struct {
	Days             int
	ProductCount     int64
	TotalStock       int64
	ExpiringQuantity int64
}

const productTotalsQuery = `SELECT COUNT(id), COALESCE(SUM(stock_count), 0) FROM products`

const expiringQuantityQuery = `
SELECT COALESCE(SUM(quantity), 0) FROM expiry
WHERE expiry_date >= $1 AND expiry_date <= $2`

// Overview counts products, total stock and the quantity expiring
// between today and today+days. Negative days fall back to the default.
func (d *DB) Overview(ctx context.Context, days int) (*Overview, error) {
	if days < 0 {
		days = DefaultOverviewDays
	}
	y, m, day := d.now().Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	until := today.AddDate(0, 0, days)

	ov := &Overview{Days: days}
	if err := d.SQL.QueryRowContext(ctx, productTotalsQuery).Scan(&ov.ProductCount, &ov.TotalStock); err != nil {
		return nil, fmt.Errorf("product totals: %w", err)
	}
	if err := d.SQL.QueryRowContext(ctx, expiringQuantityQuery, today, until).Scan(&ov.ExpiringQuantity); err != nil {
		return nil, fmt.Errorf("expiring quantity: %w", err)
	}
	return ov, nil
}

// String renders the overview the way the assistant reports it.
func (o *Overview) String() string {
	return fmt.Sprintf("The database overview for the last %d days is as follows:\n"+
		"Product Count: %d\nTotal Count: %d\nExpired Quantity: %d",
		o.Days, o.ProductCount, o.TotalStock, o.ExpiringQuantity)
}
