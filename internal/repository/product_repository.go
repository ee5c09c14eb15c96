package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/iliyamo/equipment-rental/internal/model"
	"github.com/iliyamo/equipment-rental/internal/rental"
)

// ProductRepo reads and writes the products table.  Products are never
// deleted physically; the status column flips to 'deleted' instead.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a ProductRepo bound to db.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = `id, name, description, sku, price_per_day, category, image_url,
       quantity_available, status, specifications, features, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (model.Product, error) {
	var (
		p              model.Product
		sku, image     sql.NullString
		specs, feature []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &sku, &p.PricePerDay, &p.Category, &image,
		&p.QuantityAvailable, &p.Status, &specs, &feature, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Product{}, err
	}
	p.SKU = stringPtr(sku)
	p.ImageURL = stringPtr(image)
	if len(specs) > 0 {
		p.Specifications = json.RawMessage(specs)
	}
	if len(feature) > 0 {
		p.Features = json.RawMessage(feature)
	}
	return p, nil
}

// productFilter translates a ProductQuery into a WHERE clause and its
// arguments.  Category and search are case-insensitive substring matches;
// search looks at name OR description.
func productFilter(q model.ProductQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !q.IncludeDeleted {
		conds = append(conds, "status <> 'deleted'")
	}
	if q.Category != "" {
		conds = append(conds, "LOWER(category) LIKE ?")
		args = append(args, likePattern(q.Category))
	}
	if q.Search != "" {
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)")
		p := likePattern(q.Search)
		args = append(args, p, p)
	}
	if q.MinPrice != nil {
		conds = append(conds, "price_per_day >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		conds = append(conds, "price_per_day <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.Available != nil {
		if *q.Available {
			conds = append(conds, "(quantity_available > 0 AND status = 'active')")
		} else {
			conds = append(conds, "(quantity_available <= 0 OR status <> 'active')")
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of products matching q ordered by creation time,
// newest first.
func (r *ProductRepo) List(ctx context.Context, q model.ProductQuery) ([]model.Product, error) {
	where, args := productFilter(q)
	query := "SELECT " + productColumns + " FROM products" + where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, (q.Page-1)*q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of products matching q.
func (r *ProductRepo) Count(ctx context.Context, q model.ProductQuery) (int64, error) {
	where, args := productFilter(q)
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&n)
	return n, err
}

// GetByID fetches a product regardless of its status.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	return getProduct(ctx, r.db, id, false)
}

func getProduct(ctx context.Context, q querier, id uint64, lock bool) (model.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	if lock {
		query += " FOR UPDATE"
	}
	p, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrProductNotFound
	}
	return p, err
}

// Create inserts p and reloads it to pick up generated values.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	const q = `INSERT INTO products
        (name, description, sku, price_per_day, category, image_url, quantity_available, status, specifications, features)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.Name, p.Description, nullString(p.SKU), p.PricePerDay, p.Category,
		nullString(p.ImageURL), p.QuantityAvailable, p.Status, nullJSON(p.Specifications), nullJSON(p.Features))
	if err != nil {
		if isDuplicate(err) {
			return ErrSKUExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = created
	return nil
}

// Update writes every mutable column of p.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	const q = `UPDATE products SET name = ?, description = ?, sku = ?, price_per_day = ?, category = ?,
        image_url = ?, quantity_available = ?, status = ?, specifications = ?, features = ?
        WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, p.Name, p.Description, nullString(p.SKU), p.PricePerDay, p.Category,
		nullString(p.ImageURL), p.QuantityAvailable, p.Status, nullJSON(p.Specifications), nullJSON(p.Features), p.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrSKUExists
		}
		return err
	}
	// MySQL reports zero affected rows for a no-op update, so existence is
	// checked by reading the row back.
	updated, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = updated
	return nil
}

// Categories lists the distinct categories of active products.
func (r *ProductRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM products WHERE status = 'active' ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReservedQuantity sums the line quantities of confirmed and active orders
// for productID whose window overlaps w.
func (r *ProductRepo) ReservedQuantity(ctx context.Context, productID uint64, w rental.Window, excludeOrderID uint64) (int, int, error) {
	return reservedQuantity(ctx, r.db, productID, w, excludeOrderID)
}

// reservedQuantityQuery encodes the inclusive overlap rule
// existing.start <= w.end AND existing.end >= w.start.  Order ids start at
// 1, so excluding id 0 excludes nothing.
const reservedQuantityQuery = `SELECT COALESCE(SUM(rl.quantity), 0), COUNT(DISTINCT ro.id)
FROM rental_lines rl
JOIN rental_orders ro ON ro.id = rl.rental_order_id
WHERE rl.product_id = ?
  AND ro.status IN ('confirmed', 'active')
  AND ro.start_date <= ?
  AND ro.end_date >= ?
  AND ro.id <> ?`

func reservedQuantity(ctx context.Context, q querier, productID uint64, w rental.Window, excludeOrderID uint64) (int, int, error) {
	var qty, orders int
	err := q.QueryRowContext(ctx, reservedQuantityQuery, productID, w.End, w.Start, excludeOrderID).Scan(&qty, &orders)
	if err != nil {
		return 0, 0, err
	}
	return qty, orders, nil
}
