package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store and Catalog. Schema lives in internal/postgres.
type Repo struct{ DB *pgxpool.Pool }

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderCols = `id, store_id, supplier_id, status, total_cents, payment_method, payment_status,
	delivery_option, delivery_fee_cents, shipping_address, notes, created_at, updated_at`

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// InTx: satu transaksi per mutasi; rollback otomatis kalau fn gagal.
func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repo) FindDraft(ctx context.Context, storeID, supplierID int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders
		WHERE store_id=$1 AND supplier_id=$2 AND status='draft'`, storeID, supplierID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find draft: %w", err)
	}
	if o.Items, err = loadItems(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.Items, err = loadItems(ctx, r.DB, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.StoreID != 0 {
		add("store_id=$%d", f.StoreID)
	}
	if f.SupplierID != 0 {
		add("supplier_id=$%d", f.SupplierID)
	}
	if f.Status != "" {
		add("status=$%d", string(f.Status))
	} else {
		where = append(where, "status<>'draft'")
	}

	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE `+strings.Join(where, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	idx := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		idx[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	// ambil semua item sekaligus, hindari N+1
	irows, err := r.DB.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer irows.Close()
	for irows.Next() {
		var it OrderItem
		if err := irows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		o := &out[idx[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return out, irows.Err()
}

func (r *Repo) ListMessages(ctx context.Context, orderID int64) ([]Message, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, order_id, sender_id, content, image_url, created_at
		FROM messages WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.Content, &m.ImageURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) ListRatingsByOrder(ctx context.Context, orderID int64) ([]Rating, error) {
	return queryRatings(ctx, r.DB, `WHERE order_id=$1 ORDER BY created_at, id`, orderID)
}

func (r *Repo) ListRatingsForRated(ctx context.Context, userID int64) ([]Rating, error) {
	return queryRatings(ctx, r.DB, `WHERE rated_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *Repo) GetProduct(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `SELECT id, supplier_id, name, unit, price_cents, stock_quantity
		FROM products WHERE id=$1`, productID).
		Scan(&p.ID, &p.SupplierID, &p.Name, &p.Unit, &p.PriceCents, &p.StockQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	if err != nil {
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

type pgTx struct{ q querier }

func (t *pgTx) LockOrder(ctx context.Context, orderID int64) (*Order, error) {
	o, err := scanOrder(t.q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if o.Items, err = loadItems(ctx, t.q, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *pgTx) LockOrderByItem(ctx context.Context, itemID int64) (*Order, error) {
	var orderID int64
	err := t.q.QueryRow(ctx, `SELECT order_id FROM order_items WHERE id=$1`, itemID).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order item %d", ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("find order item: %w", err)
	}
	o, err := t.LockOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// item bisa saja terhapus sebelum lock didapat
	if o.ItemByID(itemID) == nil {
		return nil, fmt.Errorf("%w: order item %d", ErrNotFound, itemID)
	}
	return o, nil
}

func (t *pgTx) InsertDraft(ctx context.Context, o *Order) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO orders(store_id, supplier_id, status, total_cents, created_at, updated_at)
		VALUES ($1, $2, 'draft', 0, $3, $4)
		ON CONFLICT (store_id, supplier_id) WHERE status = 'draft' DO NOTHING
		RETURNING id`, o.StoreID, o.SupplierID, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return fmt.Errorf("%w: store %d / supplier %d", ErrConflict, o.StoreID, o.SupplierID)
	}
	if err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	_, err := t.q.Exec(ctx, `
		UPDATE orders SET status=$2, total_cents=$3, payment_method=$4, payment_status=$5,
			delivery_option=$6, delivery_fee_cents=$7, shipping_address=$8, notes=$9, updated_at=$10
		WHERE id=$1`,
		o.ID, string(o.Status), o.TotalCents, string(o.PaymentMethod), string(o.PaymentStatus),
		string(o.DeliveryOption), o.DeliveryFeeCents, o.ShippingAddress, o.Notes, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, orderID int64) error {
	// order_items & messages ikut terhapus (ON DELETE CASCADE)
	if _, err := t.q.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (t *pgTx) InsertItem(ctx context.Context, it *OrderItem) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, quantity, unit_price_cents, subtotal_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, it.OrderID, it.ProductID, it.Quantity, it.UnitPriceCents, it.SubtotalCents).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateItem(ctx context.Context, it OrderItem) error {
	ct, err := t.q.Exec(ctx, `UPDATE order_items SET quantity=$2, subtotal_cents=$3 WHERE id=$1`,
		it.ID, it.Quantity, it.SubtotalCents)
	if err != nil {
		return fmt.Errorf("update order item: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: order item %d", ErrNotFound, it.ID)
	}
	return nil
}

func (t *pgTx) DeleteItem(ctx context.Context, itemID int64) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM order_items WHERE id=$1`, itemID); err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	return nil
}

func (t *pgTx) InsertMessage(ctx context.Context, m *Message) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO messages(order_id, sender_id, content, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, m.OrderID, m.SenderID, m.Content, m.ImageURL, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (t *pgTx) HasRating(ctx context.Context, orderID, raterID int64) (bool, error) {
	var ok bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ratings WHERE order_id=$1 AND rater_id=$2)`,
		orderID, raterID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check rating: %w", err)
	}
	return ok, nil
}

func (t *pgTx) InsertRating(ctx context.Context, r *Rating) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO ratings(order_id, rater_id, rated_id, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, rater_id) DO NOTHING
		RETURNING id`, r.OrderID, r.RaterID, r.RatedID, r.Score, r.Comment, r.CreatedAt).Scan(&r.ID)
	if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
		return fmt.Errorf("%w: order %d", ErrDuplicateRating, r.OrderID)
	}
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                                 Order
		status, method, payStatus, option string
	)
	err := row.Scan(&o.ID, &o.StoreID, &o.SupplierID, &status, &o.TotalCents, &method, &payStatus,
		&option, &o.DeliveryFeeCents, &o.ShippingAddress, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(method)
	o.PaymentStatus = PaymentStatus(payStatus)
	o.DeliveryOption = DeliveryOption(option)
	return &o, nil
}

func loadItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, quantity, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func queryRatings(ctx context.Context, q querier, tail string, arg any) ([]Rating, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, rater_id, rated_id, score, comment, created_at
		FROM ratings `+tail, arg)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.OrderID, &r.RaterID, &r.RatedID, &r.Score, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
