// Package memstore is an in-process orders.Store and orders.Catalog. It backs
// the engine in tests and local runs without Postgres, and enforces the same
// uniqueness rules as the SQL schema.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ariefcatur/go-supplier-orders/internal/orders"
)

type state struct {
	orders   map[int64]orders.Order
	messages []orders.Message
	ratings  []orders.Rating
	nextID   int64
}

func (s *state) clone() *state {
	c := &state{
		orders:   make(map[int64]orders.Order, len(s.orders)),
		messages: append([]orders.Message(nil), s.messages...),
		ratings:  append([]orders.Rating(nil), s.ratings...),
		nextID:   s.nextID,
	}
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store serializes transactions behind one mutex. A transaction works on a
// copy of the state that replaces the original only when fn returns nil.
type Store struct {
	mu       sync.Mutex
	st       *state
	products map[int64]orders.Product
}

func New() *Store {
	return &Store{
		st:       &state{orders: map[int64]orders.Order{}},
		products: map[int64]orders.Product{},
	}
}

// AddProduct seeds or replaces a catalog entry.
func (s *Store) AddProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// SetStock changes a product's stock, as the catalog service would.
func (s *Store) SetStock(productID int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[productID]
	p.StockQuantity = qty
	s.products[productID] = p
}

func (s *Store) GetProduct(_ context.Context, productID int64) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return orders.Product{}, fmt.Errorf("%w: product %d", orders.ErrNotFound, productID)
	}
	return p, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) FindDraft(_ context.Context, storeID, supplierID int64) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.st.draft(storeID, supplierID); ok {
		return &o, nil
	}
	return nil, nil
}

func (s *Store) GetOrder(_ context.Context, orderID int64) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", orders.ErrNotFound, orderID)
	}
	o = copyOrder(o)
	return &o, nil
}

func (s *Store) ListOrders(_ context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.st.orders {
		if f.StoreID != 0 && o.StoreID != f.StoreID {
			continue
		}
		if f.SupplierID != 0 && o.SupplierID != f.SupplierID {
			continue
		}
		if f.Status == "" && o.Status == orders.StatusDraft {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListMessages(_ context.Context, orderID int64) ([]orders.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Message
	for _, m := range s.st.messages {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ListRatingsByOrder(_ context.Context, orderID int64) ([]orders.Rating, error) {
	rs := s.ratings(func(r orders.Rating) bool { return r.OrderID == orderID })
	slices.Reverse(rs)
	return rs, nil
}

func (s *Store) ListRatingsForRated(_ context.Context, userID int64) ([]orders.Rating, error) {
	return s.ratings(func(r orders.Rating) bool { return r.RatedID == userID }), nil
}

// ratings returns matches newest first; ListRatingsByOrder reverses them.
func (s *Store) ratings(match func(orders.Rating) bool) []orders.Rating {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Rating
	for i := len(s.st.ratings) - 1; i >= 0; i-- {
		if r := s.st.ratings[i]; match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *state) draft(storeID, supplierID int64) (orders.Order, bool) {
	for _, o := range s.orders {
		if o.StoreID == storeID && o.SupplierID == supplierID && o.Status == orders.StatusDraft {
			return copyOrder(o), true
		}
	}
	return orders.Order{}, false
}

type tx struct{ st *state }

func (t *tx) LockOrder(_ context.Context, orderID int64) (*orders.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", orders.ErrNotFound, orderID)
	}
	o = copyOrder(o)
	return &o, nil
}

func (t *tx) LockOrderByItem(ctx context.Context, itemID int64) (*orders.Order, error) {
	for id, o := range t.st.orders {
		if o.ItemByID(itemID) != nil {
			return t.LockOrder(ctx, id)
		}
	}
	return nil, fmt.Errorf("%w: order item %d", orders.ErrNotFound, itemID)
}

func (t *tx) InsertDraft(_ context.Context, o *orders.Order) error {
	if _, ok := t.st.draft(o.StoreID, o.SupplierID); ok {
		return fmt.Errorf("%w: store %d / supplier %d", orders.ErrConflict, o.StoreID, o.SupplierID)
	}
	o.ID = t.st.id()
	o.Status = orders.StatusDraft
	t.st.orders[o.ID] = copyOrder(*o)
	return nil
}

// UpdateOrder writes the header fields only; lines go through the item methods.
func (t *tx) UpdateOrder(_ context.Context, o *orders.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %d", orders.ErrNotFound, o.ID)
	}
	if o.Status == orders.StatusDraft && cur.Status != orders.StatusDraft {
		if _, dup := t.st.draft(o.StoreID, o.SupplierID); dup {
			return fmt.Errorf("%w: store %d / supplier %d", orders.ErrConflict, o.StoreID, o.SupplierID)
		}
	}
	next := copyOrder(*o)
	next.Items = cur.Items
	t.st.orders[o.ID] = next
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, orderID int64) error {
	delete(t.st.orders, orderID)
	kept := t.st.messages[:0]
	for _, m := range t.st.messages {
		if m.OrderID != orderID {
			kept = append(kept, m)
		}
	}
	t.st.messages = kept
	return nil
}

func (t *tx) InsertItem(_ context.Context, it *orders.OrderItem) error {
	o, ok := t.st.orders[it.OrderID]
	if !ok {
		return fmt.Errorf("%w: order %d", orders.ErrNotFound, it.OrderID)
	}
	if o.ItemByProduct(it.ProductID) != nil {
		return fmt.Errorf("%w: product %d already on order %d", orders.ErrConflict, it.ProductID, it.OrderID)
	}
	it.ID = t.st.id()
	o.Items = append(o.Items, *it)
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) UpdateItem(_ context.Context, it orders.OrderItem) error {
	for id, o := range t.st.orders {
		if cur := o.ItemByID(it.ID); cur != nil {
			cur.Quantity = it.Quantity
			cur.SubtotalCents = it.SubtotalCents
			t.st.orders[id] = o
			return nil
		}
	}
	return fmt.Errorf("%w: order item %d", orders.ErrNotFound, it.ID)
}

func (t *tx) DeleteItem(_ context.Context, itemID int64) error {
	for id, o := range t.st.orders {
		for i := range o.Items {
			if o.Items[i].ID == itemID {
				o.Items = append(o.Items[:i:i], o.Items[i+1:]...)
				t.st.orders[id] = o
				return nil
			}
		}
	}
	return nil
}

func (t *tx) InsertMessage(_ context.Context, m *orders.Message) error {
	if _, ok := t.st.orders[m.OrderID]; !ok {
		return fmt.Errorf("%w: order %d", orders.ErrNotFound, m.OrderID)
	}
	m.ID = t.st.id()
	t.st.messages = append(t.st.messages, *m)
	return nil
}

func (t *tx) HasRating(_ context.Context, orderID, raterID int64) (bool, error) {
	for _, r := range t.st.ratings {
		if r.OrderID == orderID && r.RaterID == raterID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertRating(ctx context.Context, r *orders.Rating) error {
	if dup, _ := t.HasRating(ctx, r.OrderID, r.RaterID); dup {
		return fmt.Errorf("%w: order %d", orders.ErrDuplicateRating, r.OrderID)
	}
	r.ID = t.st.id()
	t.st.ratings = append(t.st.ratings, *r)
	return nil
}

func copyOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	return o
}
