package orders

import (
	"context"
	"errors"
	"fmt"
)

// GetDraft returns the pair's draft, or nil when there is none.
func (s *Service) GetDraft(ctx context.Context, storeID, supplierID int64) (*Order, error) {
	return s.Store.FindDraft(ctx, storeID, supplierID)
}

// CreateDraft opens a new draft for the pair. It fails with ErrConflict when
// another draft already exists, including one created concurrently.
func (s *Service) CreateDraft(ctx context.Context, storeID, supplierID int64) (*Order, error) {
	if storeID <= 0 || supplierID <= 0 || storeID == supplierID {
		return nil, fmt.Errorf("%w: invalid store/supplier pair", ErrValidation)
	}
	now := s.now()
	o := &Order{
		StoreID:    storeID,
		SupplierID: supplierID,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.Store.InTx(ctx, func(tx Tx) error {
		return tx.InsertDraft(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("draft created", "order_id", o.ID, "store_id", storeID, "supplier_id", supplierID)
	return o, nil
}

// GetOrCreateDraft is the idempotent entry point for the cart. Losing the
// creation race is not an error: the winner's draft is returned instead.
func (s *Service) GetOrCreateDraft(ctx context.Context, storeID, supplierID int64) (o *Order, created bool, err error) {
	o, err = s.GetDraft(ctx, storeID, supplierID)
	if err != nil || o != nil {
		return o, false, err
	}
	o, err = s.CreateDraft(ctx, storeID, supplierID)
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, ErrConflict) {
		return nil, false, err
	}
	o, err = s.GetDraft(ctx, storeID, supplierID)
	if err != nil {
		return nil, false, err
	}
	if o == nil {
		// the winner was discarded between our insert and this read
		return nil, false, fmt.Errorf("%w: draft for store %d / supplier %d changed concurrently", ErrConflict, storeID, supplierID)
	}
	return o, false, nil
}

// AddItem puts quantity units of a product in the draft. Adding a product that
// is already on the order merges into its line; the merged quantity is what
// gets checked against stock, and the unit price stays the one captured when
// the product first entered the order.
func (s *Service) AddItem(ctx context.Context, actor Actor, orderID, productID int64, quantity int) (*Order, error) {
	return s.mutateOrder(ctx, orderID, func(tx Tx, o *Order) error {
		if err := s.checkCartAccess(actor, o); err != nil {
			return err
		}
		if quantity < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		p, err := s.product(ctx, o, productID)
		if err != nil {
			return err
		}

		line := o.ItemByProduct(productID)
		combined := quantity
		if line != nil {
			combined += line.Quantity
		}
		if combined > p.StockQuantity {
			return stockError(p)
		}

		if line != nil {
			line.Quantity = combined
			o.Recalculate()
			if err := tx.UpdateItem(ctx, *line); err != nil {
				return err
			}
		} else {
			it := OrderItem{
				OrderID:        o.ID,
				ProductID:      p.ID,
				Quantity:       quantity,
				UnitPriceCents: p.PriceCents,
				SubtotalCents:  int64(quantity) * p.PriceCents,
			}
			if err := tx.InsertItem(ctx, &it); err != nil {
				return err
			}
			o.Items = append(o.Items, it)
			o.Recalculate()
		}
		return s.touch(ctx, tx, o)
	})
}

// UpdateItemQuantity sets the absolute quantity of an order line.
func (s *Service) UpdateItemQuantity(ctx context.Context, actor Actor, itemID int64, quantity int) (*Order, error) {
	return s.mutateItemOrder(ctx, itemID, func(tx Tx, o *Order) error {
		if err := s.checkCartAccess(actor, o); err != nil {
			return err
		}
		if quantity < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		line := o.ItemByID(itemID)
		if line == nil {
			return fmt.Errorf("%w: order item %d", ErrNotFound, itemID)
		}
		p, err := s.product(ctx, o, line.ProductID)
		if err != nil {
			return err
		}
		if quantity > p.StockQuantity {
			return stockError(p)
		}
		line.Quantity = quantity
		o.Recalculate()
		if err := tx.UpdateItem(ctx, *line); err != nil {
			return err
		}
		return s.touch(ctx, tx, o)
	})
}

// RemoveItem drops a line. An emptied draft stays in place.
func (s *Service) RemoveItem(ctx context.Context, actor Actor, itemID int64) (*Order, error) {
	return s.mutateItemOrder(ctx, itemID, func(tx Tx, o *Order) error {
		if err := s.checkCartAccess(actor, o); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		kept := o.Items[:0]
		for _, it := range o.Items {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		o.Items = kept
		o.Recalculate()
		return s.touch(ctx, tx, o)
	})
}

// DiscardDraft abandons a draft together with its lines, freeing the pair.
// It returns the order as it was just before deletion.
func (s *Service) DiscardDraft(ctx context.Context, actor Actor, orderID int64) (*Order, error) {
	var out *Order
	err := s.Store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.checkCartAccess(actor, o); err != nil {
			return err
		}
		out = o
		return tx.DeleteOrder(ctx, o.ID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) checkCartAccess(actor Actor, o *Order) error {
	if !o.IsStore(actor) {
		return fmt.Errorf("%w: only the ordering store can change order %d", ErrForbidden, o.ID)
	}
	if o.Status != StatusDraft {
		return fmt.Errorf("%w: order %d is %s, items are frozen", ErrInvalidState, o.ID, o.Status)
	}
	return nil
}

// product reads the current catalog snapshot and makes sure it belongs to
// the order's supplier.
func (s *Service) product(ctx context.Context, o *Order, productID int64) (Product, error) {
	p, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if p.SupplierID != o.SupplierID {
		return Product{}, fmt.Errorf("%w: product %d is not sold by supplier %d", ErrNotFound, productID, o.SupplierID)
	}
	return p, nil
}

func stockError(p Product) error {
	if p.Unit == "" {
		return fmt.Errorf("%w: only %d available", ErrStock, p.StockQuantity)
	}
	return fmt.Errorf("%w: only %d %s available", ErrStock, p.StockQuantity, p.Unit)
}

// mutateOrder runs fn against the locked order inside one transaction and
// returns the order as fn left it.
func (s *Service) mutateOrder(ctx context.Context, orderID int64, fn func(tx Tx, o *Order) error) (*Order, error) {
	var out *Order
	err := s.Store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(tx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) mutateItemOrder(ctx context.Context, itemID int64, fn func(tx Tx, o *Order) error) (*Order, error) {
	var out *Order
	err := s.Store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrderByItem(ctx, itemID)
		if err != nil {
			return err
		}
		if err := fn(tx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// touch stamps updated_at and writes the order header.
func (s *Service) touch(ctx context.Context, tx Tx, o *Order) error {
	o.UpdatedAt = s.now()
	return tx.UpdateOrder(ctx, o)
}
