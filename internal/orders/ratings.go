package orders

import (
	"context"
	"fmt"
	"strings"
)

// CreateRating records the actor's rating of the counter-party. One rating
// per (order, rater), and only once the order is delivered.
func (s *Service) CreateRating(ctx context.Context, actor Actor, orderID int64, score int, comment string) (*Rating, error) {
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	var out *Rating
	err := s.Store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsParty(actor) {
			return fmt.Errorf("%w: only the store and supplier of order %d can rate it", ErrForbidden, o.ID)
		}
		if o.Status != StatusDelivered {
			return fmt.Errorf("%w: can only rate delivered orders", ErrInvalidState)
		}
		rated, _ := o.CounterParty(actor.UserID)

		exists, err := tx.HasRating(ctx, o.ID, actor.UserID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: order %d", ErrDuplicateRating, o.ID)
		}
		r := &Rating{
			OrderID:   o.ID,
			RaterID:   actor.UserID,
			RatedID:   rated,
			Score:     score,
			Comment:   strings.TrimSpace(comment),
			CreatedAt: s.now(),
		}
		if err := tx.InsertRating(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger().Info("order rated", "order_id", out.OrderID, "rater_id", out.RaterID, "rated_id", out.RatedID, "score", out.Score)
	return out, nil
}

// ListRatingsFor returns every rating where userID is the rated party, newest first.
func (s *Service) ListRatingsFor(ctx context.Context, userID int64) ([]Rating, error) {
	return s.Store.ListRatingsForRated(ctx, userID)
}

func (s *Service) RatingSummaryFor(ctx context.Context, userID int64) (RatingSummary, error) {
	rs, err := s.Store.ListRatingsForRated(ctx, userID)
	if err != nil {
		return RatingSummary{}, err
	}
	return Summarize(userID, rs), nil
}

func Summarize(userID int64, rs []Rating) RatingSummary {
	sum := RatingSummary{UserID: userID, Count: len(rs)}
	if len(rs) == 0 {
		return sum
	}
	total := 0
	for _, r := range rs {
		total += r.Score
	}
	sum.Average = float64(total) / float64(len(rs))
	return sum
}
