package orders

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxMessageLength = 5000

// MessagingOpen is derived purely from status and updated_at: chat closes
// once an order has been delivered for at least window. A delivered ->
// in_transit correction refreshes updated_at and so reopens the chat.
func MessagingOpen(o *Order, now time.Time, window time.Duration) bool {
	if o.Status != StatusDelivered {
		return true
	}
	return now.Sub(o.UpdatedAt) < window
}

func (s *Service) MessagingOpen(o *Order) bool {
	return MessagingOpen(o, s.now(), s.Policy.MessagingWindow)
}

// SendMessage appends a chat message from one of the order's parties.
func (s *Service) SendMessage(ctx context.Context, actor Actor, orderID int64, content, imageURL string) (*Message, error) {
	content = strings.TrimSpace(content)
	imageURL = strings.TrimSpace(imageURL)
	if content == "" && imageURL == "" {
		return nil, fmt.Errorf("%w: message must have either content or an image", ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message content must be at most %d characters", ErrValidation, MaxMessageLength)
	}

	var msg *Message
	err := s.Store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsParty(actor) {
			return fmt.Errorf("%w: only the store and supplier of order %d can send messages", ErrForbidden, o.ID)
		}
		now := s.now()
		if !MessagingOpen(o, now, s.Policy.MessagingWindow) {
			return fmt.Errorf("%w: order %d was delivered more than %s ago", ErrMessagingClosed, o.ID, s.Policy.MessagingWindow)
		}
		m := &Message{
			OrderID:   o.ID,
			SenderID:  actor.UserID,
			Content:   content,
			ImageURL:  imageURL,
			CreatedAt: now,
		}
		if err := tx.InsertMessage(ctx, m); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the order's chat, oldest first, together with whether
// the chat currently accepts new messages.
func (s *Service) ListMessages(ctx context.Context, actor Actor, orderID int64) ([]Message, bool, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if !o.IsParty(actor) {
		return nil, false, fmt.Errorf("%w: only the store and supplier of order %d can read messages", ErrForbidden, o.ID)
	}
	msgs, err := s.Store.ListMessages(ctx, o.ID)
	if err != nil {
		return nil, false, err
	}
	return msgs, s.MessagingOpen(o), nil
}
