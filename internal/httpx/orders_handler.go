package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-supplier-orders/internal/kafka"
	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/ariefcatur/go-supplier-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// StatusCache is satisfied by *redisx.StatusCache.
type StatusCache interface {
	Get(ctx context.Context, orderID int64) (redisx.CachedStatus, bool, error)
	Set(ctx context.Context, cs redisx.CachedStatus) error
	Invalidate(ctx context.Context, orderID int64) error
}

// OrdersHandler exposes the order engine over HTTP. Events and Cache are
// optional; without them nothing is published and status reads go to the
// store every time.
type OrdersHandler struct {
	Orders  *orders.Service
	Events  Publisher
	Cache   StatusCache
	Service string
	Log     *slog.Logger
}

// Register mounts the routes on r. Every route needs an authenticated actor.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/drafts", h.getDraft)
	r.Post("/drafts", h.createDraft)
	r.Delete("/drafts/{id}", h.discardDraft)
	r.Post("/orders/{id}/items", h.addItem)
	r.Patch("/order-items/{itemID}", h.updateItem)
	r.Delete("/order-items/{itemID}", h.removeItem)
	r.Post("/orders/{id}/submit", h.submit)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Post("/orders/{id}/status", h.transition)
	r.Post("/orders/{id}/payment/paid", h.markPaid)
	r.Post("/orders/{id}/payment/pending", h.revertPayment)

	r.Get("/orders/{id}/messages", h.listMessages)
	r.Post("/orders/{id}/messages", h.sendMessage)
	r.Post("/orders/{id}/ratings", h.rate)
	r.Get("/users/{id}/ratings", h.userRatings)
}

type createDraftReq struct {
	SupplierID int64 `json:"supplier_id"`
}

type addItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

type submitReq struct {
	PaymentMethod   string `json:"payment_method"`
	DeliveryOption  string `json:"delivery_option"`
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`
}

type transitionReq struct {
	Status string `json:"status"`
}

type sendMessageReq struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

type rateReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

type draftResp struct {
	Draft *OrderDTO `json:"draft"`
}

type messagesResp struct {
	Messages      []MessageDTO `json:"messages"`
	MessagingOpen bool         `json:"messaging_open"`
}

type userRatingsResp struct {
	UserID  int64       `json:"user_id"`
	Count   int         `json:"count"`
	Average float64     `json:"average"`
	Ratings []RatingDTO `json:"ratings"`
}

func (h *OrdersHandler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func (h *OrdersHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, h.log(), r, err)
}

func (h *OrdersHandler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "validation_error"})
}

// ---- cart ----

func (h *OrdersHandler) getDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.storeActor(w, r)
	if !ok {
		return
	}
	supplierID, err := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	if err != nil || supplierID <= 0 {
		h.badRequest(w, "invalid supplier_id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetDraft(ctx, actor.UserID, supplierID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// tidak ada draft bukan error
	if o == nil {
		writeJSON(w, http.StatusOK, draftResp{})
		return
	}
	d := toOrderDTO(o)
	writeJSON(w, http.StatusOK, draftResp{Draft: &d})
}

func (h *OrdersHandler) createDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.storeActor(w, r)
	if !ok {
		return
	}
	var req createDraftReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, created, err := h.Orders.GetOrCreateDraft(ctx, actor.UserID, req.SupplierID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, toOrderDTO(o))
		return
	}
	h.publish(r, orders.EventDraftCreated, o.ID, actor, orders.DraftPayload{OrderID: o.ID, StoreID: o.StoreID, SupplierID: o.SupplierID})
	writeJSON(w, http.StatusCreated, toOrderDTO(o))
}

func (h *OrdersHandler) discardDraft(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.DiscardDraft(ctx, actor, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.Invalidate(ctx, orderID); err != nil {
			h.log().Warn("status cache invalidate failed", "order_id", orderID, "error", err)
		}
	}
	h.publish(r, orders.EventDraftDiscarded, orderID, actor, orders.DraftPayload{OrderID: o.ID, StoreID: o.StoreID, SupplierID: o.SupplierID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) addItem(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	var req addItemReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.AddItem(ctx, actor, orderID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *OrdersHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := h.actorAndID(w, r, "itemID")
	if !ok {
		return
	}
	var req updateItemReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdateItemQuantity(ctx, actor, itemID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *OrdersHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	actor, itemID, ok := h.actorAndID(w, r, "itemID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.RemoveItem(ctx, actor, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *OrdersHandler) submit(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	var req submitReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.Submit(ctx, actor, orderID, orders.SubmitRequest{
		PaymentMethod:   orders.PaymentMethod(req.PaymentMethod),
		DeliveryOption:  orders.DeliveryOption(req.DeliveryOption),
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	h.publish(r, orders.EventOrderSubmitted, o.ID, actor, orders.OrderSubmittedPayload{
		OrderID:          o.ID,
		StoreID:          o.StoreID,
		SupplierID:       o.SupplierID,
		ItemCount:        len(o.Items),
		TotalCents:       o.TotalCents,
		DeliveryFeeCents: o.DeliveryFeeCents,
		PaymentMethod:    o.PaymentMethod,
		DeliveryOption:   o.DeliveryOption,
	})
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// ---- orders ----

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var status orders.Status
	if s := r.URL.Query().Get("status"); s != "" {
		if status, ok = orders.ParseStatus(s); !ok {
			h.badRequest(w, "invalid status")
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Orders.ListOrders(ctx, actor, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]OrderDTO, 0, len(list))
	for i := range list {
		out = append(out, toOrderDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dto := toOrderDTO(&d.Order)
	dto.Ratings = toRatingDTOs(d.Ratings)
	open := d.MessagingOpen
	dto.MessagingOpen = &open
	writeJSON(w, http.StatusOK, dto)
}

// getStatus is the polling endpoint. It is served from the cache when
// possible; the cached parties are enough to check access.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Cache != nil {
		cs, hit, err := h.Cache.Get(ctx, orderID)
		if err != nil {
			h.log().Warn("status cache read failed", "order_id", orderID, "error", err)
		}
		if hit {
			o := cs.Order()
			if !o.IsParty(actor) && actor.Role != orders.RoleAdmin {
				h.fail(w, r, fmt.Errorf("%w: order %d", orders.ErrNotFound, orderID))
				return
			}
			writeJSON(w, http.StatusOK, h.statusDTO(o, true))
			return
		}
	}

	// 2) fallback DB
	d, err := h.Orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, &d.Order)
	writeJSON(w, http.StatusOK, h.statusDTO(&d.Order, false))
}

func (h *OrdersHandler) statusDTO(o *orders.Order, cached bool) StatusDTO {
	return StatusDTO{
		OrderID:       o.ID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		UpdatedAt:     o.UpdatedAt,
		MessagingOpen: h.Orders.MessagingOpen(o),
		Cached:        cached,
	}
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	var req transitionReq
	if !decode(w, r, &req) {
		return
	}
	target, ok := orders.ParseStatus(req.Status)
	if !ok {
		h.badRequest(w, "invalid status")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, from, err := h.Orders.Transition(ctx, actor, orderID, target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	h.publish(r, orders.EventOrderStatusChanged, o.ID, actor, orders.StatusChangedPayload{OrderID: o.ID, From: from, To: o.Status})
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (h *OrdersHandler) markPaid(w http.ResponseWriter, r *http.Request) {
	h.paymentChange(w, r, h.Orders.MarkPaymentPaid)
}

func (h *OrdersHandler) revertPayment(w http.ResponseWriter, r *http.Request) {
	h.paymentChange(w, r, h.Orders.RevertPaymentToPending)
}

func (h *OrdersHandler) paymentChange(w http.ResponseWriter, r *http.Request, fn func(context.Context, orders.Actor, int64) (*orders.Order, error)) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := fn(ctx, actor, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cacheStatus(ctx, o)
	h.publish(r, orders.EventPaymentStatusChanged, o.ID, actor, orders.PaymentChangedPayload{OrderID: o.ID, PaymentStatus: o.PaymentStatus})
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

// ---- messages & ratings ----

func (h *OrdersHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ms, open, err := h.Orders.ListMessages(ctx, actor, orderID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := messagesResp{Messages: make([]MessageDTO, 0, len(ms)), MessagingOpen: open}
	for _, m := range ms {
		out.Messages = append(out.Messages, toMessageDTO(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	var req sendMessageReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	m, err := h.Orders.SendMessage(ctx, actor, orderID, req.Content, req.ImageURL)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r, orders.EventMessagePosted, orderID, actor, orders.MessagePostedPayload{
		OrderID: orderID, MessageID: m.ID, SenderID: m.SenderID, HasImage: m.ImageURL != "",
	})
	writeJSON(w, http.StatusCreated, toMessageDTO(*m))
}

func (h *OrdersHandler) rate(w http.ResponseWriter, r *http.Request) {
	actor, orderID, ok := h.actorAndID(w, r, "id")
	if !ok {
		return
	}
	var req rateReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rt, err := h.Orders.CreateRating(ctx, actor, orderID, req.Rating, req.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.publish(r, orders.EventOrderRated, orderID, actor, orders.OrderRatedPayload{
		OrderID: orderID, RaterID: rt.RaterID, RatedID: rt.RatedID, Score: rt.Score,
	})
	writeJSON(w, http.StatusCreated, toRatingDTO(*rt))
}

func (h *OrdersHandler) userRatings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rs, err := h.Orders.ListRatingsFor(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sum := orders.Summarize(userID, rs)
	writeJSON(w, http.StatusOK, userRatingsResp{UserID: userID, Count: sum.Count, Average: sum.Average, Ratings: toRatingDTOs(rs)})
}

// ---- helpers ----

func (h *OrdersHandler) actor(w http.ResponseWriter, r *http.Request) (orders.Actor, bool) {
	a, ok := ActorFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "user not authenticated", Code: "unauthenticated"})
	}
	return a, ok
}

func (h *OrdersHandler) storeActor(w http.ResponseWriter, r *http.Request) (orders.Actor, bool) {
	a, ok := h.actor(w, r)
	if !ok {
		return a, false
	}
	if a.Role != orders.RoleStore {
		h.fail(w, r, fmt.Errorf("%w: only stores have carts", orders.ErrForbidden))
		return a, false
	}
	return a, true
}

func (h *OrdersHandler) actorAndID(w http.ResponseWriter, r *http.Request, param string) (orders.Actor, int64, bool) {
	a, ok := h.actor(w, r)
	if !ok {
		return a, 0, false
	}
	id, ok := pathID(w, r, param)
	return a, id, ok
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + param, Code: "validation_error"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "validation_error"})
		return false
	}
	return true
}

// cacheStatus is best effort: a failed write only costs a later cache miss.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(ctx, redisx.StatusOf(o)); err != nil {
		h.log().Warn("status cache write failed", "order_id", o.ID, "error", err)
		_ = h.Cache.Invalidate(ctx, o.ID)
	}
}

// publish sends a lifecycle envelope after the operation has committed.
// Publishing never fails the request.
func (h *OrdersHandler) publish(r *http.Request, eventType string, orderID int64, actor orders.Actor, payload any) {
	if h.Events == nil {
		return
	}
	ev, err := orders.NewEnvelope(eventType, h.Service, middleware.GetReqID(r.Context()), orderID, actor, payload)
	if err != nil {
		h.log().Error("build event", "event_type", eventType, "order_id", orderID, "error", err)
		return
	}
	value := kafkax.MustMarshal(ev)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
	defer cancel()
	err = h.Events.Publish(ctx, orders.PartitionKey(orderID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.log().Warn("publish event failed", "event_type", eventType, "order_id", orderID, "error", err)
	}
}
