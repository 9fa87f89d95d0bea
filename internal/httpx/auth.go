package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by tokens from the external auth service.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// Authenticator verifies the bearer token and puts the caller's Actor on the
// request context. Issuing tokens is not this service's job.
type Authenticator struct {
	Secret []byte
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.actor(r)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "user not authenticated", Code: "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func (a *Authenticator) actor(r *http.Request) (orders.Actor, error) {
	h := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || raw == "" {
		return orders.Actor{}, errors.New("missing bearer token")
	}
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return orders.Actor{}, err
	}
	role := orders.Role(c.Role)
	switch role {
	case orders.RoleStore, orders.RoleSupplier, orders.RoleAdmin:
	default:
		return orders.Actor{}, errors.New("unknown role")
	}
	if c.UserID <= 0 {
		return orders.Actor{}, errors.New("missing user id")
	}
	return orders.Actor{UserID: c.UserID, Role: role}, nil
}

func WithActor(ctx context.Context, a orders.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (orders.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(orders.Actor)
	return a, ok
}
