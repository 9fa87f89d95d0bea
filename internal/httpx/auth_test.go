package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-supplier-orders/internal/orders"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatorActor(t *testing.T) {
	a := &Authenticator{Secret: secret}
	sign := func(method jwt.SigningMethod, key any, c Claims) string {
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, err)
		return s
	}
	future := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	past := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}

	cases := []struct {
		name  string
		token string
		want  orders.Actor
		ok    bool
	}{
		{"valid", sign(jwt.SigningMethodHS256, secret, Claims{UserID: 7, Role: "supplier", RegisteredClaims: future}), orders.Actor{UserID: 7, Role: orders.RoleSupplier}, true},
		{"wrong key", sign(jwt.SigningMethodHS256, []byte("other"), Claims{UserID: 7, Role: "store", RegisteredClaims: future}), orders.Actor{}, false},
		{"wrong alg", sign(jwt.SigningMethodHS512, secret, Claims{UserID: 7, Role: "store", RegisteredClaims: future}), orders.Actor{}, false},
		{"expired", sign(jwt.SigningMethodHS256, secret, Claims{UserID: 7, Role: "store", RegisteredClaims: past}), orders.Actor{}, false},
		{"unknown role", sign(jwt.SigningMethodHS256, secret, Claims{UserID: 7, Role: "courier", RegisteredClaims: future}), orders.Actor{}, false},
		{"no user", sign(jwt.SigningMethodHS256, secret, Claims{Role: "store", RegisteredClaims: future}), orders.Actor{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got orders.Actor
			var reached bool
			h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, reached = ActorFrom(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.ok, reached)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			} else {
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := Money(500000).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"5000.00"`, string(b))
	b, _ = Money(5).MarshalJSON()
	assert.Equal(t, `"0.05"`, string(b))
}
