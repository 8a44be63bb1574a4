package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_SignVerify(t *testing.T) {
	j := NewJWT("secret")

	tok, err := j.Sign(42)
	require.NoError(t, err)

	uid, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestJWT_WrongSecret(t *testing.T) {
	tok, err := NewJWT("a").Sign(1)
	require.NoError(t, err)

	_, err = NewJWT("b").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT("secret")
	j.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }

	tok, err := j.Sign(7)
	require.NoError(t, err)

	_, err = NewJWT("secret").Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, ComparePassword(h, "correct horse"))
	assert.False(t, ComparePassword(h, "wrong"))
}

func TestRequireAuth(t *testing.T) {
	j := NewJWT("secret")
	tok, err := j.Sign(9)
	require.NoError(t, err)

	var got uint64
	h := RequireAuth(j)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserIDFromContext(r.Context())
	}))

	cases := []struct {
		name string
		req  func() *http.Request
		code int
	}{
		{"header", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer "+tok)
			return r
		}, http.StatusOK},
		{"query", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/?access_token="+tok, nil)
		}, http.StatusOK},
		{"missing", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/", nil)
		}, http.StatusUnauthorized},
		{"garbage", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("Authorization", "Bearer nope")
			return r
		}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got = 0
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tc.req())
			assert.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, uint64(9), got)
			}
		})
	}
}
