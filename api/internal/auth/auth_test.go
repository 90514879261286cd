package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calorie-lens/api/internal/analysis"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error         { return f.err }

func TestGate_SetAndAttach(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	g := NewGate(store)

	has, err := g.HasCredential(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, g.SetCredential(ctx, " päss wörd\t"))
	has, err = g.HasCredential(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	v, ok, _ := store.Get(ctx, StorageKey)
	require.True(t, ok)
	assert.Equal(t, " päss wörd\t", v)

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-food", nil)
	require.NoError(t, g.AttachHeader(ctx, req))
	assert.Equal(t, []string{" päss wörd\t"}, req.Header.Values(HeaderName))
}

func TestGate_LoadsPersistedValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, StorageKey, "abc"))

	g := NewGate(store)
	v, err := g.Credential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestGate_RejectsBlank(t *testing.T) {
	g := NewGate(NewMemoryStore())
	for _, v := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, g.SetCredential(context.Background(), v), analysis.ErrEmptyCredential)
	}
	has, err := g.HasCredential(context.Background())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGate_AttachWithoutCredential(t *testing.T) {
	g := NewGate(NewMemoryStore())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.ErrorIs(t, g.AttachHeader(context.Background(), req), analysis.ErrUnauthorized)
	assert.Empty(t, req.Header.Get(HeaderName))
}

func TestGate_StoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	g := NewGate(failingStore{err: boom})
	_, err := g.HasCredential(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, g.SetCredential(context.Background(), "x"), boom)
}

func TestValidator(t *testing.T) {
	v := NewValidator("s3cret")
	assert.True(t, v.Validate("s3cret"))
	assert.False(t, v.Validate("s3cre"))
	assert.False(t, v.Validate("s3cret "))
	assert.False(t, v.Validate(""))
	assert.False(t, NewValidator("").Validate(""))
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name     string
		header   *string
		wantCode int
	}{
		{"missing header", nil, http.StatusUnauthorized},
		{"wrong header", ptr("nope"), http.StatusUnauthorized},
		{"right header", ptr("s3cret"), http.StatusOK},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := Require(NewValidator("s3cret"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/analyze-food", nil)
			if tt.header != nil {
				req.Header.Set(HeaderName, *tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCode == http.StatusOK, called)
			if tt.wantCode == http.StatusUnauthorized {
				b, _ := io.ReadAll(rec.Body)
				bodies = append(bodies, string(b))
			}
		})
	}
	// missing and wrong credentials are indistinguishable
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
}

func ptr(s string) *string { return &s }
