package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/internal/testutil"
)

func TestNew_SendsServiceKey(t *testing.T) {
	var apikey, auth string
	server := testutil.NewMockServer(map[string]http.HandlerFunc{
		"/ping": func(w http.ResponseWriter, r *http.Request) {
			apikey = r.Header.Get("apikey")
			auth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		},
	})
	defer server.Close()

	resp, err := New(server.URL+"/", "secret", time.Second).R().SetContext(context.Background()).Get("/ping")
	require.NoError(t, Check("ping", resp, err))
	assert.Equal(t, "secret", apikey)
	assert.Equal(t, "Bearer secret", auth)
}

func TestCheck_Classification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      any
		wantKind  migerr.Kind
		wantIs    error
		wantInMsg string
	}{
		{name: "conflict", status: 409, body: map[string]string{"code": "23505", "message": "duplicate key"}, wantKind: migerr.KindRow, wantIs: store.ErrConflict, wantInMsg: "duplicate key"},
		{name: "unique via 400", status: 400, body: map[string]string{"code": "23505", "message": "dup"}, wantKind: migerr.KindRow, wantIs: store.ErrConflict},
		{name: "not found", status: 404, body: map[string]string{"message": "relation missing"}, wantKind: migerr.KindRow, wantIs: store.ErrNotFound},
		{name: "bad request", status: 400, body: map[string]string{"message": "invalid input syntax"}, wantKind: migerr.KindRow, wantInMsg: "invalid input syntax"},
		{name: "unavailable", status: 503, body: nil, wantKind: migerr.KindTransient},
		{name: "throttled", status: 429, body: nil, wantKind: migerr.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewMockServer(map[string]http.HandlerFunc{
				"/x": testutil.WithJSONResponse(tt.status, tt.body),
			})
			defer server.Close()

			resp, err := New(server.URL, "k", time.Second).R().Get("/x")
			got := Check("op", resp, err)
			require.Error(t, got)
			assert.Equal(t, tt.wantKind, migerr.KindOf(got))
			if tt.wantIs != nil {
				assert.ErrorIs(t, got, tt.wantIs)
			}
			if tt.wantInMsg != "" {
				assert.Contains(t, got.Error(), tt.wantInMsg)
			}
		})
	}
}

func TestCheck_NetworkErrorIsTransient(t *testing.T) {
	resp, err := New("http://127.0.0.1:1", "k", 200*time.Millisecond).R().Get("/x")
	assert.True(t, migerr.Is(Check("op", resp, err), migerr.KindTransient))
}
