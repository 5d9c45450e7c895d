package assets

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/testutil"
)

func TestHTTPSource_URL(t *testing.T) {
	s := NewHTTPSource("https://firebasestorage.googleapis.com/", "legacy.appspot.com")

	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/legacy.appspot.com/o/users%2Fst1%2Favatar.png?alt=media",
		s.URL("/users/st1/avatar.png"),
	)
	assert.Equal(t, "https://cdn.example/p.jpg", s.URL("https://cdn.example/p.jpg"))
}

func TestHTTPSource_Fetch(t *testing.T) {
	server := testutil.NewMockServer(map[string]http.HandlerFunc{
		"/v0/b/bucket/o/": func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.EscapedPath() {
			case "/v0/b/bucket/o/ok.jpg":
				assert.Equal(t, "media", r.URL.Query().Get("alt"))
				_, _ = w.Write([]byte("jpeg-bytes"))
			case "/v0/b/bucket/o/busy.jpg":
				w.WriteHeader(http.StatusServiceUnavailable)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		},
	})
	defer server.Close()

	s := NewHTTPSource(server.URL, "bucket")
	ctx := context.Background()

	data, err := s.Fetch(ctx, "ok.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)

	_, err = s.Fetch(ctx, "busy.jpg")
	assert.True(t, migerr.Is(err, migerr.KindTransient))

	_, err = s.Fetch(ctx, "gone.jpg")
	assert.True(t, migerr.Is(err, migerr.KindRow))
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("http://x/y"))
	assert.False(t, IsURL("images/y.jpg"))
}
