package supabase

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/httpclient"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
	"github.com/nabijung/thepilatesapp-sub000/internal/testutil"
)

func newBucket(t *testing.T, handlers map[string]http.HandlerFunc) (*Bucket, string) {
	t.Helper()
	server := testutil.NewMockServer(handlers)
	t.Cleanup(server.Close)
	base := server.URL + "/storage/v1"
	return New(httpclient.New(base, "service", time.Second), "images", zap.NewNop()), base
}

func TestBucket_Exists(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{name: "present", status: 200, want: true},
		{name: "missing 404", status: 404, want: false},
		{name: "missing 400", status: 400, want: false},
		{name: "server error", status: 500, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newBucket(t, map[string]http.HandlerFunc{
				"HEAD /storage/v1/object/images/profile/1/avatar.jpg": func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
				},
			})

			got, err := b.Exists(context.Background(), objectstore.ProfilePath("1"))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, migerr.Is(err, migerr.KindTransient))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBucket_Upload(t *testing.T) {
	var contentType, upsert string
	var body []byte
	b, base := newBucket(t, map[string]http.HandlerFunc{
		"POST /storage/v1/object/images/progress/s/1/p.jpg": func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			upsert = r.Header.Get("x-upsert")
			body, _ = io.ReadAll(r.Body)
			testutil.WithJSONResponse(200, map[string]string{"Key": "images/progress/s/1/p.jpg"})(w, r)
		},
		"POST /storage/v1/object/images/dup.jpg": testutil.WithJSONResponse(400, map[string]string{
			"statusCode": "409", "error": "Duplicate", "message": "The resource already exists",
		}),
	})
	ctx := context.Background()

	require.NoError(t, b.Upload(ctx, objectstore.ProgressPath("s", "1", "p"), []byte{0xff, 0xd8}, objectstore.ContentTypeJPEG))
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, "false", upsert)
	assert.Equal(t, []byte{0xff, 0xd8}, body)

	assert.ErrorIs(t, b.Upload(ctx, "dup.jpg", []byte{1}, objectstore.ContentTypeJPEG), objectstore.ErrExists)
	assert.Equal(t, base+"/object/public/images/profile/7/avatar.jpg", b.PublicURL("profile/7/avatar.jpg"))
}
