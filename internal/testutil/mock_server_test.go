package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockServer(t *testing.T) {
	server := NewMockServer(map[string]http.HandlerFunc{
		"/health": WithJSONResponse(200, map[string]string{"status": "ok"}),
	})
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, err = http.Get(server.URL + "/not-found")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestWithStatusSequence(t *testing.T) {
	rec := &Recorder{}
	server := NewMockServer(map[string]http.HandlerFunc{
		"/flaky": rec.Wrap(WithStatusSequence([]int{503, 502}, WithJSONResponse(200, nil))),
	})
	defer server.Close()

	var got []int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(server.URL + "/flaky")
		require.NoError(t, err)
		resp.Body.Close()
		got = append(got, resp.StatusCode)
	}

	assert.Equal(t, []int{503, 502, 200}, got)
	assert.Equal(t, 3, rec.Count(http.MethodGet, "/flaky"))
}
