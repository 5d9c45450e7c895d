// Package httpclient builds the resty clients that talk to the Supabase REST
// APIs and maps their failures onto the migration error kinds.
package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
)

const userAgent = "studio-migrate"

// New returns a client authenticated with the service role key.
func New(baseURL, serviceKey string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("apikey", serviceKey).
		SetAuthToken(serviceKey)
}

// APIError is the error body returned by PostgREST and the Storage API.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
	Error      string `json:"error"`
	StatusCode string `json:"statusCode"`
}

// Check returns nil for a 2xx response and a classified error otherwise.
// 409 and SQLSTATE 23505 wrap store.ErrConflict, 404 wraps store.ErrNotFound,
// 429 and 5xx are transient.
func Check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return migerr.Transient(op, err)
	}
	if resp.IsSuccess() {
		return nil
	}

	var body APIError
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(resp.String())
	}
	detail := fmt.Errorf("HTTP %d: %s", resp.StatusCode(), msg)

	switch {
	case resp.StatusCode() == http.StatusConflict || body.Code == "23505" || body.StatusCode == "409":
		return migerr.Wrap(migerr.KindRow, op, fmt.Errorf("%w: %v", store.ErrConflict, detail))
	case resp.StatusCode() == http.StatusNotFound || body.StatusCode == "404":
		return migerr.Wrap(migerr.KindRow, op, fmt.Errorf("%w: %v", store.ErrNotFound, detail))
	case resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500:
		return migerr.Transient(op, detail)
	}
	return migerr.Wrap(migerr.KindRow, op, detail)
}
