// Package postgrest implements store.Store over the Supabase PostgREST API.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/httpclient"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Client talks to <project>/rest/v1.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// New creates a PostgREST store. http must already carry the base URL and
// service role headers (see httpclient.New).
func New(http *resty.Client, log *zap.Logger) *Client {
	return &Client{http: http, log: log.With(logger.Scope("store.postgrest"))}
}

// Select implements store.Store.
func (c *Client) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	params := encodeFilters(q.Filters)
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Limit > 0 {
		params.Set("limit", fmt.Sprint(q.Limit))
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get("/" + q.Table)
	if err := httpclient.Check("select "+q.Table, resp, err); err != nil {
		return nil, err
	}
	return decodeRows(resp.Body())
}

// Insert implements store.Store.
func (c *Client) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetBody(encodeRow(row)).
		Post("/" + table)
	if err := httpclient.Check("insert "+table, resp, err); err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp.Body())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert %s: empty representation", table)
	}
	return rows[0], nil
}

// Update implements store.Store.
func (c *Client) Update(ctx context.Context, table string, set store.Row, filters ...store.Filter) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("update %s: refusing to update without filters", table)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(encodeFilters(filters)).
		SetBody(encodeRow(set)).
		Patch("/" + table)
	if err := httpclient.Check("update "+table, resp, err); err != nil {
		return 0, err
	}
	rows, err := decodeRows(resp.Body())
	return len(rows), err
}

// Delete implements store.Store.
func (c *Client) Delete(ctx context.Context, table string, filters ...store.Filter) (int, error) {
	if len(filters) == 0 {
		return 0, fmt.Errorf("delete %s: refusing to delete without filters", table)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(encodeFilters(filters)).
		Delete("/" + table)
	if err := httpclient.Check("delete "+table, resp, err); err != nil {
		return 0, err
	}
	rows, err := decodeRows(resp.Body())
	if err != nil {
		return 0, err
	}
	c.log.Debug("deleted rows", zap.String("table", table), zap.String("where", store.Describe(filters)), zap.Int("count", len(rows)))
	return len(rows), nil
}

// encodeFilters renders filters as PostgREST query parameters, e.g.
// email=ilike.a@x.com or id=in.("1","2").
func encodeFilters(filters []store.Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		switch f.Op {
		case store.OpIn:
			vs, _ := f.Value.([]string)
			quoted := make([]string, len(vs))
			for i, v := range vs {
				quoted[i] = quote(v)
			}
			params.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		case store.OpIsNull:
			params.Add(f.Column, "is.null")
		case store.OpILike:
			params.Add(f.Column, "ilike."+escapeLike(store.FormatValue(f.Value)))
		default:
			params.Add(f.Column, string(f.Op)+"."+store.FormatValue(f.Value))
		}
	}
	return params
}

// quote wraps a list value in double quotes so commas and parentheses survive.
func quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

// escapeLike turns pattern characters into literals so ilike compares for
// equality ignoring case.
func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `\*`).Replace(v)
}

func encodeRow(row store.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func decodeRows(body []byte) ([]store.Row, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []store.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode PostgREST response: %w", err)
	}
	return rows, nil
}
