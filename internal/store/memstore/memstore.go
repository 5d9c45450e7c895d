// Package memstore is an in-memory store.Store used by tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nabijung/thepilatesapp-sub000/internal/store"
)

// UUIDTables get uuid primary keys; every other table gets serial ids.
var UUIDTables = map[string]bool{store.TableStudio: true}

// Store keeps rows per table in insertion order.
type Store struct {
	mu     sync.Mutex
	tables map[string][]store.Row
	serial map[string]int
	unique  map[string][][]string
	notNull map[string][]string
	fail    map[string]error

	// Writes counts successful inserts, updates and deletes per table.
	Writes map[string]int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tables: make(map[string][]store.Row),
		serial: make(map[string]int),
		unique:  make(map[string][][]string),
		notNull: make(map[string][]string),
		fail:    make(map[string]error),
		Writes:  make(map[string]int),
	}
}

// Unique declares a unique constraint over cols. Violating inserts return
// store.ErrConflict.
func (s *Store) Unique(table string, cols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[table] = append(s.unique[table], cols)
}

// NotNull rejects inserts into table that leave any of cols null.
func (s *Store) NotNull(table string, cols ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notNull[table] = append(s.notNull[table], cols...)
}

// FailInserts makes every insert into table return err. A nil err clears it.
func (s *Store) FailInserts(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, table)
		return
	}
	s.fail[table] = err
}

// Seed inserts rows as they are, bypassing constraints. Rows without an id get one.
func (s *Store) Seed(table string, rows ...store.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		r = clone(r)
		if r.ID() == "" {
			r["id"] = s.nextID(table)
		}
		s.tables[table] = append(s.tables[table], r)
	}
}

// Rows returns a copy of every row in table.
func (s *Store) Rows(table string) []store.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Count returns the number of rows in table.
func (s *Store) Count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[table])
}

// Select implements store.Store.
func (s *Store) Select(_ context.Context, q store.Query) ([]store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Row
	for _, r := range s.tables[q.Table] {
		if matchAll(r, q.Filters) {
			out = append(out, project(r, q.Columns))
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := store.FormatValue(out[i][q.OrderBy]), store.FormatValue(out[j][q.OrderBy])
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert implements store.Store.
func (s *Store) Insert(_ context.Context, table string, row store.Row) (store.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail[table]; err != nil {
		return nil, err
	}
	for _, col := range s.notNull[table] {
		if row[col] == nil {
			return nil, fmt.Errorf("%s: null value in column %q violates not-null constraint", table, col)
		}
	}
	for _, cols := range s.unique[table] {
		for _, existing := range s.tables[table] {
			if sameOn(existing, row, cols) {
				return nil, fmt.Errorf("%w: %s(%s)", store.ErrConflict, table, strings.Join(cols, ", "))
			}
		}
	}

	r := clone(row)
	r["id"] = s.nextID(table)
	s.tables[table] = append(s.tables[table], r)
	s.Writes[table]++
	return clone(r), nil
}

// Update implements store.Store.
func (s *Store) Update(_ context.Context, table string, set store.Row, filters ...store.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.tables[table] {
		if !matchAll(r, filters) {
			continue
		}
		for k, v := range set {
			r[k] = v
		}
		n++
	}
	if n > 0 {
		s.Writes[table]++
	}
	return n, nil
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, table string, filters ...store.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tables[table][:0]
	n := 0
	for _, r := range s.tables[table] {
		if matchAll(r, filters) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.tables[table] = kept
	if n > 0 {
		s.Writes[table]++
	}
	return n, nil
}

func (s *Store) nextID(table string) string {
	if UUIDTables[table] {
		return uuid.NewString()
	}
	s.serial[table]++
	return strconv.Itoa(s.serial[table])
}

func matchAll(r store.Row, filters []store.Filter) bool {
	for _, f := range filters {
		if !match(r, f) {
			return false
		}
	}
	return true
}

func match(r store.Row, f store.Filter) bool {
	got := store.FormatValue(r[f.Column])
	switch f.Op {
	case store.OpEq:
		if b, ok := f.Value.(bool); ok {
			return r.Bool(f.Column) == b
		}
		return r[f.Column] != nil && got == store.FormatValue(f.Value)
	case store.OpILike:
		return r[f.Column] != nil && strings.EqualFold(got, store.FormatValue(f.Value))
	case store.OpIn:
		vs, _ := f.Value.([]string)
		for _, v := range vs {
			if r[f.Column] != nil && got == v {
				return true
			}
		}
		return false
	case store.OpGte:
		if r[f.Column] == nil {
			return false
		}
		if t, ok := r[f.Column].(time.Time); ok {
			if want, ok := f.Value.(time.Time); ok {
				return !t.Before(want)
			}
		}
		return got >= store.FormatValue(f.Value)
	case store.OpIsNull:
		return r[f.Column] == nil
	}
	return false
}

func sameOn(a, b store.Row, cols []string) bool {
	for _, c := range cols {
		if a[c] == nil || b[c] == nil {
			return false
		}
		if !strings.EqualFold(store.FormatValue(a[c]), store.FormatValue(b[c])) {
			return false
		}
	}
	return true
}

func project(r store.Row, cols []string) store.Row {
	if len(cols) == 0 {
		return clone(r)
	}
	out := make(store.Row, len(cols))
	for _, c := range cols {
		out[c] = r[c]
	}
	return out
}

func clone(r store.Row) store.Row {
	out := make(store.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
