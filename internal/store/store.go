// Package store is the destination table API shared by the PostgREST, Postgres
// and in-memory backends, plus typed repositories over it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Destination tables.
const (
	TableStudio           = "studio"
	TableInstructor       = "instructor"
	TableStudent          = "student"
	TableStudioInstructor = "studio_instructor"
	TableStudioStudent    = "studio_student"
	TableLessons          = "lessons"
	TableStudentLessons   = "student_lessons"
	TableNotebooks        = "notebooks"
	TableEntries          = "entries"
	TableExerciseLists    = "exercise_lists"
	TableExercises        = "exercises"
	TableProgressPhotos   = "progress_photos"
)

var (
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when the table or row does not exist.
	ErrNotFound = errors.New("not found")
)

// Row is one table row keyed by column name.
type Row map[string]any

// String returns the value of col as text. Ids come back as numbers from
// serial columns and as strings from uuid columns; both read the same here.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(r[col])
}

// ID returns the row's id column as text.
func (r Row) ID() string { return r.String("id") }

// Bool returns the value of col as a bool.
func (r Row) Bool(col string) bool {
	switch v := r[col].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Op is a filter operator. The names follow PostgREST.
type Op string

const (
	OpEq     Op = "eq"
	OpILike  Op = "ilike"
	OpIn     Op = "in"
	OpGte    Op = "gte"
	OpIsNull Op = "is"
)

// Filter restricts a query to rows where Column Op Value holds.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq matches rows whose column equals v.
func Eq(col string, v any) Filter { return Filter{Column: col, Op: OpEq, Value: v} }

// ILike matches rows whose column equals v ignoring case.
func ILike(col, v string) Filter { return Filter{Column: col, Op: OpILike, Value: v} }

// In matches rows whose column is one of vs.
func In(col string, vs []string) Filter { return Filter{Column: col, Op: OpIn, Value: vs} }

// Gte matches rows whose column is at least v.
func Gte(col string, v any) Filter { return Filter{Column: col, Op: OpGte, Value: v} }

// IsNull matches rows whose column is null.
func IsNull(col string) Filter { return Filter{Column: col, Op: OpIsNull} }

// Query describes a select.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the table API of the destination.
type Store interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	// Insert writes one row and returns it as stored, including generated columns.
	Insert(ctx context.Context, table string, row Row) (Row, error)
	// Update sets the columns of set on every matching row and returns how many matched.
	Update(ctx context.Context, table string, set Row, filters ...Filter) (int, error)
	// Delete removes every matching row and returns how many were removed.
	Delete(ctx context.Context, table string, filters ...Filter) (int, error)
}

// FormatValue renders a filter or row value as text the way every backend
// compares it.
func FormatValue(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case nil:
		return ""
	}
	return Row{"v": v}.String("v")
}

// Describe renders filters for log lines.
func Describe(filters []Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		switch f.Op {
		case OpIn:
			vs, _ := f.Value.([]string)
			parts = append(parts, fmt.Sprintf("%s in (%d ids)", f.Column, len(vs)))
		case OpIsNull:
			parts = append(parts, f.Column+" is null")
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", f.Column, f.Op, FormatValue(f.Value)))
		}
	}
	return strings.Join(parts, " and ")
}
