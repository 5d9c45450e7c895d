package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabijung/thepilatesapp-sub000/internal/store"
)

func TestStore_InsertAndSelect(t *testing.T) {
	ctx := context.Background()
	s := New()

	studio, err := s.Insert(ctx, store.TableStudio, store.Row{"name": "Core"})
	require.NoError(t, err)
	assert.Len(t, studio.ID(), 36)

	first, err := s.Insert(ctx, store.TableInstructor, store.Row{"email": "a@x.com"})
	require.NoError(t, err)
	second, err := s.Insert(ctx, store.TableInstructor, store.Row{"email": "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID())
	assert.Equal(t, "2", second.ID())

	rows, err := s.Select(ctx, store.Query{
		Table:   store.TableInstructor,
		Columns: []string{"id"},
		Filters: []store.Filter{store.ILike("email", "A@X.COM")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, store.Row{"id": "1"}, rows[0])
}

func TestStore_Filters(t *testing.T) {
	ctx := context.Background()
	s := New()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Seed(store.TableExercises,
		store.Row{"name": "old", "created_at": t0},
		store.Row{"name": "new", "created_at": t0.Add(48 * time.Hour)},
		store.Row{"name": "undated"},
	)

	tests := []struct {
		name   string
		filter store.Filter
		want   []string
	}{
		{name: "gte time", filter: store.Gte("created_at", t0.Add(time.Hour)), want: []string{"new"}},
		{name: "in ids", filter: store.In("id", []string{"1", "3"}), want: []string{"old", "undated"}},
		{name: "is null", filter: store.IsNull("created_at"), want: []string{"undated"}},
		{name: "eq", filter: store.Eq("name", "old"), want: []string{"old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.Select(ctx, store.Query{Table: store.TableExercises, Filters: []store.Filter{tt.filter}})
			require.NoError(t, err)
			var names []string
			for _, r := range rows {
				names = append(names, r.String("name"))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestStore_UniqueAndFailures(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Unique(store.TableStudent, "email")

	_, err := s.Insert(ctx, store.TableStudent, store.Row{"email": "c@d.com"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, store.TableStudent, store.Row{"email": "C@D.com"})
	assert.ErrorIs(t, err, store.ErrConflict)

	boom := errors.New("rejected")
	s.FailInserts(store.TableLessons, boom)
	_, err = s.Insert(ctx, store.TableLessons, store.Row{"name": "x"})
	assert.ErrorIs(t, err, boom)
	s.FailInserts(store.TableLessons, nil)
	_, err = s.Insert(ctx, store.TableLessons, store.Row{"name": "x"})
	assert.NoError(t, err)
}

func TestStore_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(store.TableStudioStudent,
		store.Row{"studio_id": "s", "student_id": "1"},
		store.Row{"studio_id": "s", "student_id": "2"},
	)

	n, err := s.Update(ctx, store.TableStudioStudent, store.Row{"goals": "strength"}, store.Eq("student_id", "2"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "strength", s.Rows(store.TableStudioStudent)[1].String("goals"))

	n, err = s.Delete(ctx, store.TableStudioStudent, store.Eq("studio_id", "s"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, s.Count(store.TableStudioStudent))
}
