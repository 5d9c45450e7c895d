package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/importer"
	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/internal/store/memstore"
)

var now = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

// legacyMappings has the six partitions only, as older import runs wrote it.
const legacyMappings = `{
  "studios": {"s1": "studio-a"},
  "instructors": {"i1": 1},
  "students": {"st1": 2},
  "lessons": {"l1": 3},
  "notebooks": {"n1": 4},
  "entries": {"e1": 5}
}
`

func seed(db *memstore.Store) {
	db.Seed(store.TableStudio, store.Row{"id": "studio-a"}, store.Row{"id": "studio-other"})
	db.Seed(store.TableInstructor, store.Row{"id": "1"})
	db.Seed(store.TableStudent, store.Row{"id": "2"}, store.Row{"id": "99"})
	db.Seed(store.TableLessons, store.Row{"id": "3", "studio_id": "studio-a"})
	db.Seed(store.TableNotebooks, store.Row{"id": "4"})
	db.Seed(store.TableEntries, store.Row{"id": "5"})
	db.Seed(store.TableStudioStudent,
		store.Row{"id": "6", "studio_id": "studio-a", "student_id": "2"},
		store.Row{"id": "98", "studio_id": "studio-other", "student_id": "99"},
	)
	db.Seed(store.TableStudioInstructor, store.Row{"id": "7", "studio_id": "studio-a", "instructor_id": "1"})
	db.Seed(store.TableStudentLessons, store.Row{"id": "8", "lesson_id": "3", "student_id": "2"})
	db.Seed(store.TableExerciseLists,
		store.Row{"id": "20", "created_at": now.Add(-time.Hour)},
		store.Row{"id": "21", "created_at": now.Add(-48 * time.Hour)},
	)
	db.Seed(store.TableExercises,
		store.Row{"id": "30", "exercise_list_id": "20", "created_at": now.Add(-time.Hour)},
		store.Row{"id": "31", "exercise_list_id": "21", "created_at": now.Add(-48 * time.Hour)},
	)
}

func writeMappings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "id-mappings.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func ids(db *memstore.Store, table string) []string {
	var out []string
	for _, r := range db.Rows(table) {
		out = append(out, r.ID())
	}
	return out
}

func run(t *testing.T, db store.Store, path string, confirm Confirmer) (*Report, error) {
	t.Helper()
	l, err := ledger.Load(path)
	require.NoError(t, err)
	repo := store.NewRepo(db, zap.NewNop())

	plan, err := NewPlanner(repo, zap.NewNop()).Plan(context.Background(), l, now)
	require.NoError(t, err)
	return NewExecutor(repo, zap.NewNop(), func() time.Time { return now }).Execute(context.Background(), plan, confirm)
}

func TestCleanup_ForcedRoundTrip(t *testing.T) {
	db := memstore.New()
	seed(db)
	path := writeMappings(t, legacyMappings)

	rep, err := run(t, db, path, Force)
	require.NoError(t, err)

	assert.Equal(t, []string{"studio-other"}, ids(db, store.TableStudio))
	assert.Empty(t, ids(db, store.TableInstructor))
	assert.Equal(t, []string{"99"}, ids(db, store.TableStudent))
	assert.Empty(t, ids(db, store.TableLessons))
	assert.Empty(t, ids(db, store.TableNotebooks))
	assert.Empty(t, ids(db, store.TableEntries))
	assert.Equal(t, []string{"98"}, ids(db, store.TableStudioStudent))
	assert.Empty(t, ids(db, store.TableStudioInstructor))
	assert.Empty(t, ids(db, store.TableStudentLessons))
	assert.Equal(t, []string{"21"}, ids(db, store.TableExerciseLists))
	assert.Equal(t, []string{"31"}, ids(db, store.TableExercises))

	var order []string
	for _, s := range rep.Steps {
		order = append(order, s.Name)
		assert.Equal(t, StatusDeleted, s.Status, s.Name)
	}
	assert.Equal(t, []string{
		"entries", "notebooks", "student_lessons", "lessons", "studio_students",
		"studio_instructors", "students", "instructors", "studios", "exercise_catalog",
	}, order)
	assert.Equal(t, FromQuery, rep.Steps[2].Origin)

	assert.Equal(t, ledger.ArchiveName(path, now), rep.ArchivedTo)
	assert.FileExists(t, rep.ArchivedTo)
	assert.NoFileExists(t, path)

	_, err = ledger.Load(path)
	require.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Contains(t, err.Error(), "mappings file not found")
}

func TestCleanup_RemovesImportedCatalog(t *testing.T) {
	db := memstore.New()
	doc, err := source.Parse([]byte(`{"exerciseDataLists": {
	  "x1": {"name": "Mat", "created_date": "1600000000", "exercises": {"a": {"name": "Teaser"}}}
	}}`), source.ExercisesKeys)
	require.NoError(t, err)

	importedAt := now.Add(-2 * time.Hour)
	im := importer.New(doc, store.NewRepo(db, zap.NewNop()), zap.NewNop(), importer.Options{
		Now: func() time.Time { return importedAt },
	})
	counts, err := im.ImportExercises(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, counts.Created)

	path := writeMappings(t, `{"studios": {}, "instructors": {}, "students": {}, "lessons": {}, "notebooks": {}, "entries": {}}`)
	rep, err := run(t, db, path, Force)
	require.NoError(t, err)

	catalog := rep.Steps[len(rep.Steps)-1]
	assert.Equal(t, "exercise_catalog", catalog.Name)
	assert.Equal(t, 2, catalog.Planned)
	assert.Equal(t, 2, catalog.Deleted)
	assert.Zero(t, db.Count(store.TableExerciseLists))
	assert.Zero(t, db.Count(store.TableExercises))
}

func TestCleanup_JoinPartitionsReplayLedger(t *testing.T) {
	db := memstore.New()
	seed(db)
	// A membership that existed before the import matched no ledger entry.
	db.Seed(store.TableStudioStudent, store.Row{"id": "60", "studio_id": "studio-a", "student_id": "2"})

	l := ledger.New(filepath.Join(t.TempDir(), "id-mappings.json"))
	l.Writer(ledger.Studios).Record("s1", "studio-a")
	l.Writer(ledger.Students).Record("st1", "2")
	l.Writer(ledger.StudioStudents).Record(ledger.JoinKey("s1", "st1"), "6")
	require.NoError(t, l.Save())

	rep, err := run(t, db, l.Path(), Force)
	require.NoError(t, err)

	assert.Equal(t, []string{"98", "60"}, ids(db, store.TableStudioStudent))
	for _, s := range rep.Steps {
		if s.Name == "studio_students" {
			assert.Equal(t, FromLedger, s.Origin)
			assert.Equal(t, 1, s.Deleted)
		}
	}
}

func TestCleanup_DeclinedStepsKeepRowsAndMappings(t *testing.T) {
	db := memstore.New()
	seed(db)
	path := writeMappings(t, legacyMappings)

	var asked []string
	rep, err := run(t, db, path, ConfirmFunc(func(prompt string) (bool, error) {
		asked = append(asked, prompt)
		return false, nil
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Delete 1 students rows?",
		"Delete 1 instructors rows?",
		"Delete 1 studios rows?",
		"Delete 2 exercise_catalog rows?",
	}, asked)
	assert.Empty(t, ids(db, store.TableEntries))
	assert.Len(t, ids(db, store.TableStudent), 2)
	assert.Len(t, ids(db, store.TableStudio), 2)
	assert.False(t, rep.Complete())
	assert.Empty(t, rep.ArchivedTo)
	assert.FileExists(t, path)
}

// failingDeletes fails every delete against one table.
type failingDeletes struct {
	store.Store
	table string
}

func (f failingDeletes) Delete(ctx context.Context, table string, filters ...store.Filter) (int, error) {
	if table == f.table {
		return 0, errors.New("permission denied")
	}
	return f.Store.Delete(ctx, table, filters...)
}

func TestCleanup_StepFailureDoesNotBlockLaterSteps(t *testing.T) {
	db := memstore.New()
	seed(db)
	path := writeMappings(t, legacyMappings)

	rep, err := run(t, failingDeletes{Store: db, table: store.TableLessons}, path, Force)
	require.NoError(t, err)

	status := map[string]Status{}
	for _, s := range rep.Steps {
		status[s.Name] = s.Status
	}
	assert.Equal(t, StatusFailed, status["lessons"])
	assert.Equal(t, StatusDeleted, status["studios"])
	assert.Equal(t, []string{"3"}, ids(db, store.TableLessons))
	assert.Equal(t, []string{"studio-other"}, ids(db, store.TableStudio))
	assert.FileExists(t, path)
}

func TestCleanup_ConfirmerErrorAborts(t *testing.T) {
	db := memstore.New()
	seed(db)
	path := writeMappings(t, legacyMappings)

	_, err := run(t, db, path, ConfirmFunc(func(string) (bool, error) { return false, ErrNotTerminal }))
	require.Error(t, err)
	assert.True(t, migerr.Aborts(err))
	assert.ErrorIs(t, err, ErrNotTerminal)
	assert.Len(t, ids(db, store.TableStudent), 2)
}

func TestPreview_TouchesNothing(t *testing.T) {
	db := memstore.New()
	seed(db)
	path := writeMappings(t, legacyMappings)
	l, err := ledger.Load(path)
	require.NoError(t, err)

	plan, err := NewPlanner(store.NewRepo(db, zap.NewNop()), zap.NewNop()).Plan(context.Background(), l, now)
	require.NoError(t, err)
	rep := Preview(plan)

	require.Len(t, rep.Steps, 10)
	for _, s := range rep.Steps {
		assert.Equal(t, StatusPlanned, s.Status, s.Name)
		assert.Zero(t, s.Deleted)
	}
	assert.Equal(t, 2, rep.Steps[9].Planned)
	assert.Len(t, ids(db, store.TableEntries), 1)
	assert.Empty(t, rep.ArchivedTo)
	assert.FileExists(t, path)
}

func TestPlan_RequiresCompleteLedger(t *testing.T) {
	path := writeMappings(t, `{"studios": {}, "instructors": {}}`)
	l, err := ledger.Load(path)
	require.NoError(t, err)

	db := memstore.New()
	_, err = NewPlanner(store.NewRepo(db, zap.NewNop()), zap.NewNop()).Plan(context.Background(), l, now)
	require.Error(t, err)
	assert.True(t, migerr.Is(err, migerr.KindPrecondition))
	assert.Contains(t, err.Error(), "students, lessons, notebooks, entries")
}

func TestCleanup_DeletesInChunks(t *testing.T) {
	db := memstore.New()
	l := ledger.New(filepath.Join(t.TempDir(), "id-mappings.json"))
	for i := range 250 {
		id := fmt.Sprint(i + 1)
		db.Seed(store.TableEntries, store.Row{"id": id})
		l.Writer(ledger.Entries).Record("e"+id, id)
	}
	require.NoError(t, l.Save())

	rep, err := run(t, db, l.Path(), Force)
	require.NoError(t, err)

	assert.Zero(t, db.Count(store.TableEntries))
	assert.Equal(t, 3, db.Writes[store.TableEntries])
	assert.Equal(t, 250, rep.Steps[0].Deleted)
}

func TestParseAnswer(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		" yes ": true,
		"\n":    false,
		"n\n":   false,
		"nope":  false,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseAnswer(in), "%q", in)
	}
}
