package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// DeleteChunk bounds the number of ids per delete request.
const DeleteChunk = 100

// Repo gives the migration commands typed access to the destination tables.
type Repo struct {
	db  Store
	log *zap.Logger
}

// NewRepo creates a repository over db.
func NewRepo(db Store, log *zap.Logger) *Repo {
	return &Repo{
		db:  db,
		log: log.With(logger.Scope("store.repo")),
	}
}

// Store returns the underlying table API.
func (r *Repo) Store() Store { return r.db }

// findID returns the id of the first row matching filters.
func (r *Repo) findID(ctx context.Context, table string, filters ...Filter) (string, bool, error) {
	rows, err := r.db.Select(ctx, Query{Table: table, Columns: []string{"id"}, Filters: filters, Limit: 1})
	if err != nil {
		return "", false, migerr.Wrap(migerr.KindRow, "select "+table, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].ID(), true, nil
}

func (r *Repo) insert(ctx context.Context, table string, row Row) (string, error) {
	out, err := r.db.Insert(ctx, table, row)
	if err != nil {
		return "", migerr.Wrap(migerr.KindRow, "insert "+table, err)
	}
	id := out.ID()
	if id == "" {
		return "", migerr.New(migerr.KindRow, "insert "+table, "destination returned no id")
	}
	return id, nil
}

// StudioExists reports whether a studio row with id exists.
func (r *Repo) StudioExists(ctx context.Context, id string) (bool, error) {
	_, ok, err := r.findID(ctx, TableStudio, Eq("id", id))
	return ok, err
}

// FindStudio looks a studio up by its natural key.
func (r *Repo) FindStudio(ctx context.Context, name string, createdAt time.Time) (string, bool, error) {
	filters := []Filter{Eq("name", name)}
	if createdAt.IsZero() {
		filters = append(filters, IsNull("created_at"))
	} else {
		filters = append(filters, Eq("created_at", createdAt.UTC()))
	}
	return r.findID(ctx, TableStudio, filters...)
}

// ShortIDTaken reports whether a studio already uses shortID.
func (r *Repo) ShortIDTaken(ctx context.Context, shortID string) (bool, error) {
	_, ok, err := r.findID(ctx, TableStudio, Eq("short_id", shortID))
	return ok, err
}

// InsertStudio creates a studio and returns its id.
func (r *Repo) InsertStudio(ctx context.Context, s Studio) (string, error) {
	return r.insert(ctx, TableStudio, s.Row())
}

// FindInstructorByEmail matches case-insensitively.
func (r *Repo) FindInstructorByEmail(ctx context.Context, email string) (string, bool, error) {
	return r.findID(ctx, TableInstructor, ILike("email", strings.ToLower(email)))
}

// InsertInstructor creates an instructor and returns its id.
func (r *Repo) InsertInstructor(ctx context.Context, i Instructor) (string, error) {
	return r.insert(ctx, TableInstructor, i.Row())
}

// FindStudentByEmail matches case-insensitively.
func (r *Repo) FindStudentByEmail(ctx context.Context, email string) (string, bool, error) {
	return r.findID(ctx, TableStudent, ILike("email", strings.ToLower(email)))
}

// InsertStudent creates a student and returns its id.
func (r *Repo) InsertStudent(ctx context.Context, s Student) (string, error) {
	return r.insert(ctx, TableStudent, s.Row())
}

// SetProfilePicture points a student's profile picture at url.
func (r *Repo) SetProfilePicture(ctx context.Context, studentID, url string) error {
	n, err := r.db.Update(ctx, TableStudent, Row{"profile_picture_url": url}, Eq("id", studentID))
	if err != nil {
		return migerr.Wrap(migerr.KindRow, "update student", err)
	}
	if n == 0 {
		return migerr.New(migerr.KindRow, "update student", fmt.Sprintf("student %s not found", studentID))
	}
	return nil
}

// FindStudioInstructor returns the join id for (studio, instructor).
func (r *Repo) FindStudioInstructor(ctx context.Context, studioID, instructorID string) (string, bool, error) {
	return r.findID(ctx, TableStudioInstructor, Eq("studio_id", studioID), Eq("instructor_id", instructorID))
}

// StudioHasAdmin reports whether any instructor join of the studio is admin.
func (r *Repo) StudioHasAdmin(ctx context.Context, studioID string) (bool, error) {
	_, ok, err := r.findID(ctx, TableStudioInstructor, Eq("studio_id", studioID), Eq("is_admin", true))
	return ok, err
}

// InsertStudioInstructor creates the join and returns its id.
func (r *Repo) InsertStudioInstructor(ctx context.Context, j StudioInstructor) (string, error) {
	return r.insert(ctx, TableStudioInstructor, j.Row())
}

// FindStudioStudent returns the join id for (studio, student).
func (r *Repo) FindStudioStudent(ctx context.Context, studioID, studentID string) (string, bool, error) {
	return r.findID(ctx, TableStudioStudent, Eq("studio_id", studioID), Eq("student_id", studentID))
}

// InsertStudioStudent creates the join and returns its id.
func (r *Repo) InsertStudioStudent(ctx context.Context, j StudioStudent) (string, error) {
	return r.insert(ctx, TableStudioStudent, j.Row())
}

// MergeStudioStudent updates goals and about on an existing join. Empty values
// leave the stored column untouched. It reports whether anything was written.
func (r *Repo) MergeStudioStudent(ctx context.Context, id, goals, about string) (bool, error) {
	set := Row{}
	if goals != "" {
		set["goals"] = goals
	}
	if about != "" {
		set["about"] = about
	}
	if len(set) == 0 {
		return false, nil
	}
	if _, err := r.db.Update(ctx, TableStudioStudent, set, Eq("id", id)); err != nil {
		return false, migerr.Wrap(migerr.KindRow, "update studio_student", err)
	}
	return true, nil
}

// InsertLesson creates a lesson and returns its id.
func (r *Repo) InsertLesson(ctx context.Context, l Lesson) (string, error) {
	return r.insert(ctx, TableLessons, l.Row())
}

// FindStudentLesson returns the assignment id for (student, lesson).
func (r *Repo) FindStudentLesson(ctx context.Context, studentID, lessonID string) (string, bool, error) {
	return r.findID(ctx, TableStudentLessons, Eq("student_id", studentID), Eq("lesson_id", lessonID))
}

// InsertStudentLesson creates an assignment and returns its id.
func (r *Repo) InsertStudentLesson(ctx context.Context, s StudentLesson) (string, error) {
	return r.insert(ctx, TableStudentLessons, s.Row())
}

// FindNotebook returns the notebook id for (student, studio).
func (r *Repo) FindNotebook(ctx context.Context, studentID, studioID string) (string, bool, error) {
	return r.findID(ctx, TableNotebooks, Eq("student_id", studentID), Eq("studio_id", studioID))
}

// InsertNotebook creates a notebook and returns its id.
func (r *Repo) InsertNotebook(ctx context.Context, n Notebook) (string, error) {
	return r.insert(ctx, TableNotebooks, n.Row())
}

// InsertEntry creates an entry and returns its id.
func (r *Repo) InsertEntry(ctx context.Context, e Entry) (string, error) {
	return r.insert(ctx, TableEntries, e.Row())
}

// InsertExerciseList creates a catalog list and returns its id.
func (r *Repo) InsertExerciseList(ctx context.Context, l ExerciseList) (string, error) {
	return r.insert(ctx, TableExerciseLists, l.Row())
}

// InsertExercise creates a catalog exercise and returns its id.
func (r *Repo) InsertExercise(ctx context.Context, e Exercise) (string, error) {
	return r.insert(ctx, TableExercises, e.Row())
}

// InsertProgressPhoto creates a progress photo row and returns its id.
func (r *Repo) InsertProgressPhoto(ctx context.Context, p ProgressPhoto) (string, error) {
	return r.insert(ctx, TableProgressPhotos, p.Row())
}

// FindProgressPhoto returns the photo id for (studio student, url).
func (r *Repo) FindProgressPhoto(ctx context.Context, studioStudentID, url string) (string, bool, error) {
	return r.findID(ctx, TableProgressPhotos, Eq("studio_student_id", studioStudentID), Eq("url", url))
}

// CheckContract verifies that table exposes every column in want. It reads a
// single row; an empty table cannot be checked and passes.
func (r *Repo) CheckContract(ctx context.Context, table string, want []string) error {
	rows, err := r.db.Select(ctx, Query{Table: table, Limit: 1})
	if err != nil {
		return migerr.Fatal("check "+table+" columns", err)
	}
	if len(rows) == 0 {
		r.log.Debug("table empty, column contract not verifiable", zap.String("table", table))
		return nil
	}
	var missing []string
	for _, col := range want {
		if _, ok := rows[0][col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return migerr.Fatalf("check "+table+" columns", "table %s is missing columns: %s", table, strings.Join(missing, ", "))
	}
	return nil
}

// SelectIDs returns the ids of every row matching filters. in-filters with
// more than DeleteChunk values are split across requests.
func (r *Repo) SelectIDs(ctx context.Context, table string, filters ...Filter) ([]string, error) {
	var ids []string
	err := forEachChunk(filters, func(chunk []Filter) error {
		rows, err := r.db.Select(ctx, Query{Table: table, Columns: []string{"id"}, Filters: chunk})
		if err != nil {
			return err
		}
		for _, row := range rows {
			ids = append(ids, row.ID())
		}
		return nil
	})
	if err != nil {
		return nil, migerr.Wrap(migerr.KindRow, "select "+table, err)
	}
	return ids, nil
}

// DeleteIDs deletes rows of table by id in chunks of DeleteChunk. It returns
// the number deleted before the first failing chunk.
func (r *Repo) DeleteIDs(ctx context.Context, table string, ids []string) (int, error) {
	total := 0
	for start := 0; start < len(ids); start += DeleteChunk {
		end := min(start+DeleteChunk, len(ids))
		n, err := r.db.Delete(ctx, table, In("id", ids[start:end]))
		if err != nil {
			return total, migerr.Wrap(migerr.KindRow, "delete "+table, err)
		}
		total += n
		r.log.Debug("deleted chunk", zap.String("table", table), zap.Int("rows", n))
	}
	return total, nil
}

// forEachChunk runs fn once per DeleteChunk-sized slice of the first oversized
// in-filter, keeping every other filter as is. An empty in-filter matches
// nothing, so fn is not called.
func forEachChunk(filters []Filter, fn func([]Filter) error) error {
	for _, f := range filters {
		if vs, ok := f.Value.([]string); f.Op == OpIn && ok && len(vs) == 0 {
			return nil
		}
	}
	for i, f := range filters {
		vs, ok := f.Value.([]string)
		if f.Op != OpIn || !ok || len(vs) <= DeleteChunk {
			continue
		}
		for start := 0; start < len(vs); start += DeleteChunk {
			end := min(start+DeleteChunk, len(vs))
			chunk := append([]Filter{}, filters...)
			chunk[i] = In(f.Column, vs[start:end])
			if err := forEachChunk(chunk, fn); err != nil {
				return err
			}
		}
		return nil
	}
	return fn(filters)
}
