// Package cleanup reverses an import: it deletes every row the mappings file
// records, dependents first, and then archives the file.
package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// CatalogWindow bounds the exercise catalog cleanup: catalog rows carry no
// legacy id, so only rows created this recently are treated as imported.
const CatalogWindow = 24 * time.Hour

// Origin tells where a step's ids came from.
type Origin string

const (
	FromLedger Origin = "ledger"
	FromQuery  Origin = "query"
	FromWindow Origin = "window"
)

// Target is one table and the ids to delete from it.
type Target struct {
	Table string
	IDs   []string
}

// Step is one category of rows to delete.
type Step struct {
	Name            string
	Origin          Origin
	Targets         []Target
	RequiresConfirm bool
	// Err is set when the ids could not be determined; Execute skips the step.
	Err error
}

// Rows returns the number of ids across targets.
func (s Step) Rows() int {
	n := 0
	for _, t := range s.Targets {
		n += len(t.IDs)
	}
	return n
}

// Plan is the ordered list of deletions for one mappings file.
type Plan struct {
	Ledger *ledger.Ledger
	Steps  []Step
}

// Planner computes plans against a destination store.
type Planner struct {
	repo *store.Repo
	log  *zap.Logger
}

// NewPlanner creates a planner.
func NewPlanner(repo *store.Repo, log *zap.Logger) *Planner {
	return &Planner{repo: repo, log: log.Named("cleanup.plan")}
}

// Plan lists what would be deleted, without deleting anything. The ledger
// must carry every required partition. Join rows come from their ledger
// partition, or are re-derived by query when a mappings file predates join
// partitions. now anchors the exercise catalog window.
func (p *Planner) Plan(ctx context.Context, l *ledger.Ledger, now time.Time) (*Plan, error) {
	if err := l.ValidateComplete(); err != nil {
		return nil, migerr.Precondition("plan cleanup", err.Error())
	}
	ids := func(part ledger.Partition) []string {
		return l.Reader(part).DestIDs()
	}

	plan := &Plan{Ledger: l}
	add := func(s Step) { plan.Steps = append(plan.Steps, s) }

	add(fromLedger("entries", store.TableEntries, ids(ledger.Entries), false))
	add(fromLedger("notebooks", store.TableNotebooks, ids(ledger.Notebooks), false))
	add(p.join(ctx, l, "student_lessons", store.TableStudentLessons, ledger.StudentLessons,
		store.In("lesson_id", ids(ledger.Lessons)), store.In("student_id", ids(ledger.Students))))
	add(fromLedger("lessons", store.TableLessons, ids(ledger.Lessons), false))
	add(p.join(ctx, l, "studio_students", store.TableStudioStudent, ledger.StudioStudents,
		store.In("studio_id", ids(ledger.Studios)), store.In("student_id", ids(ledger.Students))))
	add(p.join(ctx, l, "studio_instructors", store.TableStudioInstructor, ledger.StudioInstructors,
		store.In("studio_id", ids(ledger.Studios)), store.In("instructor_id", ids(ledger.Instructors))))
	add(fromLedger("students", store.TableStudent, ids(ledger.Students), true))
	add(fromLedger("instructors", store.TableInstructor, ids(ledger.Instructors), true))
	add(fromLedger("studios", store.TableStudio, ids(ledger.Studios), true))
	add(p.catalog(ctx, now))

	return plan, nil
}

func fromLedger(name, table string, ids []string, confirm bool) Step {
	return Step{
		Name:            name,
		Origin:          FromLedger,
		Targets:         []Target{{Table: table, IDs: ids}},
		RequiresConfirm: confirm,
	}
}

func (p *Planner) join(ctx context.Context, l *ledger.Ledger, name, table string, part ledger.Partition, filters ...store.Filter) Step {
	if r := l.Reader(part); r.Len() > 0 {
		return fromLedger(name, table, r.DestIDs(), false)
	}
	step := Step{Name: name, Origin: FromQuery}
	found, err := p.repo.SelectIDs(ctx, table, filters...)
	if err != nil {
		p.log.Error("could not re-derive join rows", zap.String("step", name), logger.Error(err))
		step.Err = err
		return step
	}
	step.Targets = []Target{{Table: table, IDs: found}}
	return step
}

// catalog selects exercises and lists created inside the trailing window.
// Exercises go first since they reference their list.
func (p *Planner) catalog(ctx context.Context, now time.Time) Step {
	step := Step{Name: "exercise_catalog", Origin: FromWindow, RequiresConfirm: true}
	since := store.Gte("created_at", now.Add(-CatalogWindow).UTC())
	for _, table := range []string{store.TableExercises, store.TableExerciseLists} {
		found, err := p.repo.SelectIDs(ctx, table, since)
		if err != nil {
			p.log.Error("could not list recent catalog rows", zap.String("table", table), logger.Error(err))
			step.Err = err
			step.Targets = nil
			return step
		}
		step.Targets = append(step.Targets, Target{Table: table, IDs: found})
	}
	return step
}
