package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Status is the outcome of one step.
type Status string

const (
	StatusDeleted  Status = "deleted"
	StatusEmpty    Status = "empty"
	StatusDeclined Status = "declined"
	StatusFailed   Status = "failed"
	StatusPlanned  Status = "planned"
)

// StepResult reports one executed step.
type StepResult struct {
	Name    string `yaml:"name"`
	Origin  Origin `yaml:"origin"`
	Planned int    `yaml:"planned"`
	Deleted int    `yaml:"deleted"`
	Status  Status `yaml:"status"`
	Error   string `yaml:"error,omitempty"`
}

// Report is the outcome of Execute.
type Report struct {
	Steps []StepResult `yaml:"steps"`
	// ArchivedTo is the backup name of the mappings file, empty when it was kept.
	ArchivedTo string `yaml:"archived_to,omitempty"`
}

// Complete reports whether every step ran to the end.
func (r *Report) Complete() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed || s.Status == StatusDeclined {
			return false
		}
	}
	return true
}

// Preview reports what Execute would do without touching the destination
// or the mappings file.
func Preview(plan *Plan) *Report {
	rep := &Report{}
	for _, step := range plan.Steps {
		res := StepResult{Name: step.Name, Origin: step.Origin, Planned: step.Rows(), Status: StatusPlanned}
		switch {
		case step.Err != nil:
			res.Status, res.Error = StatusFailed, step.Err.Error()
		case res.Planned == 0:
			res.Status = StatusEmpty
		}
		rep.Steps = append(rep.Steps, res)
	}
	return rep
}

// Executor runs plans.
type Executor struct {
	repo *store.Repo
	log  *zap.Logger
	now  func() time.Time
}

// NewExecutor creates an executor. now stamps the archive name.
func NewExecutor(repo *store.Repo, log *zap.Logger, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{repo: repo, log: log.Named("cleanup"), now: now}
}

// Execute runs the steps in order. A failing step is logged and the next one
// still runs. Steps that need confirmation ask confirm first. When every step
// completed the mappings file is archived so the cleanup cannot be replayed.
// The returned error is fatal: ctx ended, the confirmer failed, or the file
// could not be archived.
func (e *Executor) Execute(ctx context.Context, plan *Plan, confirm Confirmer) (*Report, error) {
	rep := &Report{}
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return rep, migerr.Fatal("cleanup", err)
		}
		res, err := e.run(ctx, step, confirm)
		if err != nil {
			return rep, err
		}
		rep.Steps = append(rep.Steps, res)
	}

	if !rep.Complete() {
		e.log.Warn("cleanup incomplete, mappings file kept for another run", zap.String("path", plan.Ledger.Path()))
		return rep, nil
	}
	archived, err := plan.Ledger.Archive(e.now())
	if err != nil {
		return rep, migerr.Fatal("archive mappings", err)
	}
	rep.ArchivedTo = archived
	e.log.Info("mappings file archived", zap.String("path", archived))
	return rep, nil
}

func (e *Executor) run(ctx context.Context, step Step, confirm Confirmer) (StepResult, error) {
	log := e.log.With(zap.String("step", step.Name), zap.String("origin", string(step.Origin)))
	res := StepResult{Name: step.Name, Origin: step.Origin, Planned: step.Rows()}

	if step.Err != nil {
		res.Status, res.Error = StatusFailed, step.Err.Error()
		log.Error("step skipped, rows could not be listed", logger.Error(step.Err))
		return res, nil
	}
	if res.Planned == 0 {
		res.Status = StatusEmpty
		log.Info("nothing to delete")
		return res, nil
	}

	if step.RequiresConfirm {
		ok, err := confirm.Confirm(fmt.Sprintf("Delete %d %s rows?", res.Planned, step.Name))
		if err != nil {
			return res, migerr.Fatal("confirm "+step.Name, err)
		}
		if !ok {
			res.Status = StatusDeclined
			log.Warn("deletion declined")
			return res, nil
		}
	}

	for _, t := range step.Targets {
		n, err := e.repo.DeleteIDs(ctx, t.Table, t.IDs)
		res.Deleted += n
		if err != nil {
			res.Status, res.Error = StatusFailed, err.Error()
			log.Error("delete failed", zap.String("table", t.Table), zap.Int("deleted", res.Deleted), logger.Error(err))
			return res, nil
		}
	}
	res.Status = StatusDeleted
	log.Info("deleted", zap.Int("rows", res.Deleted), zap.Int("planned", res.Planned))
	return res, nil
}
