// Package importer transforms the legacy export into destination rows, one
// dependency-ordered phase at a time, recording every created or matched row
// in the ledger.
package importer

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// Capability states whether re-running a phase is safe.
type Capability int

const (
	// Idempotent phases look rows up by natural key before inserting.
	Idempotent Capability = iota
	// InsertOnly phases have no natural key and insert on every run, so a
	// re-run duplicates their rows.
	InsertOnly
)

func (c Capability) String() string {
	if c == InsertOnly {
		return "insert-only"
	}
	return "idempotent"
}

// Counts tallies the outcome of every record a phase looked at.
type Counts struct {
	Created  int `yaml:"created"`
	Existing int `yaml:"existing"`
	Skipped  int `yaml:"skipped"`
	Failed   int `yaml:"failed"`
}

// Add accumulates o into c.
func (c *Counts) Add(o Counts) {
	c.Created += o.Created
	c.Existing += o.Existing
	c.Skipped += o.Skipped
	c.Failed += o.Failed
}

// PhaseResult is the outcome of one phase.
type PhaseResult struct {
	Name       string     `yaml:"name"`
	Capability Capability `yaml:"-"`
	Counts     `yaml:",inline"`
	Duration   time.Duration `yaml:"duration"`
}

// Result is the outcome of a run.
type Result struct {
	Phases []PhaseResult
}

// Totals sums every phase.
func (r *Result) Totals() Counts {
	var c Counts
	for _, p := range r.Phases {
		c.Add(p.Counts)
	}
	return c
}

// Options tunes an Importer.
type Options struct {
	// HashCost is the bcrypt cost of placeholder passwords.
	HashCost int
	// Now stamps rows that carry no legacy creation date of their own.
	Now func() time.Time
}

// Importer runs the import phases against one source document.
type Importer struct {
	doc  *source.Document
	repo *store.Repo
	log  *zap.Logger
	opts Options
}

// New creates an importer.
func New(doc *source.Document, repo *store.Repo, log *zap.Logger, opts Options) *Importer {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Importer{
		doc:  doc,
		repo: repo,
		log:  log.Named("importer"),
		opts: opts,
	}
}

// phase binds a step to the ledger views it may touch.
type phase struct {
	name       string
	capability Capability
	run        func(ctx context.Context) Counts
}

// phases returns the import-all phases in dependency order. Each closure
// gets read views of the partitions it depends on and a writer for its own.
func (im *Importer) phases(l *ledger.Ledger) []phase {
	r := l.Reader
	w := l.Writer
	phases := []phase{
		{"studios", Idempotent, func(ctx context.Context) Counts {
			return im.importStudios(ctx, w(ledger.Studios))
		}},
		{"instructors", Idempotent, func(ctx context.Context) Counts {
			return im.importInstructors(ctx, w(ledger.Instructors))
		}},
		{"students", Idempotent, func(ctx context.Context) Counts {
			return im.importStudents(ctx, w(ledger.Students))
		}},
		{"relationships", Idempotent, func(ctx context.Context) Counts {
			rc := &reconciler{
				im:          im,
				studios:     r(ledger.Studios),
				instructors: r(ledger.Instructors),
				students:    r(ledger.Students),
				si:          w(ledger.StudioInstructors),
				ss:          w(ledger.StudioStudents),
				log:         im.log.Named("relationships"),
			}
			return rc.run(ctx)
		}},
		{"lessons", InsertOnly, func(ctx context.Context) Counts {
			return im.importLessons(ctx, r(ledger.Studios), w(ledger.Lessons))
		}},
		{"student_lessons", Idempotent, func(ctx context.Context) Counts {
			return im.importStudentLessons(ctx, r(ledger.Students), r(ledger.Lessons), w(ledger.StudentLessons))
		}},
		{"notebooks", Idempotent, func(ctx context.Context) Counts {
			return im.importNotebooks(ctx, r(ledger.Students), r(ledger.Studios), w(ledger.Notebooks))
		}},
		{"entries", InsertOnly, func(ctx context.Context) Counts {
			return im.importEntries(ctx, r(ledger.Studios), r(ledger.Notebooks), w(ledger.Entries))
		}},
	}
	if im.doc.Has(source.KeyExerciseDataLists) {
		phases = append(phases, phase{"exercises", InsertOnly, func(ctx context.Context) Counts {
			c, err := im.ImportExercises(ctx)
			if err != nil {
				im.log.Error("exercise catalog not imported", logger.Error(err))
			}
			return c
		}})
	}
	return phases
}

// Run executes every phase in order and persists the ledger after each one.
// Row failures are counted, never returned. The returned error is fatal: the
// ledger could not be saved or ctx ended.
func (im *Importer) Run(ctx context.Context, l *ledger.Ledger, resumed bool) (*Result, error) {
	res := &Result{}
	for _, p := range im.phases(l) {
		if err := ctx.Err(); err != nil {
			return res, migerr.Fatal("import "+p.name, err)
		}

		log := im.log.With(zap.String("phase", p.name), zap.Stringer("capability", p.capability))
		if p.capability == InsertOnly {
			log.Warn("phase is insert-only; running it again duplicates its rows", zap.Bool("resumed", resumed))
		}
		log.Info("phase started")

		start := time.Now()
		counts := p.run(ctx)
		pr := PhaseResult{Name: p.name, Capability: p.capability, Counts: counts, Duration: time.Since(start).Round(time.Millisecond)}
		res.Phases = append(res.Phases, pr)

		log.Info("phase finished",
			zap.Int("created", counts.Created),
			zap.Int("existing", counts.Existing),
			zap.Int("skipped", counts.Skipped),
			zap.Int("failed", counts.Failed),
			zap.Duration("duration", pr.Duration),
		)

		if err := l.Save(); err != nil {
			return res, migerr.Fatal("save mappings", err)
		}
	}
	return res, nil
}

// placeholderPassword returns the bcrypt hash of a random secret nobody
// knows. Imported people must reset it before signing in.
func (im *Importer) placeholderPassword() (string, error) {
	secret, err := randomString(24)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), im.opts.HashCost)
	if err != nil {
		return "", fmt.Errorf("hash placeholder password: %w", err)
	}
	return string(hash), nil
}

const (
	shortIDLength   = 10
	shortIDAttempts = 5
	alphanumeric    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// newShortID returns a studio short id not yet used in the destination.
func (im *Importer) newShortID(ctx context.Context) (string, error) {
	for range shortIDAttempts {
		id, err := randomString(shortIDLength)
		if err != nil {
			return "", err
		}
		taken, err := im.repo.ShortIDTaken(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free short id after %d attempts", shortIDAttempts)
}

func randomString(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(alphanumeric)))
	for range n {
		i, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b.WriteByte(alphanumeric[i.Int64()])
	}
	return b.String(), nil
}

// createdAt reads a record's legacy creation date. A present but unparsable
// value is logged and left zero, letting the destination decide.
func createdAt(log *zap.Logger, id string, a source.Attrs) time.Time {
	t, ok := a.Timestamp("created_date")
	if !ok && a.Has("created_date") {
		log.Warn("unparsable created_date", zap.String("legacy_id", id), zap.String("value", a.String("created_date")))
	}
	return t
}
