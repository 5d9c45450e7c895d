package importer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// importStudios maps each legacy studio to an existing row (the id already in
// the ledger, or the same name and creation date) or creates it with a fresh
// short id.
func (im *Importer) importStudios(ctx context.Context, out ledger.Writer) Counts {
	log := im.log.Named("studios")
	var c Counts

	for _, id := range source.SortedKeys(im.doc.Studios) {
		if ctx.Err() != nil {
			break
		}
		a := im.doc.Studios[id]
		name := a.First("studio_name", "name")
		if name == "" {
			log.Warn("skipping studio without a name", zap.String("legacy_id", id))
			c.Skipped++
			continue
		}
		created := createdAt(log, id, a)

		if dest, ok := out.Lookup(id); ok {
			exists, err := im.repo.StudioExists(ctx, dest)
			if err != nil {
				log.Error("studio lookup failed", zap.String("legacy_id", id), logger.Error(err))
				c.Failed++
				continue
			}
			if exists {
				log.Info("studio already imported", zap.String("legacy_id", id), zap.String("id", dest))
				c.Existing++
				continue
			}
		}

		dest, found, err := im.repo.FindStudio(ctx, name, created)
		if err != nil {
			log.Error("studio lookup failed", zap.String("legacy_id", id), logger.Error(err))
			c.Failed++
			continue
		}
		if found {
			log.Info("using existing studio", zap.String("legacy_id", id), zap.String("id", dest), zap.String("name", name))
			out.Record(id, dest)
			c.Existing++
			continue
		}

		shortID, err := im.newShortID(ctx)
		if err != nil {
			log.Error("short id generation failed", zap.String("legacy_id", id), logger.Error(err))
			c.Failed++
			continue
		}
		dest, err = im.repo.InsertStudio(ctx, store.Studio{
			Name:      name,
			Location:  a.String("location"),
			CreatedAt: created,
			ShortID:   shortID,
		})
		if err != nil {
			log.Error("failed to create studio", zap.String("legacy_id", id), zap.String("name", name), logger.Error(err))
			c.Failed++
			continue
		}
		out.Record(id, dest)
		c.Created++
		log.Debug("studio created", zap.String("legacy_id", id), zap.String("id", dest))
	}
	return c
}

// person is the legacy shape shared by instructors and students.
type person struct {
	id    string
	attrs source.Attrs
	email string
}

// gate applies the data-quality checks every person must pass. It returns
// false, with the reason logged, when the record is skipped.
func gate(log *zap.Logger, id string, a source.Attrs) (person, bool) {
	if a.String("user_id") == "" || !a.Has("created_date") {
		log.Warn("skipping record without user_id or created_date", zap.String("legacy_id", id))
		return person{}, false
	}
	return person{id: id, attrs: a, email: strings.ToLower(a.String("email"))}, true
}

func (p person) names() (string, string) {
	first := p.attrs.First("first_name", "firstName")
	last := p.attrs.First("last_name", "lastName")
	if first == "" && last == "" {
		full := strings.Fields(p.attrs.String("name"))
		if len(full) > 0 {
			first = full[0]
			last = strings.Join(full[1:], " ")
		}
	}
	return first, last
}

// importPeople runs the shared dedup-by-email flow. find and insert bind it to
// one table.
func (im *Importer) importPeople(
	ctx context.Context,
	log *zap.Logger,
	records source.Collection,
	out ledger.Writer,
	find func(ctx context.Context, email string) (string, bool, error),
	insert func(ctx context.Context, p person, base store.Person) (string, error),
) Counts {
	var c Counts

	for _, id := range source.SortedKeys(records) {
		if ctx.Err() != nil {
			break
		}
		p, ok := gate(log, id, records[id])
		if !ok {
			c.Skipped++
			continue
		}

		// Without an email there is nothing to match on; the destination
		// decides whether the row is acceptable.
		var (
			dest  string
			found bool
			err   error
		)
		if p.email != "" {
			dest, found, err = find(ctx, p.email)
		}
		if err != nil {
			log.Error("lookup by email failed", zap.String("legacy_id", id), logger.Error(err))
			c.Failed++
			continue
		}
		if found {
			log.Info("using existing record", zap.String("legacy_id", id), zap.String("id", dest), zap.String("email", p.email))
			out.Record(id, dest)
			c.Existing++
			continue
		}

		password, err := im.placeholderPassword()
		if err != nil {
			log.Error("placeholder password failed", zap.String("legacy_id", id), logger.Error(err))
			c.Failed++
			continue
		}
		first, last := p.names()
		dest, err = insert(ctx, p, store.Person{
			FirstName:         first,
			LastName:          last,
			Email:             p.email,
			Password:          password,
			MustResetPassword: true,
			CreatedAt:         createdAt(log, id, p.attrs),
		})
		if errors.Is(err, store.ErrConflict) && p.email != "" {
			// Another legacy record with the same email won the insert.
			if existing, ok, ferr := find(ctx, p.email); ferr == nil && ok {
				log.Info("using existing record", zap.String("legacy_id", id), zap.String("id", existing), zap.String("email", p.email))
				out.Record(id, existing)
				c.Existing++
				continue
			}
		}
		if err != nil {
			log.Error("failed to create record", zap.String("legacy_id", id), zap.String("email", p.email), logger.Error(err))
			c.Failed++
			continue
		}
		out.Record(id, dest)
		c.Created++
	}
	return c
}

func (im *Importer) importInstructors(ctx context.Context, out ledger.Writer) Counts {
	return im.importPeople(ctx, im.log.Named("instructors"), im.doc.Instructors, out,
		im.repo.FindInstructorByEmail,
		func(ctx context.Context, _ person, base store.Person) (string, error) {
			return im.repo.InsertInstructor(ctx, store.Instructor{Person: base})
		},
	)
}

func (im *Importer) importStudents(ctx context.Context, out ledger.Writer) Counts {
	return im.importPeople(ctx, im.log.Named("students"), im.doc.Students, out,
		im.repo.FindStudentByEmail,
		func(ctx context.Context, p person, base store.Person) (string, error) {
			s := store.Student{
				Person:      base,
				Height:      p.attrs.String("height"),
				Weight:      p.attrs.String("weight"),
				Pathologies: p.attrs.String("pathologies"),
				Occupation:  p.attrs.String("occupation"),
			}
			if b, ok := birthday(p.attrs); ok {
				s.Birthday = &b
			}
			return im.repo.InsertStudent(ctx, s)
		},
	)
}

// birthday accepts Unix seconds or a calendar date.
func birthday(a source.Attrs) (time.Time, bool) {
	if t, ok := a.Timestamp("birthday"); ok {
		return t, true
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006", time.RFC3339} {
		if t, err := time.Parse(layout, a.String("birthday")); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
