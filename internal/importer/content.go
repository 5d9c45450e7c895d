package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// importLessons creates one lesson per legacy lesson. Lessons have no natural
// key, so a second run creates every lesson again and remaps the ledger.
func (im *Importer) importLessons(ctx context.Context, studios ledger.Reader, out ledger.Writer) Counts {
	log := im.log.Named("lessons")
	var c Counts

	for _, id := range source.SortedKeys(im.doc.Lessons) {
		if ctx.Err() != nil {
			break
		}
		a := im.doc.Lessons[id]
		studioLegacy := a.String("studio_id")
		studioID, ok := studios.Lookup(studioLegacy)
		if !ok {
			log.Warn("skipping lesson with unknown studio", zap.String("legacy_id", id), zap.String("studio", studioLegacy))
			c.Skipped++
			continue
		}

		dest, err := im.repo.InsertLesson(ctx, store.Lesson{
			StudioID:    studioID,
			Name:        a.First("name", "title"),
			Description: a.String("description"),
			VideoURL:    a.First("video_url", "video"),
			CreatedAt:   createdAt(log, id, a),
		})
		if err != nil {
			log.Error("failed to create lesson", zap.String("legacy_id", id), logger.Error(err))
			c.Failed++
			continue
		}
		out.Record(id, dest)
		c.Created++
	}
	return c
}

// importStudentLessons assigns lessons from students[*].studios_attending[*].lessons.
// A lesson value is either true or an object with a completed flag. The
// (student, lesson) pair is matched in the destination, not the ledger: a
// re-run creates new lesson rows and their assignments must follow.
func (im *Importer) importStudentLessons(ctx context.Context, students, lessons ledger.Reader, out ledger.Writer) Counts {
	log := im.log.Named("student_lessons")
	var c Counts

	for _, studentLegacy := range source.SortedKeys(im.doc.Students) {
		studentID, ok := students.Lookup(studentLegacy)
		if !ok {
			continue
		}
		attending := im.doc.Students[studentLegacy].Map("studios_attending")
		for _, studioLegacy := range source.SortedKeys(attending) {
			assigned := attending.Map(studioLegacy).Map("lessons")
			for _, lessonLegacy := range source.SortedKeys(assigned) {
				if ctx.Err() != nil {
					return c
				}
				lessonID, ok := lessons.Lookup(lessonLegacy)
				if !ok {
					log.Warn("skipping assignment of a lesson that was not imported",
						zap.String("student", studentLegacy), zap.String("lesson", lessonLegacy))
					c.Skipped++
					continue
				}
				key := ledger.JoinKey(studentLegacy, lessonLegacy)
				dest, exists, err := im.repo.FindStudentLesson(ctx, studentID, lessonID)
				if err != nil {
					log.Error("assignment lookup failed", zap.String("student", studentLegacy), zap.String("lesson", lessonLegacy), logger.Error(err))
					c.Failed++
					continue
				}
				if exists {
					log.Info("assignment already exists", zap.String("student", studentLegacy), zap.String("lesson", lessonLegacy))
					out.Record(key, dest)
					c.Existing++
					continue
				}

				dest, err = im.repo.InsertStudentLesson(ctx, store.StudentLesson{
					StudentID:   studentID,
					LessonID:    lessonID,
					IsCompleted: assigned.Map(lessonLegacy).Bool("completed"),
				})
				if err != nil {
					log.Error("failed to create assignment", zap.String("student", studentLegacy), zap.String("lesson", lessonLegacy), logger.Error(err))
					c.Failed++
					continue
				}
				out.Record(key, dest)
				c.Created++
			}
		}
	}
	return c
}

// importNotebooks creates one notebook per (student, studio). Several legacy
// notebooks of the same pair map to the same row.
func (im *Importer) importNotebooks(ctx context.Context, students, studios ledger.Reader, out ledger.Writer) Counts {
	log := im.log.Named("notebooks")
	var c Counts

	for _, studentLegacy := range source.SortedKeys(im.doc.Notebooks) {
		books := im.doc.Notebooks[studentLegacy]
		studentID, ok := students.Lookup(studentLegacy)
		if !ok {
			log.Warn("skipping notebooks of a student that was not imported",
				zap.String("student", studentLegacy), zap.Int("notebooks", len(books)))
			c.Skipped += len(books)
			continue
		}
		for _, notebookLegacy := range source.SortedKeys(books) {
			if ctx.Err() != nil {
				return c
			}
			a := books[notebookLegacy]
			studioLegacy := a.String("studio_id")
			studioID, ok := studios.Lookup(studioLegacy)
			if !ok {
				log.Warn("skipping notebook with unknown studio",
					zap.String("legacy_id", notebookLegacy), zap.String("studio", studioLegacy))
				c.Skipped++
				continue
			}

			dest, exists, err := im.repo.FindNotebook(ctx, studentID, studioID)
			if err != nil {
				log.Error("notebook lookup failed", zap.String("legacy_id", notebookLegacy), logger.Error(err))
				c.Failed++
				continue
			}
			if exists {
				log.Info("using existing notebook", zap.String("legacy_id", notebookLegacy), zap.String("id", dest))
				out.Record(notebookLegacy, dest)
				c.Existing++
				continue
			}

			dest, err = im.repo.InsertNotebook(ctx, store.Notebook{
				StudentID: studentID,
				StudioID:  studioID,
				CreatedAt: createdAt(log, notebookLegacy, a),
			})
			if err != nil {
				log.Error("failed to create notebook", zap.String("legacy_id", notebookLegacy), logger.Error(err))
				c.Failed++
				continue
			}
			out.Record(notebookLegacy, dest)
			c.Created++
		}
	}
	return c
}

// importEntries creates entries that some notebook claims. The studio comes
// from the entry, or failing that from its notebook. Like lessons, entries
// are inserted on every run.
func (im *Importer) importEntries(ctx context.Context, studios, notebooks ledger.Reader, out ledger.Writer) Counts {
	log := im.log.Named("entries")
	var c Counts
	owners := im.doc.EntryOwners()

	for _, id := range source.SortedKeys(im.doc.Entries) {
		if ctx.Err() != nil {
			break
		}
		ref, ok := owners[id]
		if !ok {
			log.Warn("skipping orphan entry not referenced by any notebook", zap.String("legacy_id", id))
			c.Skipped++
			continue
		}
		notebookID, ok := notebooks.Lookup(ref.NotebookID)
		if !ok {
			log.Warn("skipping entry of a notebook that was not imported",
				zap.String("legacy_id", id), zap.String("notebook", ref.NotebookID))
			c.Skipped++
			continue
		}

		a := im.doc.Entries[id]
		studioID, ok := studios.Lookup(a.String("studio_id"))
		if !ok {
			studioID, ok = studios.Lookup(im.doc.Notebook(ref).String("studio_id"))
		}
		if !ok {
			log.Warn("skipping entry whose studio cannot be resolved", zap.String("legacy_id", id))
			c.Skipped++
			continue
		}

		dest, err := im.repo.InsertEntry(ctx, store.Entry{
			NotebookID: notebookID,
			StudioID:   studioID,
			Title:      a.String("title"),
			Content:    a.First("content", "text", "body"),
			CreatedAt:  createdAt(log, id, a),
		})
		if err != nil {
			log.Error("failed to create entry", zap.String("legacy_id", id), logger.Error(err))
			c.Failed++
			continue
		}
		out.Record(id, dest)
		c.Created++
	}
	return c
}
