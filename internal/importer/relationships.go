package importer

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
	"github.com/nabijung/thepilatesapp-sub000/internal/store"
	"github.com/nabijung/thepilatesapp-sub000/pkg/logger"
)

// reconciler derives studio membership rows from both directions of the
// export: studios listing their members and members listing their studios.
type reconciler struct {
	im          *Importer
	studios     ledger.Reader
	instructors ledger.Reader
	students    ledger.Reader
	si          ledger.Writer
	ss          ledger.Writer
	log         *zap.Logger

	// fresh holds studio_student join keys created in this run; their goals
	// and about were written on insert.
	fresh map[string]bool
	c     Counts
}

func (rc *reconciler) run(ctx context.Context) Counts {
	rc.fresh = make(map[string]bool)
	rc.instructorsFromStudios(ctx)
	rc.instructorsFromMembers(ctx)
	rc.studentsFromStudios(ctx)
	rc.studentsFromMembers(ctx)
	return rc.c
}

// byCreation orders legacy instructor ids by their source creation date.
// Ties and missing dates keep the incoming order; undated ids sort last.
// Callers pass ids sorted, so ties go to the smallest legacy id rather than
// to the export's key order, which a decoded JSON object does not keep.
func (rc *reconciler) byCreation(ids []string, member source.Collection) []string {
	when := func(id string) (time.Time, bool) {
		if t, ok := rc.im.doc.Instructors[id].Timestamp("created_date"); ok {
			return t, true
		}
		return member[id].Timestamp("created_date")
	}
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, okI := when(out[i])
		tj, okJ := when(out[j])
		switch {
		case okI && okJ:
			return ti.Before(tj)
		case okI:
			return true
		}
		return false
	})
	return out
}

// instructorJoin returns the existing join id, consulting the ledger before
// the destination.
func (rc *reconciler) instructorJoin(ctx context.Context, key, studioID, instructorID string) (string, bool, error) {
	if id, ok := rc.si.Lookup(key); ok {
		return id, true, nil
	}
	id, ok, err := rc.im.repo.FindStudioInstructor(ctx, studioID, instructorID)
	if err == nil && ok {
		rc.si.Record(key, id)
	}
	return id, ok, err
}

func (rc *reconciler) insertInstructorJoin(ctx context.Context, key, studioLegacy, instructorLegacy, studioID, instructorID string, admin bool) {
	id, err := rc.im.repo.InsertStudioInstructor(ctx, store.StudioInstructor{
		StudioID:     studioID,
		InstructorID: instructorID,
		IsApproved:   true,
		IsAdmin:      admin,
	})
	if err != nil {
		rc.log.Error("failed to create studio instructor",
			zap.String("studio", studioLegacy), zap.String("instructor", instructorLegacy), logger.Error(err))
		rc.c.Failed++
		return
	}
	rc.si.Record(key, id)
	rc.c.Created++
	rc.log.Debug("studio instructor created",
		zap.String("studio", studioLegacy), zap.String("instructor", instructorLegacy), zap.Bool("admin", admin))
}

// instructorsFromStudios walks studio.instructors. The earliest-created
// member with a destination id is the admin candidate.
func (rc *reconciler) instructorsFromStudios(ctx context.Context) {
	for _, studioLegacy := range source.SortedKeys(rc.im.doc.Studios) {
		if ctx.Err() != nil {
			return
		}
		studioID, ok := rc.studios.Lookup(studioLegacy)
		if !ok {
			continue
		}
		members := source.Collection{}
		for id, v := range rc.im.doc.Studios[studioLegacy].Map("instructors") {
			a, _ := v.(map[string]any)
			members[id] = a
		}
		if len(members) == 0 {
			continue
		}

		ordered := rc.byCreation(source.SortedKeys(members), members)
		candidate := ""
		for _, id := range ordered {
			if _, ok := rc.instructors.Lookup(id); ok {
				candidate = id
				break
			}
		}

		hasAdmin, err := rc.im.repo.StudioHasAdmin(ctx, studioID)
		if err != nil {
			rc.log.Error("admin lookup failed", zap.String("studio", studioLegacy), logger.Error(err))
			hasAdmin = true
		}

		for _, instructorLegacy := range ordered {
			instructorID, ok := rc.instructors.Lookup(instructorLegacy)
			if !ok {
				rc.log.Warn("studio lists an instructor that was not imported",
					zap.String("studio", studioLegacy), zap.String("instructor", instructorLegacy))
				rc.c.Skipped++
				continue
			}
			key := ledger.JoinKey(studioLegacy, instructorLegacy)
			_, exists, err := rc.instructorJoin(ctx, key, studioID, instructorID)
			if err != nil {
				rc.log.Error("studio instructor lookup failed", zap.String("studio", studioLegacy), zap.String("instructor", instructorLegacy), logger.Error(err))
				rc.c.Failed++
				continue
			}
			if exists {
				rc.log.Info("studio instructor already exists", zap.String("studio", studioLegacy), zap.String("instructor", instructorLegacy))
				rc.c.Existing++
				continue
			}
			admin := instructorLegacy == candidate && !hasAdmin
			rc.insertInstructorJoin(ctx, key, studioLegacy, instructorLegacy, studioID, instructorID, admin)
			if admin {
				hasAdmin = true
			}
		}
	}
}

// earliestFor recomputes the admin candidate of a studio from the member
// side: the earliest-created imported instructor whose studios include it.
func (rc *reconciler) earliestFor(studioLegacy string) string {
	var listed []string
	for _, id := range source.SortedKeys(rc.im.doc.Instructors) {
		if !rc.im.doc.Instructors[id].Map("studios").Has(studioLegacy) {
			continue
		}
		if _, ok := rc.instructors.Lookup(id); ok {
			listed = append(listed, id)
		}
	}
	ordered := rc.byCreation(listed, nil)
	if len(ordered) == 0 {
		return ""
	}
	return ordered[0]
}

// instructorsFromMembers walks instructor.studios for pairs the studio side
// did not list.
func (rc *reconciler) instructorsFromMembers(ctx context.Context) {
	for _, instructorLegacy := range source.SortedKeys(rc.im.doc.Instructors) {
		if ctx.Err() != nil {
			return
		}
		instructorID, ok := rc.instructors.Lookup(instructorLegacy)
		if !ok {
			continue
		}
		for _, studioLegacy := range rc.im.doc.Instructors[instructorLegacy].Keys("studios") {
			studioID, ok := rc.studios.Lookup(studioLegacy)
			if !ok {
				rc.log.Warn("instructor lists a studio that was not imported",
					zap.String("instructor", instructorLegacy), zap.String("studio", studioLegacy))
				rc.c.Skipped++
				continue
			}
			key := ledger.JoinKey(studioLegacy, instructorLegacy)
			if _, done := rc.si.Lookup(key); done {
				continue
			}
			_, exists, err := rc.instructorJoin(ctx, key, studioID, instructorID)
			if err != nil {
				rc.log.Error("studio instructor lookup failed", zap.String("studio", studioLegacy), zap.String("instructor", instructorLegacy), logger.Error(err))
				rc.c.Failed++
				continue
			}
			if exists {
				rc.log.Info("studio instructor already exists", zap.String("studio", studioLegacy), zap.String("instructor", instructorLegacy))
				rc.c.Existing++
				continue
			}

			hasAdmin, err := rc.im.repo.StudioHasAdmin(ctx, studioID)
			if err != nil {
				rc.log.Error("admin lookup failed", zap.String("studio", studioLegacy), logger.Error(err))
				hasAdmin = true
			}
			admin := !hasAdmin && rc.earliestFor(studioLegacy) == instructorLegacy
			rc.insertInstructorJoin(ctx, key, studioLegacy, instructorLegacy, studioID, instructorID, admin)
		}
	}
}

// attending returns the student's own record of a studio membership.
func (rc *reconciler) attending(studentLegacy, studioLegacy string) source.Attrs {
	return rc.im.doc.Students[studentLegacy].Map("studios_attending").Map(studioLegacy)
}

func (rc *reconciler) studentJoin(ctx context.Context, key, studioID, studentID string) (string, bool, error) {
	if id, ok := rc.ss.Lookup(key); ok {
		return id, true, nil
	}
	id, ok, err := rc.im.repo.FindStudioStudent(ctx, studioID, studentID)
	if err == nil && ok {
		rc.ss.Record(key, id)
	}
	return id, ok, err
}

func (rc *reconciler) insertStudentJoin(ctx context.Context, key, studioLegacy, studentLegacy, studioID, studentID string) {
	own := rc.attending(studentLegacy, studioLegacy)
	id, err := rc.im.repo.InsertStudioStudent(ctx, store.StudioStudent{
		StudioID:   studioID,
		StudentID:  studentID,
		IsApproved: true,
		Goals:      own.String("goals"),
		About:      own.String("about"),
	})
	if err != nil {
		rc.log.Error("failed to create studio student",
			zap.String("studio", studioLegacy), zap.String("student", studentLegacy), logger.Error(err))
		rc.c.Failed++
		return
	}
	rc.ss.Record(key, id)
	rc.fresh[key] = true
	rc.c.Created++
}

// studentsFromStudios walks studio.students.
func (rc *reconciler) studentsFromStudios(ctx context.Context) {
	for _, studioLegacy := range source.SortedKeys(rc.im.doc.Studios) {
		if ctx.Err() != nil {
			return
		}
		studioID, ok := rc.studios.Lookup(studioLegacy)
		if !ok {
			continue
		}
		for _, studentLegacy := range rc.im.doc.Studios[studioLegacy].Keys("students") {
			studentID, ok := rc.students.Lookup(studentLegacy)
			if !ok {
				rc.log.Warn("studio lists a student that was not imported",
					zap.String("studio", studioLegacy), zap.String("student", studentLegacy))
				rc.c.Skipped++
				continue
			}
			key := ledger.JoinKey(studioLegacy, studentLegacy)
			_, exists, err := rc.studentJoin(ctx, key, studioID, studentID)
			if err != nil {
				rc.log.Error("studio student lookup failed", zap.String("studio", studioLegacy), zap.String("student", studentLegacy), logger.Error(err))
				rc.c.Failed++
				continue
			}
			if exists {
				rc.log.Info("studio student already exists", zap.String("studio", studioLegacy), zap.String("student", studentLegacy))
				rc.c.Existing++
				continue
			}
			rc.insertStudentJoin(ctx, key, studioLegacy, studentLegacy, studioID, studentID)
		}
	}
}

// studentsFromMembers walks student.studios_attending. Joins that already
// exist get goals and about merged in; empty source values never clear them.
func (rc *reconciler) studentsFromMembers(ctx context.Context) {
	for _, studentLegacy := range source.SortedKeys(rc.im.doc.Students) {
		if ctx.Err() != nil {
			return
		}
		studentID, ok := rc.students.Lookup(studentLegacy)
		if !ok {
			continue
		}
		for _, studioLegacy := range rc.im.doc.Students[studentLegacy].Keys("studios_attending") {
			studioID, ok := rc.studios.Lookup(studioLegacy)
			if !ok {
				rc.log.Warn("student attends a studio that was not imported",
					zap.String("student", studentLegacy), zap.String("studio", studioLegacy))
				rc.c.Skipped++
				continue
			}
			key := ledger.JoinKey(studioLegacy, studentLegacy)
			if rc.fresh[key] {
				continue
			}
			joinID, exists, err := rc.studentJoin(ctx, key, studioID, studentID)
			if err != nil {
				rc.log.Error("studio student lookup failed", zap.String("studio", studioLegacy), zap.String("student", studentLegacy), logger.Error(err))
				rc.c.Failed++
				continue
			}
			if !exists {
				rc.insertStudentJoin(ctx, key, studioLegacy, studentLegacy, studioID, studentID)
				continue
			}

			own := rc.attending(studentLegacy, studioLegacy)
			wrote, err := rc.im.repo.MergeStudioStudent(ctx, joinID, own.String("goals"), own.String("about"))
			if err != nil {
				rc.log.Error("failed to update studio student", zap.String("studio", studioLegacy), zap.String("student", studentLegacy), logger.Error(err))
				rc.c.Failed++
				continue
			}
			if wrote {
				rc.log.Info("merged goals and about into existing studio student",
					zap.String("studio", studioLegacy), zap.String("student", studentLegacy))
			}
			rc.c.Existing++
		}
	}
}
