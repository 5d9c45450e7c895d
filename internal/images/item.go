package images

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nabijung/thepilatesapp-sub000/internal/ledger"
	"github.com/nabijung/thepilatesapp-sub000/internal/objectstore"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
)

// Kind is the type of image an item migrates.
type Kind string

const (
	KindProfile  Kind = "profile"
	KindProgress Kind = "progress"
)

// State is the position of a work item in its lifecycle.
type State int

const (
	Pending State = iota
	Downloading
	Downloaded
	Uploading
	Succeeded
	Skipped
	Failed
)

var stateNames = [...]string{"pending", "downloading", "downloaded", "uploading", "succeeded", "skipped", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Succeeded || s == Skipped || s == Failed
}

var transitions = map[State][]State{
	Pending:     {Downloading},
	Downloading: {Downloaded, Failed},
	Downloaded:  {Uploading},
	Uploading:   {Succeeded, Skipped, Failed},
}

// WorkItem migrates one legacy image to one destination object.
type WorkItem struct {
	Kind       Kind
	SourcePath string
	DestPath   string
	StudentID  string
	StudioID   string
	TakenAt    time.Time
	LegacyID   string

	// Legacy ids of the owners, used to find the membership join in the ledger.
	StudentLegacy string
	StudioLegacy  string

	State State
	Err   error
}

// advance moves the item to next. An illegal transition is a bug in the pool
// and panics.
func (w *WorkItem) advance(next State) {
	for _, allowed := range transitions[w.State] {
		if allowed == next {
			w.State = next
			return
		}
	}
	panic(fmt.Sprintf("images: illegal transition %s -> %s for %s", w.State, next, w.DestPath))
}

func (w *WorkItem) fail(err error) {
	w.Err = err
	w.advance(Failed)
}

// BuildItems resolves every profile image and progress photo in doc to a work
// item addressed by destination ids. Images whose owners have no destination
// id cannot be placed and are dropped with a warning; the drop count is
// returned alongside the items.
func BuildItems(doc *source.Document, l *ledger.Ledger, log *zap.Logger) ([]*WorkItem, int) {
	log = log.Named("images.items")
	students := l.Reader(ledger.Students)
	studios := l.Reader(ledger.Studios)

	var items []*WorkItem
	dropped := 0

	for _, studentLegacy := range source.SortedKeys(doc.Students) {
		path := doc.Students[studentLegacy].First("profile_image", "profile_picture")
		if path == "" {
			continue
		}
		studentID, ok := students.Lookup(studentLegacy)
		if !ok {
			log.Warn("dropping profile image of a student that was not imported", zap.String("student", studentLegacy))
			dropped++
			continue
		}
		items = append(items, &WorkItem{
			Kind:          KindProfile,
			SourcePath:    path,
			DestPath:      objectstore.ProfilePath(studentID),
			StudentID:     studentID,
			LegacyID:      studentLegacy,
			StudentLegacy: studentLegacy,
		})
	}

	for _, p := range doc.PhotoRecords() {
		path := p.Attrs.First("path", "url", "image_path", "storage_path")
		if path == "" {
			log.Warn("dropping progress photo without a path", zap.String("photo", p.PhotoID))
			dropped++
			continue
		}
		studioLegacy := p.Attrs.String("studio_id")
		studentID, okStudent := students.Lookup(p.StudentID)
		studioID, okStudio := studios.Lookup(studioLegacy)
		if !okStudent || !okStudio {
			log.Warn("dropping progress photo whose owner was not imported",
				zap.String("photo", p.PhotoID),
				zap.String("student", p.StudentID),
				zap.String("studio", studioLegacy),
			)
			dropped++
			continue
		}
		taken, _ := p.Attrs.Timestamp("date")
		if taken.IsZero() {
			taken, _ = p.Attrs.Timestamp("created_date")
		}
		items = append(items, &WorkItem{
			Kind:          KindProgress,
			SourcePath:    path,
			DestPath:      objectstore.ProgressPath(studioID, studentID, p.PhotoID),
			StudentID:     studentID,
			StudioID:      studioID,
			TakenAt:       taken,
			LegacyID:      p.PhotoID,
			StudentLegacy: p.StudentID,
			StudioLegacy:  studioLegacy,
		})
	}
	return items, dropped
}
