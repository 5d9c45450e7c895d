// Package source reads the legacy hierarchical export that the importer
// transforms into relational rows.
package source

// Top-level collection names of the legacy export.
const (
	KeyStudios           = "studios"
	KeyInstructors       = "instructors"
	KeyStudents          = "students"
	KeyLessons           = "lessons"
	KeyNotebooks         = "notebooks"
	KeyEntries           = "entries"
	KeyPhotos            = "photos"
	KeyExerciseDataLists = "exerciseDataLists"
)

// Required key sets per command.
var (
	ImportAllKeys = []string{KeyStudios, KeyInstructors, KeyStudents, KeyLessons, KeyNotebooks, KeyEntries}
	ImagesKeys    = []string{KeyStudents, KeyPhotos}
	ExercisesKeys = []string{KeyExerciseDataLists}
)

// Collection maps legacy id to record.
type Collection map[string]Attrs

// Nested maps an owner's legacy id to the owner's child collection, e.g.
// notebooks[studentID][notebookID].
type Nested map[string]Collection

// Document is a loaded legacy export.
type Document struct {
	Studios           Collection
	Instructors       Collection
	Students          Collection
	Lessons           Collection
	Notebooks         Nested
	Entries           Collection
	Photos            Nested
	ExerciseDataLists Collection

	present map[string]bool
}

// Has reports whether the export contained the top-level key.
func (d *Document) Has(key string) bool {
	return d.present[key]
}

// NotebookRef locates a notebook in the nested notebooks collection.
type NotebookRef struct {
	StudentID  string
	NotebookID string
}

// EntryOwners indexes every entry id referenced by a notebook's entries set.
// When two notebooks claim the same entry, the first in sorted order wins.
func (d *Document) EntryOwners() map[string]NotebookRef {
	owners := make(map[string]NotebookRef)
	for _, studentID := range SortedKeys(d.Notebooks) {
		books := d.Notebooks[studentID]
		for _, notebookID := range SortedKeys(books) {
			for _, entryID := range books[notebookID].Keys("entries") {
				if _, taken := owners[entryID]; taken {
					continue
				}
				owners[entryID] = NotebookRef{StudentID: studentID, NotebookID: notebookID}
			}
		}
	}
	return owners
}

// Notebook returns the notebook record at ref, or nil.
func (d *Document) Notebook(ref NotebookRef) Attrs {
	return d.Notebooks[ref.StudentID][ref.NotebookID]
}

// Photo is one progress photo record.
type Photo struct {
	StudentID string
	PhotoID   string
	Attrs     Attrs
}

// PhotoRecords flattens the photos collection in deterministic order.
// Photos may be nested under their student (photos[student][photo]) or flat
// with a student_id attribute.
func (d *Document) PhotoRecords() []Photo {
	var out []Photo
	for _, outer := range SortedKeys(d.Photos) {
		group := d.Photos[outer]
		if rec, flat := group[flatPhotoKey]; flat {
			out = append(out, Photo{StudentID: rec.String("student_id"), PhotoID: outer, Attrs: rec})
			continue
		}
		for _, photoID := range SortedKeys(group) {
			out = append(out, Photo{StudentID: outer, PhotoID: photoID, Attrs: group[photoID]})
		}
	}
	return out
}

// flatPhotoKey marks a photos entry that was itself a photo record rather
// than a per-student group.
const flatPhotoKey = "\x00flat"

func isPhotoRecord(a Attrs) bool {
	for _, k := range []string{"path", "url", "image_path", "storage_path"} {
		if a.Has(k) {
			if _, nested := a[k].(map[string]any); !nested {
				return true
			}
		}
	}
	return false
}
