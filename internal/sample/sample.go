// Package sample cuts a small, self-consistent subset out of a legacy export
// for use as a test fixture.
package sample

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nabijung/thepilatesapp-sub000/internal/source"
)

// Options bounds the sample.
type Options struct {
	Studios   int
	PerStudio int
}

// DefaultOptions samples two studios with five members of each kind.
var DefaultOptions = Options{Studios: 2, PerStudio: 5}

// Sample is the extracted subset, written in the export's own shape.
type Sample struct {
	Studios           source.Collection `json:"studios"`
	Instructors       source.Collection `json:"instructors"`
	Students          source.Collection `json:"students"`
	Lessons           source.Collection `json:"lessons"`
	Notebooks         source.Nested     `json:"notebooks"`
	Entries           source.Collection `json:"entries"`
	Photos            source.Nested     `json:"photos,omitempty"`
	ExerciseDataLists source.Collection `json:"exerciseDataLists,omitempty"`
}

// Counts returns the number of records per collection.
func (s *Sample) Counts() map[string]int {
	notebooks := 0
	for _, books := range s.Notebooks {
		notebooks += len(books)
	}
	photos := 0
	for _, group := range s.Photos {
		photos += len(group)
	}
	return map[string]int{
		source.KeyStudios:           len(s.Studios),
		source.KeyInstructors:       len(s.Instructors),
		source.KeyStudents:          len(s.Students),
		source.KeyLessons:           len(s.Lessons),
		source.KeyNotebooks:         notebooks,
		source.KeyEntries:           len(s.Entries),
		source.KeyPhotos:            photos,
		source.KeyExerciseDataLists: len(s.ExerciseDataLists),
	}
}

type idSet map[string]bool

func (s idSet) has(id string) bool { return s[id] }

// Extract picks the first opts.Studios studios by id and, per studio, the
// first opts.PerStudio instructors and students it lists. Everything those
// records reference is carried along, and every reference is pruned to the
// sampled ids. doc is not modified.
func Extract(doc *source.Document, opts Options) *Sample {
	if opts.Studios <= 0 {
		opts.Studios = DefaultOptions.Studios
	}
	if opts.PerStudio <= 0 {
		opts.PerStudio = DefaultOptions.PerStudio
	}

	studios, instructors, students := idSet{}, idSet{}, idSet{}
	for _, id := range source.SortedKeys(doc.Studios) {
		if len(studios) == opts.Studios {
			break
		}
		studios[id] = true
		a := doc.Studios[id]
		pick(a.Keys("instructors"), doc.Instructors, opts.PerStudio, instructors)
		pick(a.Keys("students"), doc.Students, opts.PerStudio, students)
	}

	out := &Sample{
		Studios:     source.Collection{},
		Instructors: source.Collection{},
		Students:    source.Collection{},
		Lessons:     source.Collection{},
		Notebooks:   source.Nested{},
		Entries:     source.Collection{},
	}

	for id, a := range doc.Lessons {
		if studios.has(a.String("studio_id")) {
			out.Lessons[id] = a
		}
	}
	lessons := idSet{}
	for id := range out.Lessons {
		lessons[id] = true
	}

	for id := range studios {
		rec := prune(doc.Studios[id], "instructors", instructors)
		out.Studios[id] = prune(rec, "students", students)
	}
	for id := range instructors {
		out.Instructors[id] = prune(doc.Instructors[id], "studios", studios)
	}
	for id := range students {
		out.Students[id] = pruneAttending(doc.Students[id], studios, lessons)
	}

	entries := idSet{}
	for studentID := range students {
		for notebookID, a := range doc.Notebooks[studentID] {
			if !studios.has(a.String("studio_id")) {
				continue
			}
			nb := prune(a, "entries", inDoc(doc.Entries))
			if out.Notebooks[studentID] == nil {
				out.Notebooks[studentID] = source.Collection{}
			}
			out.Notebooks[studentID][notebookID] = nb
			for _, e := range nb.Keys("entries") {
				entries[e] = true
			}
		}
	}
	for id := range entries {
		out.Entries[id] = doc.Entries[id]
	}

	if doc.Has(source.KeyPhotos) {
		out.Photos = source.Nested{}
		for _, p := range doc.PhotoRecords() {
			studio := p.Attrs.String("studio_id")
			if !students.has(p.StudentID) || (studio != "" && !studios.has(studio)) {
				continue
			}
			if out.Photos[p.StudentID] == nil {
				out.Photos[p.StudentID] = source.Collection{}
			}
			rec := copyAttrs(p.Attrs)
			delete(rec, "student_id")
			out.Photos[p.StudentID][p.PhotoID] = rec
		}
	}

	if doc.Has(source.KeyExerciseDataLists) {
		out.ExerciseDataLists = source.Collection{}
		for _, id := range source.SortedKeys(doc.ExerciseDataLists) {
			if len(out.ExerciseDataLists) == opts.PerStudio {
				break
			}
			out.ExerciseDataLists[id] = doc.ExerciseDataLists[id]
		}
	}
	return out
}

// Write stores the sample as indented JSON.
func Write(path string, s *Sample) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}

// pick adds up to n of ids that exist in records to into.
func pick(ids []string, records source.Collection, n int, into idSet) {
	taken := 0
	for _, id := range ids {
		if taken == n {
			return
		}
		if _, ok := records[id]; ok {
			into[id] = true
			taken++
		}
	}
}

func inDoc(c source.Collection) idSet {
	s := make(idSet, len(c))
	for id := range c {
		s[id] = true
	}
	return s
}

func copyAttrs(a source.Attrs) source.Attrs {
	out := make(source.Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// prune returns a copy of a whose membership object at key keeps only ids in
// keep. A missing key stays missing.
func prune(a source.Attrs, key string, keep idSet) source.Attrs {
	out := copyAttrs(a)
	members, ok := a[key].(map[string]any)
	if !ok {
		return out
	}
	kept := make(map[string]any, len(members))
	for id, v := range members {
		if keep.has(id) {
			kept[id] = v
		}
	}
	out[key] = kept
	return out
}

// pruneAttending keeps sampled studios in studios_attending and, inside each,
// sampled lessons.
func pruneAttending(a source.Attrs, studios, lessons idSet) source.Attrs {
	out := prune(a, "studios_attending", studios)
	attending, ok := out["studios_attending"].(map[string]any)
	if !ok {
		return out
	}
	for id, v := range attending {
		if m, ok := v.(map[string]any); ok {
			attending[id] = map[string]any(prune(m, "lessons", lessons))
		}
	}
	return out
}
