// Package ledger persists the legacy id to destination id mapping produced by
// an import run. Cleanup replays it in reverse.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Partition names one entity kind of the ledger.
type Partition string

const (
	Studios     Partition = "studios"
	Instructors Partition = "instructors"
	Students    Partition = "students"
	Lessons     Partition = "lessons"
	Notebooks   Partition = "notebooks"
	Entries     Partition = "entries"

	// Join partitions are keyed by JoinKey(legacyA, legacyB).
	StudioInstructors Partition = "studio_instructors"
	StudioStudents    Partition = "studio_students"
	StudentLessons    Partition = "student_lessons"
)

// Required lists the partitions every ledger file must carry, in creation order.
var Required = []Partition{Studios, Instructors, Students, Lessons, Notebooks, Entries}

// Joins lists the join partitions. Ledgers written before they existed load
// with them empty.
var Joins = []Partition{StudioInstructors, StudioStudents, StudentLessons}

// ErrNotFound is returned by Load when the mappings file does not exist.
var ErrNotFound = errors.New("mappings file not found")

// JoinKey builds the composite legacy key of a join partition entry.
func JoinKey(a, b string) string {
	return a + ":" + b
}

// SplitJoinKey reverses JoinKey.
func SplitJoinKey(key string) (string, string, bool) {
	return strings.Cut(key, ":")
}

// Reader is read access to one partition.
type Reader interface {
	Lookup(legacyID string) (string, bool)
	Len() int
	// LegacyIDs returns mapped legacy ids in ascending order.
	LegacyIDs() []string
	// DestIDs returns the distinct destination ids in ascending order.
	DestIDs() []string
}

// Writer is read-write access to one partition. A phase only ever receives the
// Writer of the partition it owns.
type Writer interface {
	Reader
	Record(legacyID, destID string)
}

// Ledger is the in-memory mapping table. It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	path    string
	parts   map[Partition]map[string]string
	present map[Partition]bool
}

// New returns an empty ledger that saves to path. An empty path disables
// persistence, which is how dry runs use it.
func New(path string) *Ledger {
	l := &Ledger{
		path:    path,
		parts:   make(map[Partition]map[string]string),
		present: make(map[Partition]bool),
	}
	for _, p := range append(append([]Partition{}, Required...), Joins...) {
		l.parts[p] = make(map[string]string)
		l.present[p] = true
	}
	return l
}

// Load reads a ledger file. Destination ids may be strings or numbers; numbers
// are kept as their decimal text.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read mappings file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse mappings file %s: %w", path, err)
	}

	l := New(path)
	l.present = make(map[Partition]bool)
	for name, entries := range raw {
		p := Partition(name)
		if _, known := l.parts[p]; !known {
			continue
		}
		if entries != nil {
			l.present[p] = true
		}
		for legacy, v := range entries {
			switch id := v.(type) {
			case string:
				l.parts[p][legacy] = id
			case json.Number:
				l.parts[p][legacy] = id.String()
			default:
				return nil, fmt.Errorf("parse mappings file %s: %s[%s] has unsupported id %v", path, name, legacy, v)
			}
		}
	}
	return l, nil
}

// LoadOrNew loads path when it exists and starts an empty ledger otherwise.
// The bool reports whether an existing file was loaded.
func LoadOrNew(path string) (*Ledger, bool, error) {
	l, err := Load(path)
	if errors.Is(err, ErrNotFound) {
		return New(path), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// Path returns the file the ledger persists to.
func (l *Ledger) Path() string { return l.path }

// ValidateComplete checks that a loaded file carried all required partitions.
func (l *Ledger) ValidateComplete() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var missing []string
	for _, p := range Required {
		if !l.present[p] {
			missing = append(missing, string(p))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("mappings file %s is missing partitions: %s", l.path, strings.Join(missing, ", "))
	}
	return nil
}

// Reader returns read access to partition p.
func (l *Ledger) Reader(p Partition) Reader {
	return l.view(p)
}

// Writer returns write access to partition p.
func (l *Ledger) Writer(p Partition) Writer {
	return l.view(p)
}

func (l *Ledger) view(p Partition) *partition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.parts[p]; !ok {
		panic(fmt.Sprintf("ledger: unknown partition %q", p))
	}
	return &partition{l: l, name: p}
}

// Counts returns the number of mappings per partition.
func (l *Ledger) Counts() map[Partition]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[Partition]int, len(l.parts))
	for p, m := range l.parts {
		out[p] = len(m)
	}
	return out
}

// Save writes the ledger as indented JSON via a temp file and rename, so a
// crash never leaves a truncated file behind.
func (l *Ledger) Save() error {
	if l.path == "" {
		return nil
	}
	l.mu.RLock()
	data, err := json.MarshalIndent(l.snapshot(), "", "  ")
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp mappings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write mappings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close mappings: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace mappings file: %w", err)
	}
	return nil
}

// ArchiveName returns the backup name used by Archive.
func ArchiveName(path string, now time.Time) string {
	return fmt.Sprintf("%s.%s.bak", path, now.Format("20060102-150405"))
}

// Archive renames the ledger file to a timestamped backup so it cannot be
// replayed. It returns the new name.
func (l *Ledger) Archive(now time.Time) (string, error) {
	dest := ArchiveName(l.path, now)
	if err := os.Rename(l.path, dest); err != nil {
		return "", fmt.Errorf("archive mappings file: %w", err)
	}
	return dest, nil
}

// fileFormat fixes the key order of the written file.
type fileFormat struct {
	Studios           map[string]string `json:"studios"`
	Instructors       map[string]string `json:"instructors"`
	Students          map[string]string `json:"students"`
	Lessons           map[string]string `json:"lessons"`
	Notebooks         map[string]string `json:"notebooks"`
	Entries           map[string]string `json:"entries"`
	StudioInstructors map[string]string `json:"studio_instructors"`
	StudioStudents    map[string]string `json:"studio_students"`
	StudentLessons    map[string]string `json:"student_lessons"`
}

func (l *Ledger) snapshot() fileFormat {
	return fileFormat{
		Studios:           l.parts[Studios],
		Instructors:       l.parts[Instructors],
		Students:          l.parts[Students],
		Lessons:           l.parts[Lessons],
		Notebooks:         l.parts[Notebooks],
		Entries:           l.parts[Entries],
		StudioInstructors: l.parts[StudioInstructors],
		StudioStudents:    l.parts[StudioStudents],
		StudentLessons:    l.parts[StudentLessons],
	}
}

type partition struct {
	l    *Ledger
	name Partition
}

func (p *partition) Lookup(legacyID string) (string, bool) {
	p.l.mu.RLock()
	defer p.l.mu.RUnlock()
	id, ok := p.l.parts[p.name][legacyID]
	return id, ok
}

func (p *partition) Len() int {
	p.l.mu.RLock()
	defer p.l.mu.RUnlock()
	return len(p.l.parts[p.name])
}

func (p *partition) LegacyIDs() []string {
	p.l.mu.RLock()
	defer p.l.mu.RUnlock()
	out := make([]string, 0, len(p.l.parts[p.name]))
	for k := range p.l.parts[p.name] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (p *partition) DestIDs() []string {
	p.l.mu.RLock()
	defer p.l.mu.RUnlock()
	seen := make(map[string]bool, len(p.l.parts[p.name]))
	out := make([]string, 0, len(p.l.parts[p.name]))
	for _, v := range p.l.parts[p.name] {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func (p *partition) Record(legacyID, destID string) {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	p.l.parts[p.name][legacyID] = destID
}
