package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
)

const opLoad = "load source"

// Load reads and validates the export at path. Any failure is fatal: the
// caller must not write to the destination.
func Load(path string, required []string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, migerr.Fatalf(opLoad, "source file not found: %s", path)
		}
		return nil, migerr.Fatal(opLoad, err)
	}
	return Parse(data, required)
}

// Parse decodes an export and checks that every required collection is
// present and is a JSON object.
func Parse(data []byte, required []string) (*Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, migerr.Fatalf(opLoad, "malformed JSON: %v", err)
	}
	if raw == nil {
		return nil, migerr.New(migerr.KindFatal, opLoad, "Invalid JSON structure: top level must be an object")
	}

	var missing []string
	for _, key := range required {
		if v, ok := raw[key]; !ok || v == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, migerr.New(migerr.KindFatal, opLoad,
			"Invalid JSON structure: missing required keys: "+strings.Join(missing, ", "))
	}

	if err := validateShape(raw, required); err != nil {
		return nil, migerr.New(migerr.KindFatal, opLoad, "Invalid JSON structure: "+err.Error())
	}

	return fromRaw(raw), nil
}

func validateShape(raw map[string]any, required []string) error {
	schema := &jsonschema.Schema{
		Type:       "object",
		Required:   required,
		Properties: make(map[string]*jsonschema.Schema, len(required)),
	}
	for _, key := range required {
		schema.Properties[key] = &jsonschema.Schema{Type: "object"}
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema: %w", err)
	}
	return resolved.Validate(raw)
}

func fromRaw(raw map[string]any) *Document {
	doc := &Document{
		Studios:           collection(raw[KeyStudios]),
		Instructors:       collection(raw[KeyInstructors]),
		Students:          collection(raw[KeyStudents]),
		Lessons:           collection(raw[KeyLessons]),
		Notebooks:         nested(raw[KeyNotebooks]),
		Entries:           collection(raw[KeyEntries]),
		Photos:            photos(raw[KeyPhotos]),
		ExerciseDataLists: collection(raw[KeyExerciseDataLists]),
		present:           make(map[string]bool, len(raw)),
	}
	for k, v := range raw {
		if v != nil {
			doc.present[k] = true
		}
	}
	return doc
}

// collection keeps object-valued records; scalar values are legacy noise.
func collection(v any) Collection {
	m, _ := v.(map[string]any)
	out := make(Collection, len(m))
	for id, rec := range m {
		if a := toAttrs(rec); a != nil {
			out[id] = a
		}
	}
	return out
}

func nested(v any) Nested {
	m, _ := v.(map[string]any)
	out := make(Nested, len(m))
	for owner, children := range m {
		out[owner] = collection(children)
	}
	return out
}

func photos(v any) Nested {
	m, _ := v.(map[string]any)
	out := make(Nested, len(m))
	for id, rec := range m {
		a := toAttrs(rec)
		if a == nil {
			continue
		}
		if isPhotoRecord(a) {
			out[id] = Collection{flatPhotoKey: a}
			continue
		}
		out[id] = collection(rec)
	}
	return out
}
