package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
)

const minimalExport = `{
  "studios": {"s1": {"studio_name": "Core", "instructors": {"i1": {}}, "students": {"st1": {}}}},
  "instructors": {"i1": {"email": "a@b.com", "user_id": "u1", "created_date": "1700000000"}},
  "students": {"st1": {"email": "c@d.com", "user_id": "u2", "created_date": "1700000000"}},
  "lessons": {},
  "notebooks": {"st1": {"n1": {"studio_id": "s1", "entries": {"e1": true}}}},
  "entries": {"e1": {"title": "first"}, "e2": {"title": "orphan"}},
  "photos": {"st1": {"p1": {"studio_id": "s1", "path": "progress/p1.jpg"}}}
}`

func TestParse_Valid(t *testing.T) {
	doc, err := Parse([]byte(minimalExport), ImportAllKeys)
	require.NoError(t, err)

	assert.Len(t, doc.Studios, 1)
	assert.Equal(t, "Core", doc.Studios["s1"].String("studio_name"))
	assert.True(t, doc.Has(KeyPhotos))
	assert.False(t, doc.Has(KeyExerciseDataLists))
	assert.Empty(t, doc.ExerciseDataLists)

	owners := doc.EntryOwners()
	assert.Equal(t, NotebookRef{StudentID: "st1", NotebookID: "n1"}, owners["e1"])
	_, orphan := owners["e2"]
	assert.False(t, orphan)
	assert.Equal(t, "s1", doc.Notebook(owners["e1"]).String("studio_id"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		required []string
		wantErr  string
	}{
		{name: "malformed", input: `{"studios":`, required: ImportAllKeys, wantErr: "malformed JSON"},
		{name: "array top level", input: `[]`, required: ImportAllKeys, wantErr: "malformed JSON"},
		{name: "null top level", input: `null`, required: ImportAllKeys, wantErr: "Invalid JSON structure"},
		{name: "missing keys", input: `{"studios": {}}`, required: ImportAllKeys, wantErr: "missing required keys: instructors, students, lessons, notebooks, entries"},
		{name: "wrong type", input: `{"exerciseDataLists": [1, 2]}`, required: ExercisesKeys, wantErr: "Invalid JSON structure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), tt.required)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, migerr.Is(err, migerr.KindFatal))
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), ImportAllKeys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source file not found")
	assert.True(t, migerr.Aborts(err))
}

func TestLoad_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(minimalExport), 0o644))

	doc, err := Load(path, ImagesKeys)
	require.NoError(t, err)
	assert.Len(t, doc.Students, 1)
}

func TestPhotoRecords_NestedAndFlat(t *testing.T) {
	input := `{
	  "students": {},
	  "photos": {
	    "st2": {"p9": {"studio_id": "s1", "url": "https://x/p9.jpg"}, "p3": {"studio_id": "s1", "path": "a.jpg"}},
	    "pflat": {"student_id": "st1", "studio_id": "s2", "path": "b.jpg"}
	  }
	}`
	doc, err := Parse([]byte(input), ImagesKeys)
	require.NoError(t, err)

	got := doc.PhotoRecords()
	require.Len(t, got, 3)
	assert.Equal(t, Photo{StudentID: "st1", PhotoID: "pflat", Attrs: got[0].Attrs}, got[0])
	assert.Equal(t, "st2", got[1].StudentID)
	assert.Equal(t, "p3", got[1].PhotoID)
	assert.Equal(t, "p9", got[2].PhotoID)
}
