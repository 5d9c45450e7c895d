package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
	"github.com/nabijung/thepilatesapp-sub000/internal/source"
)

const export = `{
  "studios": {"s1": {"studio_name": "Core", "created_date": "1690000000", "instructors": {"i1": {}}, "students": {"st1": {}}}},
  "instructors": {"i1": {"email": "a@b.com", "user_id": "u1", "created_date": "1700000000", "studios": {"s1": true}}},
  "students": {"st1": {"email": "c@d.com", "user_id": "u2", "created_date": "1700000000", "studios_attending": {"s1": {"lessons": {"l1": true}}}}},
  "lessons": {"l1": {"studio_id": "s1", "name": "Hundred"}},
  "notebooks": {"st1": {"n1": {"studio_id": "s1", "entries": {"e1": true}}}},
  "entries": {"e1": {"title": "week 1"}}
}`

type env struct {
	dir    string
	export string
	logs   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")
	t.Setenv("DATABASE_URL", "")
	return &env{dir: dir, export: path, logs: filepath.Join(dir, "logs")}
}

// execute runs the root command with flags that isolate it in e.dir.
// Persistent flags keep their values between runs, so every flag a test
// depends on is passed explicitly.
func (e *env) execute(dryRun bool, args ...string) error {
	root := NewRootCommand()
	flags := []string{
		"--env-file", filepath.Join(e.dir, "missing.env"),
		"--log-dir", e.logs,
		"--mappings", filepath.Join(e.dir, "id-mappings.json"),
		"--no-color",
	}
	if dryRun {
		flags = append(flags, "--dry-run")
	} else {
		flags = append(flags, "--dry-run=false")
	}
	root.SetArgs(append(args, flags...))
	return root.ExecuteContext(context.Background())
}

func TestImportAll_DryRun(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.execute(true, "import-all", e.export))

	summary, err := os.ReadFile(filepath.Join(e.logs, "import-all-summary.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "script: import-all")
	assert.Contains(t, string(summary), "dry_run: true")
	assert.Contains(t, string(summary), "name: entries")
	assert.FileExists(t, filepath.Join(e.logs, "import-all.log"))
	assert.NoFileExists(t, filepath.Join(e.dir, "id-mappings.json"))
}

func TestImportAll_MissingSourceIsFatal(t *testing.T) {
	e := newEnv(t)

	err := e.execute(true, "import-all", filepath.Join(e.dir, "nope.json"))
	require.Error(t, err)
	assert.True(t, migerr.Aborts(err))
	assert.Contains(t, err.Error(), "source file not found")
}

func TestCommands_RequireSupabaseConfig(t *testing.T) {
	e := newEnv(t)
	t.Setenv("SUPABASE_URL", "")

	for _, args := range [][]string{
		{"import-all", e.export},
		{"import-exercises", e.export},
		{"import-images", e.export},
		{"cleanup-imported"},
	} {
		t.Run(args[0], func(t *testing.T) {
			err := e.execute(false, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "SUPABASE_URL")
		})
	}
}

func TestImportImages_RejectsDryRun(t *testing.T) {
	e := newEnv(t)

	err := e.execute(true, "import-images", e.export)
	require.Error(t, err)
	assert.True(t, migerr.Is(err, migerr.KindPrecondition))
}

func TestImportImages_NeedsMappingsFile(t *testing.T) {
	e := newEnv(t)

	err := e.execute(false, "import-images", e.export)
	require.Error(t, err)
	assert.True(t, migerr.Is(err, migerr.KindPrecondition))
	assert.Contains(t, err.Error(), "mappings file not found")
}

func TestExtractSample_WithoutSupabaseConfig(t *testing.T) {
	e := newEnv(t)
	t.Setenv("SUPABASE_URL", "")
	out := filepath.Join(e.dir, "sample.json")

	require.NoError(t, e.execute(false, "extract-sample", e.export, "--out", out, "--studios", "1", "--per-studio", "1"))

	doc, err := source.Load(out, source.ImportAllKeys)
	require.NoError(t, err)
	assert.Len(t, doc.Studios, 1)
	assert.Len(t, doc.Students, 1)
	assert.Len(t, doc.Entries, 1)
	assert.FileExists(t, filepath.Join(e.logs, "extract-sample-summary.yaml"))
}
