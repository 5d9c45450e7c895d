package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-key")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://abc.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, "id-mappings.json", cfg.MappingsFile)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "images", cfg.Storage.Bucket)
	assert.Equal(t, 5, cfg.Images.Concurrency)
	assert.Equal(t, 3, cfg.Images.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Images.DownloadTimeout)
	assert.False(t, cfg.Storage.UseS3())
	assert.False(t, cfg.Firebase.UseGCS())
}

func TestValidate_MissingSupabase(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "both missing",
			cfg:     Config{Images: ImagesConfig{Concurrency: 1}},
			wantErr: "SUPABASE_URL, SUPABASE_SERVICE_ROLE_KEY",
		},
		{
			name:    "key missing",
			cfg:     Config{SupabaseURL: "https://x", Images: ImagesConfig{Concurrency: 1}},
			wantErr: "SUPABASE_SERVICE_ROLE_KEY",
		},
		{
			name:    "bad concurrency",
			cfg:     Config{SupabaseURL: "https://x", ServiceRoleKey: "k"},
			wantErr: "IMAGE_CONCURRENCY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_URLs(t *testing.T) {
	cfg := Config{SupabaseURL: "https://abc.supabase.co", Storage: StorageConfig{Bucket: "images"}}

	assert.Equal(t, "https://abc.supabase.co/rest/v1", cfg.RESTURL())
	assert.Equal(t, "https://abc.supabase.co/storage/v1", cfg.StorageURL())
	assert.Equal(t,
		"https://abc.supabase.co/storage/v1/object/public/images/profile/7/avatar.jpg",
		cfg.PublicObjectURL("/profile/7/avatar.jpg"),
	)
}

func TestLoadEnvFiles_LocalOverrides(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, ".env")
	local := filepath.Join(dir, ".env.local")
	require.NoError(t, os.WriteFile(base, []byte("MIGRATE_TEST_A=base\nMIGRATE_TEST_B=base\n"), 0o644))
	require.NoError(t, os.WriteFile(local, []byte("MIGRATE_TEST_B=local\n"), 0o644))

	t.Setenv("MIGRATE_TEST_A", "")
	t.Setenv("MIGRATE_TEST_B", "")
	os.Unsetenv("MIGRATE_TEST_A")
	os.Unsetenv("MIGRATE_TEST_B")

	require.NoError(t, LoadEnvFiles(base, local, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "base", os.Getenv("MIGRATE_TEST_A"))
	assert.Equal(t, "local", os.Getenv("MIGRATE_TEST_B"))
}
