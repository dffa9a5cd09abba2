package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{EnvAPIKey, EnvAPIURL, EnvProject, EnvLogStream, EnvProjectID, EnvPageSize, EnvStoreDir}

// clearEnv unsets every variable Load reads; t.Setenv restores them after
// the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// chdir moves into dir for the rest of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	t.Setenv(EnvAPIKey, "key")
	t.Setenv(EnvAPIURL, "https://api.example.com")
	t.Setenv(EnvProject, "Legal Assistant")
	t.Setenv(EnvLogStream, "production")
	t.Setenv(EnvProjectID, "p1")
	t.Setenv(EnvPageSize, "25")
	t.Setenv(EnvStoreDir, "/tmp/snaps")

	assert.Equal(t, Settings{
		APIKey:    "key",
		APIURL:    "https://api.example.com",
		Project:   "Legal Assistant",
		LogStream: "production",
		ProjectID: "p1",
		PageSize:  25,
		StoreDir:  "/tmp/snaps",
	}, Load(nil))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	s := Load(nil)
	assert.Empty(t, s.APIKey)
	assert.Empty(t, s.Project)
	assert.Equal(t, DefaultPageSize, s.PageSize)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	content := "GALILEO_API_KEY=from-file\nGALILEO_PROJECT=File Project\nGALILEO_PAGE_SIZE=10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0600))

	// Variables already in the environment win over the file.
	t.Setenv(EnvProject, "Env Project")

	s := Load(nil)
	assert.Equal(t, "from-file", s.APIKey)
	assert.Equal(t, "Env Project", s.Project)
	assert.Equal(t, 10, s.PageSize)
}

func TestLoad_WarningsGoToLogger(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv(EnvPageSize, "lots")

	var buf bytes.Buffer
	s := Load(log.New(&buf, "", 0))
	assert.Equal(t, DefaultPageSize, s.PageSize)
	assert.Contains(t, buf.String(), `Invalid value for GALILEO_PAGE_SIZE: "lots"`)
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		want     int
		wantWarn bool
	}{
		{name: "unset", value: "", want: 100},
		{name: "valid", value: "42", want: 42},
		{name: "not a number", value: "lots", want: 100, wantWarn: true},
		{name: "zero", value: "0", want: 100, wantWarn: true},
		{name: "negative", value: "-5", want: 100, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GALILEO_TEST_INT", tt.value)
			var buf bytes.Buffer
			assert.Equal(t, tt.want, getEnvInt(log.New(&buf, "", 0), "GALILEO_TEST_INT", 100))
			assert.Equal(t, tt.wantWarn, buf.Len() > 0)
		})
	}
}
