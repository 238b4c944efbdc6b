package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhenderson/criticalpy/internal/cpm"
	"github.com/dhenderson/criticalpy/internal/graph"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "critpath.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
[schedule]
sink_policy = "single-sink"
duplicate_ids = "reject"

[diagram]
highlight_color = "#FF0000"

[store]
path = "/tmp/critpath-test.db"

[infer]
model = "claude-haiku-4-5"
max_retries = 5
timeout = "30s"

[log]
level = "debug"
format = "json"
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, validConfig), false)
	require.NoError(t, err)

	assert.Equal(t, "#FF0000", cfg.Diagram.HighlightColor)
	assert.Equal(t, "#FFFFFF", cfg.Diagram.BackgroundColor)
	assert.Equal(t, "/tmp/critpath-test.db", cfg.Store.Path)
	assert.Equal(t, 5, cfg.Infer.MaxRetries)
	assert.Equal(t, 4096, cfg.Infer.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.Infer.Timeout.Duration)

	pc := cfg.ProjectConfig()
	assert.Equal(t, cpm.SingleSink, pc.Sinks)
	assert.Equal(t, graph.RejectDuplicates, pc.Graph.Duplicates)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, validate(cfg))

	pc := cfg.ProjectConfig()
	assert.Equal(t, cpm.AllSinks, pc.Sinks)
	assert.Equal(t, graph.LastWriteWins, pc.Graph.Duplicates)
	// The diagram defaults leave critical nodes indistinguishable.
	assert.Equal(t, cfg.Diagram.BackgroundColor, cfg.Diagram.HighlightColor)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(missing, false)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"sink policy":  "[schedule]\nsink_policy = \"largest-id\"\n",
		"duplicates":   "[schedule]\nduplicate_ids = \"first-wins\"\n",
		"colour":       "[diagram]\nhighlight_color = \"#F00\"\n",
		"log level":    "[log]\nlevel = \"chatty\"\n",
		"log format":   "[log]\nformat = \"xml\"\n",
		"duration":     "[infer]\ntimeout = \"soon\"\n",
		"toml syntax":  "[schedule\n",
		"negative max": "[infer]\nmax_retries = -1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTestConfig(t, content), false)
			assert.Error(t, err)
		})
	}
}

func TestDOTOptions(t *testing.T) {
	cfg := Default()
	cfg.Diagram.HighlightColor = "red"
	opts := cfg.DOTOptions()
	assert.Equal(t, "red", opts.HighlightColor)
	assert.Equal(t, "#FFFFFF", opts.BackgroundColor)
}
