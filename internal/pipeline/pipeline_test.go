package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/autolysis/internal/ai"
	"github.com/KaramelBytes/autolysis/internal/config"
	"github.com/KaramelBytes/autolysis/internal/dataset"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "id,value\n1,10\n2,20\n3,\n"

func writeDataset(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func testConfig() *config.Global {
	c := config.Defaults()
	c.APIKey = "test-token"
	c.ImageWidthIn = 3
	c.ImageHeightIn = 2
	return c
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "unavailable"}})
			return
		}
		_ = json.NewEncoder(w).Encode(ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: content}}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, cfg *config.Global, rt ai.Runtime, dataPath, outDir string) (*Result, error) {
	t.Helper()
	p, err := New(cfg, rt, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	return p.Run(context.Background(), dataPath, outDir)
}

func TestRunEndToEnd(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "Values double with id.")
	cfg := testConfig()
	data := writeDataset(t, "sample.csv", sample)
	out := filepath.Join(t.TempDir(), "out")

	res, err := run(t, cfg, ai.NewClient(cfg.APIKey, srv.URL, 2*time.Second), data, out)
	require.NoError(t, err)
	require.NoError(t, res.ReportErr)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, 2, res.Summary.Shape.Cols)
	assert.Equal(t, 1, res.Summary.NullCounts["value"])
	require.Len(t, res.Artifacts, 3)
	for _, a := range res.Artifacts {
		assert.FileExists(t, a.Path)
		assert.Equal(t, out, filepath.Dir(a.Path))
	}
	assert.FileExists(t, filepath.Join(out, "sample_heatmap.png"))

	assert.Equal(t, filepath.Join(out, "README.md"), res.ReportPath)
	md, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	text := string(md)
	assert.Contains(t, text, "Values double with id.")
	assert.Equal(t, 3, strings.Count(text, "!["))
	assert.Contains(t, text, "(sample_heatmap.png)")
}

func TestRunNarrativeFailureStillWritesReport(t *testing.T) {
	srv := chatServer(t, http.StatusInternalServerError, "")
	cfg := testConfig()
	out := t.TempDir()

	res, err := run(t, cfg, ai.NewClient(cfg.APIKey, srv.URL, 2*time.Second), writeDataset(t, "sample.csv", sample), out)
	require.NoError(t, err)
	assert.False(t, res.Narrative.Available)
	md, err := os.ReadFile(filepath.Join(out, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "_Narrative unavailable: the service returned HTTP 500._")
	assert.Equal(t, 3, strings.Count(string(md), "!["))
}

func TestRunNarrationDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Narrate = false
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	res, err := run(t, cfg, ai.NewClient("k", srv.URL, time.Second), writeDataset(t, "sample.csv", sample), t.TempDir())
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, "narration disabled", res.Narrative.Reason)
}

func TestRunCategoricalOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Narrate = false
	out := t.TempDir()
	res, err := run(t, cfg, nil, writeDataset(t, "people.csv", "name,city\na,x\nb,y\n"), out)
	require.NoError(t, err)
	assert.Empty(t, res.Artifacts)
	md, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.NotContains(t, string(md), "![")
}

func TestRunMissingDatasetIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Narrate = false
	out := t.TempDir()
	_, err := run(t, cfg, nil, filepath.Join(out, "nope.csv"), out)
	var le *dataset.DataLoadError
	require.True(t, errors.As(err, &le))
	_, statErr := os.Stat(filepath.Join(out, "README.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunOutputDirUnusable(t *testing.T) {
	cfg := testConfig()
	cfg.Narrate = false
	blocker := writeDataset(t, "file", "x")
	_, err := run(t, cfg, nil, writeDataset(t, "sample.csv", sample), filepath.Join(blocker, "out"))
	require.Error(t, err)
}

func TestRunReportWriteFailureIsNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.Narrate = false
	out := t.TempDir()
	// a non-empty directory named README.md cannot be replaced by a file
	require.NoError(t, os.MkdirAll(filepath.Join(out, "README.md", "keep"), 0o755))

	res, err := run(t, cfg, nil, writeDataset(t, "sample.csv", sample), out)
	require.NoError(t, err)
	assert.Error(t, res.ReportErr)
	assert.Empty(t, res.ReportPath)
	assert.Len(t, res.Artifacts, 3)
}

func TestRunStageLogsCarryRunID(t *testing.T) {
	cfg := testConfig()
	cfg.Narrate = false
	var buf bytes.Buffer
	p, err := New(cfg, nil, zerolog.New(&buf))
	require.NoError(t, err)
	res, err := p.Run(context.Background(), writeDataset(t, "sample.csv", sample), t.TempDir())
	require.NoError(t, err)

	components := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		assert.Equal(t, res.RunID, rec["run_id"], line)
		if c, ok := rec["component"].(string); ok {
			components[c] = true
		}
	}
	assert.True(t, components["loader"], "loader logged")
	assert.True(t, components["visualizer"], "visualizer logged")
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Encodings = []string{"klingon"}
	_, err := New(cfg, nil, zerolog.Nop())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.ImageFormat = "bmp"
	_, err = New(cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "goodreads", Prefix("/data/goodreads.csv"))
	assert.Equal(t, "dataset", Prefix("/data/.csv"))
}
