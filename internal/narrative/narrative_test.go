package narrative

import (
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
	"github.com/KaramelBytes/autolysis/internal/analysis"
	"github.com/KaramelBytes/autolysis/internal/dataset"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	resp *ai.GenerateResponse
	err  error
	got  ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.got = req
	return f.resp, f.err
}

func summary(t *testing.T) (*analysis.Summary, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(p, []byte("id,value\n1,10\n2,20\n3,\n"), 0o644))
	l, err := dataset.NewLoader(dataset.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)
	tbl, err := l.Load(p)
	require.NoError(t, err)
	s, err := analysis.Summarize(tbl)
	require.NoError(t, err)
	return s, p
}

func cfg() Config { return Config{Model: "gpt-4o-mini", Temperature: 0.7, MaxPromptTokens: 3000} }

func TestNarrateSuccess(t *testing.T) {
	s, p := summary(t)
	rt := &fakeRuntime{resp: &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: "Sales rose."}}}}}

	n := New(rt, cfg(), zerolog.Nop()).Narrate(context.Background(), s, p)
	assert.True(t, n.Available)
	assert.Equal(t, "Sales rose.", n.Text)

	require.Len(t, rt.got.Messages, 2)
	assert.Equal(t, "system", rt.got.Messages[0].Role)
	assert.Equal(t, "gpt-4o-mini", rt.got.Model)
	assert.Equal(t, 0.7, rt.got.Temperature)
	user := rt.got.Messages[1].Content
	assert.Equal(t, 1, strings.Count(user, "sales.csv"), user)
	assert.Contains(t, user, "File: sales.csv")
	assert.Contains(t, user, "[MISSING VALUES]")
	assert.NotContains(t, user, filepath.Dir(p))
}

func TestNarrateDisabled(t *testing.T) {
	s, p := summary(t)
	n := New(nil, cfg(), zerolog.Nop()).Narrate(context.Background(), s, p)
	assert.False(t, n.Available)
	assert.Equal(t, "narration disabled", n.Reason)
}

func TestNarrateEmptyChoices(t *testing.T) {
	s, p := summary(t)
	rt := &fakeRuntime{resp: &ai.GenerateResponse{}}
	n := New(rt, cfg(), zerolog.Nop()).Narrate(context.Background(), s, p)
	assert.False(t, n.Available)
	assert.Empty(t, n.Text)
	assert.NotEmpty(t, n.Reason)
}

func TestNarrateTransportError(t *testing.T) {
	s, p := summary(t)
	rt := &fakeRuntime{err: errors.New("dial tcp: connection refused")}
	n := New(rt, cfg(), zerolog.Nop()).Narrate(context.Background(), s, p)
	assert.False(t, n.Available)
	assert.Equal(t, "the service request failed", n.Reason)
}

func TestNarrateServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "down"}})
	}))
	defer srv.Close()

	s, p := summary(t)
	client := ai.NewClient("token", srv.URL, 2*time.Second)
	n := New(client, cfg(), zerolog.Nop()).Narrate(context.Background(), s, p)
	assert.False(t, n.Available)
	assert.Equal(t, "the service returned HTTP 500", n.Reason)
}

func TestNarrateAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s, p := summary(t)
	n := New(ai.NewClient("bad", srv.URL, 2*time.Second), cfg(), zerolog.Nop()).Narrate(context.Background(), s, p)
	assert.Equal(t, "the API credential was rejected", n.Reason)
}

func TestPromptTruncated(t *testing.T) {
	s, p := summary(t)
	c := cfg()
	c.MaxPromptTokens = 10
	got := New(nil, c, zerolog.Nop()).prompt(s, p)
	assert.LessOrEqual(t, len([]rune(got)), 40)
	assert.True(t, strings.HasPrefix(got, "[DATASET SUMMARY]"))
}

func TestPromptUsesPathWhenSummaryHasNoSource(t *testing.T) {
	s, _ := summary(t)
	s.Source = ""
	got := New(nil, cfg(), zerolog.Nop()).prompt(s, "/data/orders.csv")
	assert.Equal(t, 1, strings.Count(got, "orders.csv"))
	assert.Contains(t, got, "File: orders.csv")
}
