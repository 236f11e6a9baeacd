package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolate points HOME at an empty directory and clears credential variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("AIPROXY_TOKEN", "")
	t.Setenv("AUTOLYSIS_API_KEY", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestLoadCredentialFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("AIPROXY_TOKEN", "proxy-token")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "proxy-token", c.APIKey)

	t.Setenv("AUTOLYSIS_API_KEY", "prefixed")
	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", c.APIKey)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte("model: from-file\nimage_format: svg\nencodings: [cp1252]\n"), 0o644))
	t.Setenv("AUTOLYSIS_MODEL", "from-env")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Model)
	assert.Equal(t, "svg", c.ImageFormat)
	assert.Equal(t, []string{"cp1252"}, c.Encodings)
	assert.Equal(t, 60, c.HTTPTimeoutSec)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaultLocation(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".autolysis")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("histogram_bins: 12\n"), 0o644))

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, c.HistogramBins)
}

func TestValidate(t *testing.T) {
	c := Defaults()
	assert.True(t, errors.Is(c.Validate(), ErrMissingCredential))

	c.Narrate = false
	assert.NoError(t, c.Validate())

	c.APIKey = "k"
	c.Narrate = true
	assert.NoError(t, c.Validate())

	bad := *c
	bad.ImageFormat = "bmp"
	assert.Error(t, bad.Validate())

	bad = *c
	bad.Encodings = []string{"klingon"}
	assert.Error(t, bad.Validate())

	bad = *c
	bad.Encodings = nil
	assert.Error(t, bad.Validate())

	bad = *c
	bad.Delimiter = ";;"
	assert.Error(t, bad.Validate())

	bad = *c
	bad.HistogramBins = -1
	assert.Error(t, bad.Validate())
}

func TestDelimiterRune(t *testing.T) {
	c := Defaults()
	assert.Equal(t, rune(0), c.DelimiterRune())
	c.Delimiter = `\t`
	assert.Equal(t, '\t', c.DelimiterRune())
	c.Delimiter = "tab"
	assert.NoError(t, func() error { c.APIKey = "k"; return c.Validate() }())
	assert.Equal(t, '\t', c.DelimiterRune())
	c.Delimiter = ";"
	assert.Equal(t, ';', c.DelimiterRune())
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := Defaults()
	c.Model = "custom"
	got, err := Save(c, p)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	var back Global
	require.NoError(t, yaml.Unmarshal(b, &back))
	assert.Equal(t, *c, back)
}

func TestMasked(t *testing.T) {
	c := Defaults()
	c.APIKey = "sk-abcdef123456"
	m := c.Masked()
	assert.Equal(t, "****3456", m.APIKey)
	assert.Equal(t, "sk-abcdef123456", c.APIKey)
	assert.Equal(t, "****", MaskKey("abc"))
	assert.Equal(t, "", MaskKey(""))
}
