package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const link = "https://contoso-my.sharepoint.com/:x:/g/personal/ops/abc?e=1"

func TestParseRunConfig_Defaults(t *testing.T) {
	rc, err := ParseRunConfig([]byte("anyone_edit_link: " + link + "\n"))
	require.NoError(t, err)

	assert.Equal(t, link, rc.AnyoneEditLink)
	assert.Equal(t, DefaultChunkSize, rc.ChunkSize)
	assert.Equal(t, DefaultFlushThreshold, rc.FlushThreshold)
	assert.Equal(t, DefaultActor, rc.Actor)
	assert.True(t, rc.SaveToSent())
	assert.Empty(t, rc.TableName)
}

func TestParseRunConfig_Overrides(t *testing.T) {
	data := []byte(`
anyone_edit_link: ` + link + `
table_name: Audit
chunk_size: 25
flush_threshold: 10
sends_per_second: 2.5
save_to_sent_items: false
sanitize_html: true
actor: ops@contoso.com
`)
	rc, err := ParseRunConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "Audit", rc.TableName)
	assert.Equal(t, 25, rc.ChunkSize)
	assert.Equal(t, 10, rc.FlushThreshold)
	assert.InDelta(t, 2.5, rc.SendsPerSecond, 0.0001)
	assert.False(t, rc.SaveToSent())
	assert.True(t, rc.SanitizeHTML)
	assert.Equal(t, "ops@contoso.com", rc.Actor)
}

func TestParseRunConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"missing link", "table_name: X\n", ErrLinkRequired},
		{"http link", "anyone_edit_link: http://example.com/x\n", ErrLinkInvalid},
		{"negative chunk", "anyone_edit_link: " + link + "\nchunk_size: -1\n", ErrInvalidChunk},
		{"negative threshold", "anyone_edit_link: " + link + "\nflush_threshold: -5\n", ErrInvalidThreshold},
		{"negative rate", "anyone_edit_link: " + link + "\nsends_per_second: -1\n", ErrInvalidRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRunConfig([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseRunConfig_BadYAML(t *testing.T) {
	_, err := ParseRunConfig([]byte("chunk_size: [1,2"))
	assert.ErrorContains(t, err, "parse run config")
}

func TestLoadRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anyone_edit_link: "+link+"\nflush_threshold: 5\n"), 0o600))

	rc, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, rc.FlushThreshold)

	_, err = LoadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read run config")
}
