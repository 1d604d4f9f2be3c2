package btreecfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freyjadb/btreeengine/pkg/btree"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "btreecfg_test")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "nested", "config.yaml")
	cfg := &btree.Config{
		KVChunkThreshold:   512,
		KPChunkThreshold:   1024,
		EnablePurging:      true,
		TolerateCorruption: true,
		Compacting:         false,
	}

	require.NoError(t, Save(cfg, path))
	assert.FileExists(t, path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}
