package consensus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWeights(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWeightRegistryLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	writeWeights(t, path, `
weights:
  indicator: 1.5
  Sentiment: 0.5
  copytrade: -2
`)

	r, err := NewWeightRegistry(path)
	require.NoError(t, err)

	table := r.Table()
	assert.Equal(t, 1.5, table.Of("indicator"))
	assert.Equal(t, 0.5, table.Of("sentiment"))
	assert.Equal(t, 0.0, table.Of("copytrade"))
	assert.Equal(t, 1.0, table.Of("pattern"))
	assert.Equal(t, int64(1), r.Snapshot().Version)
}

func TestWeightRegistryRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	writeWeights(t, path, `
weights:
  indicator: 1.0
extra_section:
  oops: true
`)
	_, err := NewWeightRegistry(path)
	assert.Error(t, err)
}

func TestWeightRegistryMissingFile(t *testing.T) {
	_, err := NewWeightRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestWeightRegistryHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	writeWeights(t, path, "weights:\n  indicator: 1.0\n")

	r, err := NewWeightRegistry(path)
	require.NoError(t, err)

	changed := make(chan Snapshot, 1)
	r.AddListener(func(s Snapshot) {
		select {
		case changed <- s:
		default:
		}
	})

	writeWeights(t, path, "weights:\n  indicator: 3.0\n")

	select {
	case snap := <-changed:
		assert.Equal(t, 3.0, snap.Table.Of("indicator"))
		assert.Greater(t, snap.Version, int64(1))
	case <-time.After(5 * time.Second):
		t.Skip("fs notifications not delivered in this environment")
	}
}
