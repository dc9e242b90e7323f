package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/neatdrive/simulator/internal/config"
	"github.com/neatdrive/simulator/internal/report"
	"github.com/neatdrive/simulator/internal/storage"
	"github.com/neatdrive/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

func readDocument(t *testing.T, path string, compressed bool) report.SimulationData {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var data report.SimulationData
	if compressed {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		require.NoError(t, json.NewDecoder(gz).Decode(&data))
	} else {
		require.NoError(t, json.NewDecoder(f).Decode(&data))
	}
	return data
}

func result(n int) *core.GenerationResult {
	return &core.GenerationResult{
		Generation:    n,
		MaxFitness:    float64(n),
		AvgFitness:    float64(n) / 4,
		Crashes:       n + 1,
		LeaderSensors: [5]int{9, 8, 7, 6, 5},
		Agents: []core.AgentResult{
			{Fitness: 0.3, Speed: 6, Heading: 10, Path: []core.Position2D{{X: 0, Y: 0}, {X: 5, Y: 0}}},
		},
	}
}

func TestStartRun_AssignsIDs(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, report.Options{MaxHistory: 10})
	require.NoError(t, b.Init())

	r1 := &core.Run{}
	require.NoError(t, b.StartRun(r1, &core.Track{}))
	require.NoError(t, b.EndRun())
	r2 := &core.Run{}
	require.NoError(t, b.StartRun(r2, &core.Track{ID: 7}))

	assert.Equal(t, uint(1), r1.ID)
	assert.Equal(t, uint(2), r2.ID)
	require.NoError(t, b.Close())
}

func TestRecordGeneration_NoRun(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, report.Options{})
	assert.Error(t, b.RecordGeneration(result(0)))
	assert.Error(t, b.EndRun())
}

func TestRecordGeneration_WritesDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	b := New(config.MemoryConfig{OutputDir: dir}, report.Options{IncludeSensors: true, MaxHistory: 10})
	require.NoError(t, b.StartRun(&core.Run{}, &core.Track{}))

	require.NoError(t, b.RecordGeneration(result(0)))
	require.NoError(t, b.RecordGeneration(result(1)))

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, report.DataFileName), path)

	data := readDocument(t, path, false)
	assert.Equal(t, 1, data.Generation)
	assert.Equal(t, []float64{0, 1}, data.FitnessHistory)
	assert.Equal(t, []int{1, 2}, data.CrashHistory)
	assert.Equal(t, [][5]int{{9, 8, 7, 6, 5}}, data.SensorData)
	require.Len(t, data.DetailedPathData, 1)
	assert.Equal(t, [][2]float64{{0, 0}, {5, 0}}, data.DetailedPathData[0].Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestEndRun_Compressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true}, report.Options{MaxHistory: 10})
	require.NoError(t, b.StartRun(&core.Run{}, &core.Track{}))
	require.NoError(t, b.RecordGeneration(result(2)))
	require.NoError(t, b.EndRun())

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, report.DataFileName+".gz"), path)

	data := readDocument(t, path, true)
	assert.Equal(t, 2, data.Generation)
	assert.Empty(t, data.SensorData)
	assert.Equal(t, 1, b.History().Len())
}

func TestWriteDocument_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, WriteDocument(path, map[string]int{"a": 1}, false))
	require.NoError(t, WriteDocument(path, map[string]int{"a": 2}, false))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(raw))
}
