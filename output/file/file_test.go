package file

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/reading"
)

func testReading(value float64) reading.Reading {
	return reading.Reading{
		Kind:            "SoilTemp.mIC",
		Room:            1,
		Region:          1,
		Order:           1,
		Priority:        15,
		Value:           value,
		SourceAddress:   "192.168.1.20",
		ObservedAtUTC:   time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC),
		ObservedAtLocal: "2025-06-01 09:30:00",
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ".", cfg.Directory)
	assert.Equal(t, "uecs_log.csv", cfg.Filename)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{Filename: "x.csv"}.Validate())
	assert.Error(t, Config{Directory: "/tmp"}.Validate())
	assert.Error(t, Config{Directory: "/tmp", Filename: "../x.csv"}.Validate())
	assert.NoError(t, Config{Directory: "/tmp", Filename: "x.csv"}.Validate())
}

func TestOutput_AppendsRecords(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	out, err := NewOutput(OutputDeps{Config: Config{Directory: dir}})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, "file", out.Name())
	assert.Equal(t, filepath.Join(dir, DefaultFilename), out.Path())

	ctx := context.Background()
	require.NoError(t, out.Write(ctx, testReading(23.5)))
	require.NoError(t, out.Write(ctx, testReading(24)))

	data, err := os.ReadFile(out.Path())
	require.NoError(t, err)
	assert.Equal(t,
		"2025-06-01 09:30:00,SoilTemp.mIC,1,1,1,15,23.50,192.168.1.20\n"+
			"2025-06-01 09:30:00,SoilTemp.mIC,1,1,1,15,24.00,192.168.1.20\n",
		string(data))

	stats := out.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(len(data)), stats.BytesWritten)
	assert.Zero(t, stats.Errors)
}

func TestOutput_PreservesExistingContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte("earlier\n"), 0o644))

	out, err := NewOutput(OutputDeps{Config: Config{Directory: dir, OpenPerWrite: true, Sync: true}})
	require.NoError(t, err)
	require.NoError(t, out.Write(context.Background(), testReading(1)))
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "earlier\n2025-06-01 09:30:00,SoilTemp.mIC,1,1,1,15,1.00,192.168.1.20\n", string(data))
}

func TestOutput_WriteFailure(t *testing.T) {
	dir := t.TempDir()
	out, err := NewOutput(OutputDeps{Name: "log", Config: Config{Directory: dir}})
	require.NoError(t, err)

	// a directory where the file should be makes open fail
	require.NoError(t, os.Mkdir(out.Path(), 0o755))

	err = out.Write(context.Background(), testReading(1))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSinkWrite))
	assert.True(t, errors.IsTransient(err))
	assert.Contains(t, err.Error(), "log")
	assert.Equal(t, int64(1), out.Stats().Errors)
}

func TestOutput_WriteAfterClose(t *testing.T) {
	out, err := NewOutput(OutputDeps{Config: Config{Directory: t.TempDir()}})
	require.NoError(t, err)
	require.NoError(t, out.Close())

	err = out.Write(context.Background(), testReading(1))
	assert.True(t, stderrors.Is(err, errors.ErrSinkWrite))
	assert.NoError(t, out.Close(), "second close")
}
