package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/config"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/signal"
	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/telemetry"
)

const sampleYAML = `
telemetry:
  chunkIntervalUs: 250000
slots:
  - instance: ping
    signal: signal_pong
    defaultTimeoutMs: 10
    queueCapacity: 1024
    parameters:
      - name: counter
        type: int
        required: true
    results:
      - name: echo
        type: string
        required: false
`

func TestLoadAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	doc, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Slots, 1)
	assert.Equal(t, int64(250000), doc.Telemetry.ChunkIntervalUs)
	assert.NotEmpty(t, doc.Checksum())

	handler := signal.NewHandler(telemetry.NewHandler(telemetry.NoopSession{}), nil)
	require.NoError(t, config.Apply(doc, handler))

	inst, err := handler.GetInstance("ping")
	require.NoError(t, err)
	slot, ok := inst.GetSlot("signal_pong")
	require.True(t, ok)
	assert.Equal(t, 1024, slot.GetTotalCapacity())
}

func TestApplyRejectsDuplicateSignalOnReapply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	doc, err := config.Load(path)
	require.NoError(t, err)

	handler := signal.NewHandler(telemetry.NewHandler(telemetry.NoopSession{}), nil)
	require.NoError(t, config.Apply(doc, handler))
	assert.Error(t, config.Apply(doc, handler))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestHotReloaderEmitsInitialThenModified(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	reloader, err := config.NewHotReloader(path)
	require.NoError(t, err)
	defer reloader.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	changes, errs := reloader.Watch(ctx)

	select {
	case change := <-changes:
		assert.Equal(t, config.ChangeInitial, change.Type)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial change")
	}

	modified := sampleYAML + "\n# touch\n"
	require.NoError(t, os.WriteFile(path, []byte(modified), 0o644))

	select {
	case change := <-changes:
		assert.Equal(t, config.ChangeModified, change.Type)
		assert.NotEmpty(t, change.PreviousChecksum)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(4 * time.Second):
		t.Fatal("timed out waiting for modified change")
	}
}
