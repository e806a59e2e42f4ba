package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePanels(t *testing.T, path string, f *PanelSetsFile) {
	t.Helper()
	require.NoError(t, WritePanelSetsFile(path, f))
}

func TestWatcherRequiresPathAndCallback(t *testing.T) {
	_, err := NewPanelSetsWatcher(PanelSetsWatcherConfig{}, nil, func(*PanelSetsFile) error { return nil })
	assert.Error(t, err)

	_, err = NewPanelSetsWatcher(PanelSetsWatcherConfig{FilePath: "x.yaml"}, nil, nil)
	assert.Error(t, err)
}

func TestWatcherInitialLoadInvokesCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panels.yaml")
	writePanels(t, path, DefaultPanelSets())

	loaded := make(chan *PanelSetsFile, 4)
	w, err := NewPanelSetsWatcher(
		PanelSetsWatcherConfig{FilePath: path, DebounceMillis: 50},
		nil,
		func(f *PanelSetsFile) error {
			loaded <- f
			return nil
		},
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	select {
	case f := <-loaded:
		assert.Equal(t, PanelSetsVersion, f.Version)
		assert.Len(t, f.Standard, 5)
	case <-time.After(2 * time.Second):
		t.Fatal("initial callback never fired")
	}
}

func TestWatcherReloadsOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panels.yaml")
	writePanels(t, path, DefaultPanelSets())

	loaded := make(chan *PanelSetsFile, 4)
	w, err := NewPanelSetsWatcher(
		PanelSetsWatcherConfig{FilePath: path, DebounceMillis: 50},
		nil,
		func(f *PanelSetsFile) error {
			loaded <- f
			return nil
		},
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	<-loaded

	updated := DefaultPanelSets()
	updated.Standard = updated.Standard[:2]
	writePanels(t, path, updated)

	select {
	case f := <-loaded:
		assert.Len(t, f.Standard, 2)
	case <-time.After(3 * time.Second):
		t.Fatal("reload callback never fired after file change")
	}
}

func TestWatcherKeepsPreviousConfigOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panels.yaml")
	writePanels(t, path, DefaultPanelSets())

	loaded := make(chan *PanelSetsFile, 4)
	w, err := NewPanelSetsWatcher(
		PanelSetsWatcherConfig{FilePath: path, DebounceMillis: 50},
		nil,
		func(f *PanelSetsFile) error {
			loaded <- f
			return nil
		},
	)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()
	<-loaded

	require.NoError(t, os.WriteFile(path, []byte("version: 42\n"), 0600))

	// The invalid config must not reach the callback
	select {
	case f := <-loaded:
		t.Fatalf("callback fired with invalid config: %+v", f)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherStartFailsOnMissingFile(t *testing.T) {
	w, err := NewPanelSetsWatcher(
		PanelSetsWatcherConfig{FilePath: filepath.Join(t.TempDir(), "nope.yaml")},
		nil,
		func(*PanelSetsFile) error { return nil },
	)
	require.NoError(t, err)

	assert.Error(t, w.Start(context.Background()))
}
