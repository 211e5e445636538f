package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RerunsOnWrite(t *testing.T) {
	file := filepath.Join(t.TempDir(), "query.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	w, err := New(file, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func() error {
			calls.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, os.WriteFile(file, []byte(`{"a":1}`), 0o644))
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	// Other files in the directory are ignored.
	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(file), "other.json"), []byte(`{}`), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, calls.Load())

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_InitialError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "query.json")
	require.NoError(t, os.WriteFile(file, []byte(`{}`), 0o644))

	w, err := New(file, 0)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, DefaultDelay, w.delay)

	boom := errors.New("boom")
	assert.ErrorIs(t, w.Run(context.Background(), func() error { return boom }), boom)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "query.json"), 0)
	assert.Error(t, err)
}
