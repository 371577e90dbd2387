package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": false, "b": false}, got)

	var changes []Change
	store.Watch(func(c Change) { changes = append(changes, c) })

	require.NoError(t, store.Set(ctx, "a", true))
	require.NoError(t, store.Set(ctx, "a", false))
	require.NoError(t, store.Set(ctx, "b", true))

	got, err = store.Get(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": false, "b": true}, got)

	require.Len(t, changes, 3)
	assert.Equal(t, Change{Key: "a", Value: true, Previous: false}, changes[0])
	assert.Equal(t, Change{Key: "a", Value: false, Previous: true}, changes[1])
}

func TestSQLiteStore_SharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	writer, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reader.Close()

	require.NoError(t, writer.Set(ctx, "p_fullerWindows", true))

	got, err := reader.Get(ctx, "p_fullerWindows")
	require.NoError(t, err)
	assert.True(t, got["p_fullerWindows"])
	assert.Equal(t, path, reader.Path())
}

func TestSQLiteStore_ConcurrentWritersWait(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	engine, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer engine.Close()
	popup, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer popup.Close()

	var journal string
	require.NoError(t, popup.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)
	var timeout int
	require.NoError(t, popup.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)

	// the engine holds the write lock
	tx, err := engine.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "INSERT INTO settings (key, value) VALUES ('p_wideScreen', 1)")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- popup.Set(ctx, "p_fullerWindows", true) }()

	select {
	case err := <-done:
		t.Fatalf("write did not wait for the lock: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, tx.Commit())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("write never completed")
	}

	got, err := engine.Get(ctx, "p_wideScreen", "p_fullerWindows")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"p_wideScreen": true, "p_fullerWindows": true}, got)
}

func TestSQLiteStore_EmptyGet(t *testing.T) {
	store, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
