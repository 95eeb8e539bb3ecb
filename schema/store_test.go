package schema_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/neoql/schema"
)

func TestStore(t *testing.T) {
	first, err := schema.Parse("a.graphql", `type Movie @node { title: String }`)
	require.NoError(t, err)
	second, err := schema.Parse("b.graphql", `type Show @node { name: String }`)
	require.NoError(t, err)

	st := schema.NewStore(first)
	assert.Same(t, first, st.Load())
	assert.Equal(t, uint64(1), st.Version())

	snapshot := st.Load()
	assert.Same(t, first, st.Swap(second))
	assert.Same(t, second, st.Load())
	assert.Equal(t, uint64(2), st.Version())
	assert.Contains(t, snapshot.Types, "Movie", "snapshots outlive swaps")

	assert.Panics(t, func() { st.Swap(nil) })
}

type reload struct {
	s   *schema.Schema
	err error
}

// watch starts watching path and returns the channel reload outcomes are
// delivered on.
func watch(t *testing.T, st *schema.Store, path string) <-chan reload {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	reloads := make(chan reload, 256)
	go func() {
		done <- schema.Watch(ctx, st, path,
			schema.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			schema.WithReloadHook(func(s *schema.Schema, err error) {
				reloads <- reload{s, err}
			}),
		)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return reloads
}

// rewrite writes content to path until a reload satisfying done is
// reported, since the watcher may not be registered yet when the first
// write happens.
func rewrite(t *testing.T, path, content string, reloads <-chan reload, done func(reload) bool) reload {
	t.Helper()
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		// Replace the file atomically so reloads never see a partial write.
		tmp := path + ".tmp"
		require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
		require.NoError(t, os.Rename(tmp, path))
		select {
		case r := <-reloads:
			if done(r) {
				return r
			}
		case <-tick.C:
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

// settle drains reloads until none arrives for a while.
func settle(reloads <-chan reload) {
	for {
		select {
		case <-reloads:
		case <-time.After(300 * time.Millisecond):
			return
		}
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.graphql")
	require.NoError(t, os.WriteFile(path, []byte(`type Movie @node { title: String }`), 0o600))
	s, err := schema.Load(path)
	require.NoError(t, err)
	st := schema.NewStore(s)
	reloads := watch(t, st, path)

	r := rewrite(t, path, `type Show @node { name: String }`, reloads, func(r reload) bool { return r.err == nil })
	assert.Contains(t, r.s.Types, "Show")

	settle(reloads)
	cur := st.Load()
	assert.Contains(t, cur.Types, "Show")
	r = rewrite(t, path, `type Broken @node @limit(default: 9, max: 1) { name: String }`, reloads, func(r reload) bool { return r.err != nil })
	assert.Nil(t, r.s)
	assert.Same(t, cur, st.Load(), "a failed reload keeps the previous version")
}
