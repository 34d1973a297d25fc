package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/uploadwiz/internal/config"
	"github.com/rshade/uploadwiz/internal/engine/batch"
	"github.com/rshade/uploadwiz/internal/ledger"
	"github.com/rshade/uploadwiz/internal/transport"
	"github.com/rshade/uploadwiz/internal/upload"
)

// memStasher keeps stashed bodies in memory.
type memStasher struct {
	mu       sync.Mutex
	bodies   map[string][]byte
	metadata map[string]map[string]string
}

func newMemStasher() *memStasher {
	return &memStasher{bodies: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (s *memStasher) Bucket() string { return "media" }

func (s *memStasher) Stash(_ context.Context, req transport.StashRequest, progress transport.ProgressFunc) (transport.StashResult, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return transport.StashResult{}, err
	}
	progress(int64(len(data)))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[req.Key] = data
	return transport.StashResult{Bucket: "media", Key: req.Key, ETag: `"etag"`, Size: int64(len(data))}, nil
}

func (s *memStasher) UpdateMetadata(_ context.Context, key string, metadata map[string]string, _ transport.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bodies[key]; !ok {
		return errors.New("no such object")
	}
	s.metadata[key] = metadata
	return nil
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvProjectDir, "")
	t.Setenv(config.EnvBucket, "media")
	t.Setenv(config.EnvMaxConcurrent, "")
	config.ResetGlobalConfigForTest()
	config.SetResolvedProjectDir("")
	t.Cleanup(config.ResetGlobalConfigForTest)
}

func fakeBackends(t *testing.T, stasher transport.Stasher, store *ledger.FileStore) backends {
	t.Helper()
	return backends{
		tokens: func(context.Context, *config.Config) (transport.TokenProvider, error) {
			return transport.NewStaticTokenProvider(transport.Token{AccessKeyID: "AKID", SecretAccessKey: "secret"}), nil
		},
		stasher: func(context.Context, *config.Config) (transport.Stasher, error) { return stasher, nil },
		ledger:  func(*config.Config) (*ledger.FileStore, error) { return store, nil },
	}
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runUploadCmd(t *testing.T, deps backends, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newUploadCmdWith(deps)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--no-tui"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestUpload_AllComplete(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	a := writeSource(t, dir, "a.txt", "alpha")
	b := writeSource(t, dir, "b.txt", "bravo!")

	stasher := newMemStasher()
	store, err := ledger.NewFileStore(t.TempDir(), true)
	require.NoError(t, err)

	out, err := runUploadCmd(t, fakeBackends(t, stasher, store),
		"--concurrency", "1", "--author", "Ada", "--meta", "caption=Harbour", a, b)
	require.NoError(t, err, out)

	assert.Contains(t, out, "==> deed (2 items)")
	assert.Contains(t, out, "<== deed: 2 of 2 complete, 0 failed, 0 aborted")
	assert.Contains(t, out, "Uploaded 2 of 2 items (0 failed, 0 aborted)")

	require.Len(t, stasher.bodies, 2)
	for key, meta := range stasher.metadata {
		assert.Equal(t, "Harbour", meta["caption"], key)
		assert.Equal(t, "Ada", meta[transport.MetaDeedAuthor], key)
		assert.Equal(t, "cc-by-sa-4.0", meta[transport.MetaDeedID], key)
	}

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.ElementsMatch(t, []string{a, b}, []string{entries[0].Source, entries[1].Source})
}

func TestUpload_FailureDoesNotStopSiblings(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	good := writeSource(t, dir, "good.txt", "ok")
	missing := filepath.Join(dir, "missing.txt")

	stasher := newMemStasher()
	store, err := ledger.NewFileStore("", false)
	require.NoError(t, err)

	out, err := runUploadCmd(t, fakeBackends(t, stasher, store), missing, good)

	var exitErr *BatchExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitCodeIncomplete, exitErr.ExitCode)
	assert.Equal(t, 1, exitErr.Failed)
	assert.Equal(t, 0, exitErr.Aborted)

	assert.Contains(t, out, "Uploaded 1 of 2 items (1 failed, 0 aborted)")
	assert.Contains(t, out, missing)
	assert.Len(t, stasher.bodies, 1)
}

func TestUpload_InvalidFlags(t *testing.T) {
	isolate(t)
	deps := fakeBackends(t, newMemStasher(), nil)

	_, err := runUploadCmd(t, deps, "--concurrency", "0", "a.txt")
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "upload.max_concurrent")

	_, err = runUploadCmd(t, deps, "--meta", "novalue", "a.txt")
	require.ErrorIs(t, err, ErrInvalidMeta)

	_, err = runUploadCmd(t, deps)
	require.Error(t, err, "at least one source is required")
}

func TestParseMeta(t *testing.T) {
	meta, err := parseMeta([]string{"caption=a=b", " k =", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"caption": "a=b", "k": "", "empty": ""}, meta)

	_, err = parseMeta([]string{"=v"})
	require.ErrorIs(t, err, ErrInvalidMeta)
}

func TestAborter(t *testing.T) {
	items := buildItems([]string{"a.jpg", "https://example.org/b.png"}, upload.Deed{ID: "cc0"}, nil)
	ran := 0
	ab := &aborter{items: items}
	factory := ab.guard(func(*upload.Item) batch.Operation {
		return func(context.Context) error {
			ran++
			return nil
		}
	})

	require.NoError(t, factory(items[0])(context.Background()))
	assert.Equal(t, 1, ran)

	ab.abortAll()
	ab.abortAll()
	for _, item := range items {
		assert.Equal(t, upload.StateAborted, item.State())
	}
	err := factory(items[1])(context.Background())
	require.ErrorIs(t, err, upload.ErrUserAborted)
	assert.Equal(t, 1, ran, "guarded operations do not run after abort")
}

func TestTallyItems(t *testing.T) {
	done := upload.NewItem("done", "a")
	done.Begin()
	done.Settle(nil)
	failed := upload.NewItem("failed", "b")
	failed.Begin()
	failed.Settle(errors.New("boom"))
	aborted := upload.NewItem("aborted", "c")
	aborted.Abort()
	pending := upload.NewItem("pending", "d")

	s := tallyItems([]*upload.Item{done, failed, aborted, pending})
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Aborted)

	var buf bytes.Buffer
	printUploadSummary(&buf, []*upload.Item{done, failed}, s, 0)
	assert.Contains(t, buf.String(), "Uploaded 1 of 4 items (2 failed, 1 aborted)")
	assert.True(t, strings.Contains(buf.String(), "failed b: boom"))
}
