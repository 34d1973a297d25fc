package cli_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/uploadwiz/internal/ledger"
)

// seedLedger writes entries into the default ledger under home.
func seedLedger(t *testing.T, home string, entries ...*ledger.Entry) {
	t.Helper()
	store, err := ledger.NewFileStore(filepath.Join(home, "ledger"), true)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, store.Put(e))
	}
}

func entry(key string, size int64, stashedAgo, expiresIn time.Duration) *ledger.Entry {
	now := time.Now()
	return &ledger.Entry{
		Key:       key,
		Bucket:    "media",
		Digest:    digest.FromString(key),
		Size:      size,
		ItemID:    "item-" + key,
		Source:    key + ".jpg",
		StashedAt: now.Add(-stashedAgo),
		ExpiresAt: now.Add(expiresIn),
	}
}

func TestStashList(t *testing.T) {
	home := isolate(t)
	seedLedger(t, home,
		entry("a", 300, 3*time.Hour, 45*time.Hour),
		entry("b", 100, 2*time.Hour, 46*time.Hour),
		entry("c", 2000, time.Hour, -time.Minute),
	)

	t.Run("table in stash order", func(t *testing.T) {
		out := mustExecute(t, "stash", "list")
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 4)
		assert.True(t, strings.HasPrefix(lines[0], "KEY"))
		assert.True(t, strings.HasPrefix(lines[1], "a "))
		assert.True(t, strings.HasPrefix(lines[3], "c "))
		assert.Contains(t, lines[3], "expired")
		assert.Contains(t, lines[3], "2,000")
	})

	t.Run("json sorted and paged", func(t *testing.T) {
		out := mustExecute(t, "stash", "list", "--sort", "size:desc", "--page", "1", "--page-size", "2", "-o", "json")

		var got struct {
			Entries []struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"entries"`
			Pagination struct {
				TotalItems int  `json:"total_items"`
				TotalPages int  `json:"total_pages"`
				HasNext    bool `json:"has_next"`
			} `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.Len(t, got.Entries, 2)
		assert.Equal(t, "c", got.Entries[0].Key)
		assert.Equal(t, "a", got.Entries[1].Key)
		assert.Equal(t, 3, got.Pagination.TotalItems)
		assert.Equal(t, 2, got.Pagination.TotalPages)
		assert.True(t, got.Pagination.HasNext)
	})

	t.Run("limit and offset", func(t *testing.T) {
		out := mustExecute(t, "stash", "list", "--limit", "1", "--offset", "1")
		assert.Contains(t, out, "b.jpg")
		assert.NotContains(t, out, "a.jpg")
		assert.Contains(t, out, "Showing 1 of 3 receipts")
	})

	t.Run("invalid sort field", func(t *testing.T) {
		_, err := execute(t, "stash", "list", "--sort", "colour")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid sort field")
	})

	t.Run("invalid output", func(t *testing.T) {
		_, err := execute(t, "stash", "list", "-o", "xml")
		require.Error(t, err)
	})
}

func TestStashList_Empty(t *testing.T) {
	isolate(t)
	out := mustExecute(t, "stash", "list")
	assert.Contains(t, out, "No stash receipts.")
}

func TestStashShow(t *testing.T) {
	home := isolate(t)
	seedLedger(t, home, entry("live", 10, time.Hour, time.Hour), entry("old", 10, time.Hour, -time.Hour))

	out := mustExecute(t, "stash", "show", "live")
	assert.Contains(t, out, `"key": "live"`)

	out = mustExecute(t, "stash", "show", "old")
	assert.Contains(t, out, "has expired")
	assert.Contains(t, out, `"key": "old"`)

	_, err := execute(t, "stash", "show", "missing")
	require.ErrorIs(t, err, ledger.ErrEntryNotFound)
}

func TestStashPrune(t *testing.T) {
	home := isolate(t)
	seedLedger(t, home,
		entry("keep", 1, time.Hour, time.Hour),
		entry("drop1", 1, time.Hour, -time.Hour),
		entry("drop2", 1, time.Hour, -time.Minute),
	)

	out := mustExecute(t, "stash", "prune")
	assert.Contains(t, out, "Removed 2 expired receipts")

	store, err := ledger.NewFileStore(filepath.Join(home, "ledger"), true)
	require.NoError(t, err)
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStash_LedgerDisabled(t *testing.T) {
	home := isolate(t)
	writeGlobalConfig(t, home, "ledger:\n  enabled: false\n")

	_, err := execute(t, "stash", "list")
	require.ErrorIs(t, err, ledger.ErrLedgerDisabled)
}
