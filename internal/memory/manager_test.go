package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcelens/sourcelens/internal/embed"
	"github.com/sourcelens/sourcelens/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	mgr := NewManager(st, embed.NewFakeEmbedder(32), "proj1")
	return mgr, st
}

func TestManager_Memorize_ValidatesTitleAndContent(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Memorize(ctx, MemorizeInput{Title: "hi", Content: "short but valid content here"})
	assert.Error(t, err, "title under 5 runes should be rejected")

	_, err = mgr.Memorize(ctx, MemorizeInput{Title: "valid title", Content: "x"})
	assert.Error(t, err, "content under 10 runes should be rejected")

	mem, err := mgr.Memorize(ctx, MemorizeInput{
		Title:   "Use fastembed for offline CI",
		Content: "The CI runner has no network access so fastembed must be the default.",
		Type:    "decision",
		Tags:    []string{"ci", "embeddings"},
	})
	require.NoError(t, err)
	assert.Equal(t, store.MemoryTypeDecision, mem.Type)
	assert.NotEmpty(t, mem.Vector)
}

func TestManager_Memorize_NormalizesUnknownType(t *testing.T) {
	mgr, _ := newTestManager(t)
	mem, err := mgr.Memorize(context.Background(), MemorizeInput{
		Title:   "Something worth remembering",
		Content: "This has no recognizable type string attached to it.",
		Type:    "not-a-real-type",
	})
	require.NoError(t, err)
	assert.Equal(t, store.MemoryTypeInsight, mem.Type)
}

func TestManager_Memorize_CapsTagsAndFiles(t *testing.T) {
	mgr, _ := newTestManager(t)
	tags := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		tags = append(tags, "tag")
	}
	files := make([]string, 0, 25)
	for i := 0; i < 25; i++ {
		files = append(files, "file.go")
	}
	mem, err := mgr.Memorize(context.Background(), MemorizeInput{
		Title:   "Capping behavior under test",
		Content: "Duplicate tags and files must be deduplicated and capped.",
		Tags:    tags,
		Files:   files,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(mem.Tags), MaxTags)
	assert.LessOrEqual(t, len(mem.Files), MaxFiles)
}

func TestManager_Remember_ReturnsMostSimilar(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Memorize(ctx, MemorizeInput{Title: "Postgres connection pool sizing", Content: "Keep pool size under 20 connections per instance for this workload."})
	require.NoError(t, err)
	_, err = mgr.Memorize(ctx, MemorizeInput{Title: "Frontend bundle splitting", Content: "Use route-based code splitting to keep the initial bundle under 200kb."})
	require.NoError(t, err)

	results, err := mgr.Remember(ctx, "Postgres connection pool sizing", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestManager_RememberMulti_FusesByMaxRelevance(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	mem1, err := mgr.Memorize(ctx, MemorizeInput{Title: "Retry budget for flaky network calls", Content: "Cap retries at 3 with exponential backoff starting at 250ms."})
	require.NoError(t, err)

	results, err := mgr.RememberMulti(ctx, []string{"Retry budget for flaky network calls", "unrelated query about CSS layout"}, 5)
	require.NoError(t, err)

	var found bool
	for _, r := range results {
		if r.ID == mem1.ID {
			found = true
		}
	}
	assert.True(t, found, "memory matched by one of the fused queries should be present")
}

func TestManager_Forget_RemovesMemory(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	mem, err := mgr.Memorize(ctx, MemorizeInput{Title: "Temporary note to forget", Content: "This note should be removed by the test."})
	require.NoError(t, err)

	require.NoError(t, mgr.Forget(ctx, mem.ID))

	_, err = mgr.store.GetMemory(ctx, mem.ID)
	assert.Error(t, err)
}

func TestManager_ForgetMatching_ByTag(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Memorize(ctx, MemorizeInput{Title: "Tagged memory one", Content: "First memory tagged with stale.", Tags: []string{"stale"}})
	require.NoError(t, err)
	_, err = mgr.Memorize(ctx, MemorizeInput{Title: "Tagged memory two", Content: "Second memory tagged with stale.", Tags: []string{"stale"}})
	require.NoError(t, err)
	_, err = mgr.Memorize(ctx, MemorizeInput{Title: "Untagged memory", Content: "This one keeps no matching tag at all."})
	require.NoError(t, err)

	count, err := mgr.ForgetMatching(ctx, []string{"stale"}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestManager_UpdateMemory_ReembedsOnContentChange(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	mem, err := mgr.Memorize(ctx, MemorizeInput{Title: "Original title text", Content: "Original content worth keeping around for a while."})
	require.NoError(t, err)
	originalVec := mem.Vector

	newContent := "Completely different content about something else entirely."
	updated, err := mgr.UpdateMemory(ctx, mem.ID, UpdateInput{Content: &newContent})
	require.NoError(t, err)
	assert.NotEqual(t, originalVec, updated.Vector)
}

func TestManager_Relate_And_GetRelatedMemories(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	a, err := mgr.Memorize(ctx, MemorizeInput{Title: "Decision about retries", Content: "We chose exponential backoff for all retries."})
	require.NoError(t, err)
	b, err := mgr.Memorize(ctx, MemorizeInput{Title: "Followup on retry decision", Content: "This elaborates on the earlier retry backoff decision."})
	require.NoError(t, err)

	require.NoError(t, mgr.Relate(ctx, a.ID, b.ID, store.MemoryElaborates))

	related, err := mgr.GetRelatedMemories(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, b.ID, related[0].ID)
}

func TestManager_Cleanup_RemovesLowScoreMemories(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Memorize(ctx, MemorizeInput{Title: "Low importance scratch note", Content: "Not very important, should be cleaned up readily.", Importance: 0.01})
	require.NoError(t, err)
	_, err = mgr.Memorize(ctx, MemorizeInput{Title: "High importance architectural decision", Content: "Very important, should survive cleanup easily.", Importance: 0.95})
	require.NoError(t, err)

	removed, err := mgr.Cleanup(ctx, 0.1, 365)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := mgr.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCount)
}

func TestManager_ClearAll(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Memorize(ctx, MemorizeInput{Title: "One of several memories", Content: "Content for the first of several test memories."})
	require.NoError(t, err)
	_, err = mgr.Memorize(ctx, MemorizeInput{Title: "Another of several memories", Content: "Content for the second of several test memories."})
	require.NoError(t, err)

	count, err := mgr.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
