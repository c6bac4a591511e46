package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore("", "test_collection", true)
	require.NoError(t, err)
	return store
}

func testRecords() []Record {
	return []Record{
		{ID: "a.txt_0", FileID: "a.txt", Index: 0, Content: "supervised learning", Embedding: []float32{1, 0, 0}, Model: "test-model"},
		{ID: "a.txt_1", FileID: "a.txt", Index: 1, Content: "unsupervised learning", Embedding: []float32{0.9, 0.1, 0}, Model: "test-model"},
		{ID: "b.txt_0", FileID: "b.txt", Index: 0, Content: "cooking recipes", Embedding: []float32{0, 0, 1}, Model: "test-model"},
	}
}

func TestQueryOrdersByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, testRecords()))

	hits, err := store.Query(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, "a.txt_0", hits[0].ChunkID)
	require.Equal(t, "b.txt_0", hits[2].ChunkID)
	require.Greater(t, hits[0].Score, hits[2].Score)
	require.Equal(t, "a.txt", hits[0].FileID)
	require.Equal(t, "test-model", hits[0].Metadata["embedding_model"])
}

func TestQueryClampsKToCollectionSize(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, testRecords()))

	hits, err := store.Query(ctx, []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	require.Len(t, hits, 3)
}

func TestQueryEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	hits, err := store.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestDeleteByFileCascadesOnlyThatFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, testRecords()))

	require.NoError(t, store.DeleteByFile(ctx, "a.txt"))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	hits, err := store.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "b.txt_0", hits[0].ChunkID)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Upsert(ctx, testRecords()))

	require.NoError(t, store.Reset(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// The recreated collection accepts new documents.
	require.NoError(t, store.Upsert(ctx, testRecords()[:1]))
	count, err = store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestVectorLiteral(t *testing.T) {
	require.Equal(t, "[1,0.5,-0.25]", vectorLiteral([]float32{1, 0.5, -0.25}))
	require.Equal(t, "[]", vectorLiteral(nil))
}
