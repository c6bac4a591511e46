package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkTableDDLUsesConfiguredDimension(t *testing.T) {
	ddl := chunkTableDDL(1024)
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS chunks")
	require.Contains(t, ddl, "vector(1024)")

	require.Contains(t, chunkTableDDL(DefaultEmbeddingDimensions), "vector(768)")
}
