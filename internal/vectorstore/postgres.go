package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"study-rag/internal/config"
	apperr "study-rag/internal/pkg/errors"
)

// DefaultEmbeddingDimensions matches nomic-embed-text, the default
// embedding model.
const DefaultEmbeddingDimensions = 768

type chunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string `bun:"id,pk"`
	FileID        string `bun:"file_id,notnull"`
	ChunkIndex    int    `bun:"chunk_index,notnull"`
	Content       string `bun:"content,notnull"`
	Model         string `bun:"embedding_model"`
	Embedding     string `bun:"embedding,notnull"`
}

// PostgresStore keeps chunk embeddings in a pgvector table, for
// deployments that already run Postgres instead of the embedded store.
// The vector column dimensionality follows the configured embedding
// model; switching models with a different width needs a fresh table.
type PostgresStore struct {
	db  *bun.DB
	dim int
}

func NewPostgresStore(cfg *config.DatabaseConfig, dimensions int) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required for the postgres vector store")
	}
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	s := &PostgresStore{db: db, dim: dimensions}
	if err := s.init(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, chunkTableDDL(s.dim))
	return err
}

func chunkTableDDL(dim int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
	id text PRIMARY KEY,
	file_id text NOT NULL,
	chunk_index integer NOT NULL,
	content text NOT NULL,
	embedding_model text,
	embedding vector(%d) NOT NULL
)`, dim)
}

func (s *PostgresStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]chunkRow, len(records))
	for i, rec := range records {
		rows[i] = chunkRow{
			ID:         rec.ID,
			FileID:     rec.FileID,
			ChunkIndex: rec.Index,
			Content:    rec.Content,
			Model:      rec.Model,
			Embedding:  vectorLiteral(rec.Embedding),
		}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content, embedding = EXCLUDED.embedding, embedding_model = EXCLUDED.embedding_model").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	lit := vectorLiteral(embedding)

	var rows []struct {
		chunkRow
		Score float32 `bun:"score"`
	}
	err := s.db.NewSelect().
		Model((*chunkRow)(nil)).
		Column("id", "file_id", "chunk_index", "content", "embedding_model").
		ColumnExpr("1 - (embedding <=> ?::vector) AS score", lit).
		OrderExpr("embedding <=> ?::vector", lit).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}

	out := make([]Result, 0, len(rows))
	for _, r := range rows {
		out = append(out, Result{
			ChunkID: r.ID,
			FileID:  r.FileID,
			Content: r.Content,
			Score:   r.Score,
			Metadata: map[string]string{
				"file_id":         r.FileID,
				"chunk_index":     strconv.Itoa(r.ChunkIndex),
				"embedding_model": r.Model,
			},
		})
	}
	return out, nil
}

func (s *PostgresStore) DeleteByFile(ctx context.Context, fileID string) error {
	_, err := s.db.NewDelete().
		Model((*chunkRow)(nil)).
		Where("file_id = ?", fileID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*chunkRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return count, nil
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.db.NewTruncateTable().Model((*chunkRow)(nil)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// vectorLiteral renders the pgvector input format: [0.1,0.2,...]
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
