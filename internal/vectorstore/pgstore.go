package vectorstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

const DefaultTable = "quizzify_chunks"

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PGStore stores one collection in a PostgreSQL table with the pgvector
// extension. Several collections can share a table.
type PGStore struct {
	pool       *pgxpool.Pool
	table      string
	collection string
	dimensions int
}

// OpenPG connects to databaseURL, installs the vector extension and creates
// the table if needed.
func OpenPG(ctx context.Context, databaseURL, table, collection string, dimensions int) (*PGStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	// The extension has to exist before pool connections can register the
	// vector type.
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PGStore{pool: pool, table: table, collection: collection, dimensions: dimensions}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the chunk table and its indexes.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id uuid PRIMARY KEY,
	collection text NOT NULL,
	content text NOT NULL,
	metadata jsonb NOT NULL DEFAULT '{}',
	embedding vector(%d) NOT NULL
)`, s.table, s.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_collection_idx ON %s (collection)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PGStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, collection, content, metadata, embedding) VALUES ($1, $2, $3, $4, $5)`, s.table)

	batch := &pgx.Batch{}
	for _, d := range docs {
		meta := d.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		batch.Queue(query, d.ID, s.collection, d.Content, meta, pgvector.NewVector(d.Embedding))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert %d documents: %w", len(docs), err)
	}
	return nil
}

// Search returns the k nearest documents by cosine distance, computed by the
// database.
func (s *PGStore) Search(ctx context.Context, vec []float32, k int) ([]ScoredDocument, error) {
	query := fmt.Sprintf(`SELECT id::text, content, metadata, embedding <=> $2 AS distance
FROM %s WHERE collection = $1 ORDER BY embedding <=> $2 LIMIT $3`, s.table)

	rows, err := s.pool.Query(ctx, query, s.collection, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var out []ScoredDocument
	for rows.Next() {
		var (
			d        ScoredDocument
			distance float64
		)
		if err := rows.Scan(&d.ID, &d.Content, &d.Metadata, &distance); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		d.Score = relevance(distance)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return out, nil
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE collection = $1`, s.table), s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *PGStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE collection = $1`, s.table), s.collection); err != nil {
		return fmt.Errorf("reset collection %s: %w", s.collection, err)
	}
	return nil
}

// relevance maps cosine distance in [0, 2] onto [0, 1].
func relevance(distance float64) float64 {
	r := 1 - distance/2
	return max(0, min(1, r))
}
