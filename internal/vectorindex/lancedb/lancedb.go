// Package lancedb is the secondary, disk-columnar VectorIndex backend
// (§B DOMAIN STACK), adapted from the teacher's vectordb/v1/lancedb —
// as copied, that file depended on a vectordb/v1/schema package absent
// from the teacher repo itself and had no Delete method at all; this
// rewrite keeps its Arrow record-building idiom (one table per user,
// mirroring the chromem backend's one-collection-per-user) and
// retargets it at the core's own VectorIndex contract (§4.3).
package lancedb

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	lancedb "github.com/aqua777/go-lancedb"

	"github.com/Klarline/academe/internal/apperrors"
	vectorindex "github.com/Klarline/academe/internal/vectorindex"
)

// Store is a VectorIndex backend over LanceDB, one table per user_id.
type Store struct {
	conn *lancedb.Connection

	mu     sync.Mutex
	tables map[string]*lancedb.Table
}

func Open(uri string) (*Store, error) {
	conn, err := lancedb.Connect(uri)
	if err != nil {
		return nil, fmt.Errorf("connect lancedb: %w", err)
	}
	return &Store{conn: conn, tables: map[string]*lancedb.Table{}}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tables {
		t.Close()
	}
	return s.conn.Close()
}

func tableName(userID string) string { return "user_" + userID }

func (s *Store) table(userID string) (*lancedb.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableName(userID)]
	return t, ok
}

func arrowSchema(dim int) *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "metadata", Type: arrow.BinaryTypes.String},
		{Name: "embedding", Type: arrow.FixedSizeListOf(int32(dim), arrow.PrimitiveTypes.Float32)},
	}, nil)
}

func (s *Store) Upsert(ctx context.Context, userID, chunkID string, vector []float32, metadata map[string]string) error {
	if len(vector) == 0 {
		return apperrors.New(apperrors.InputInvalid, "empty embedding for chunk "+chunkID, nil)
	}
	// LanceDB upsert-by-id is modelled as delete-then-append, since a
	// single chunk_id must remain idempotent across re-ingests (§4.3).
	_ = s.Delete(ctx, userID, []string{chunkID})

	pool := memory.NewGoAllocator()
	sch := arrowSchema(len(vector))
	builder := array.NewRecordBuilder(pool, sch)
	defer builder.Release()

	idBuilder := builder.Field(0).(*array.StringBuilder)
	metaBuilder := builder.Field(1).(*array.StringBuilder)
	embBuilder := builder.Field(2).(*array.FixedSizeListBuilder)
	embValueBuilder := embBuilder.ValueBuilder().(*array.Float32Builder)

	idBuilder.Append(chunkID)
	metaBuilder.Append(encodeMetadata(metadata))
	embBuilder.Append(true)
	for _, v := range vector {
		embValueBuilder.Append(v)
	}

	record := builder.NewRecord()
	defer record.Release()

	name := tableName(userID)
	s.mu.Lock()
	t, ok := s.tables[name]
	s.mu.Unlock()

	if !ok {
		var err error
		t, err = s.conn.CreateTable(name)
		if err != nil {
			return apperrors.Wrap(apperrors.DependencyUnavailable, err)
		}
		if err := t.Add(record, lancedb.AddModeOverwrite); err != nil {
			return apperrors.Wrap(apperrors.DependencyUnavailable, err)
		}
		s.mu.Lock()
		s.tables[name] = t
		s.mu.Unlock()
		return nil
	}

	if err := t.Add(record, lancedb.AddModeAppend); err != nil {
		return apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, userID string, queryVector []float32, k int, filter vectorindex.Filter) ([]vectorindex.ScoredChunk, error) {
	t, ok := s.table(userID)
	if !ok {
		return nil, nil
	}

	q := t.Query().NearestTo(queryVector).Limit(k)
	if where := whereClause(filter); where != "" {
		q = q.Where(where)
	}

	results, err := q.Execute()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}

	var out []vectorindex.ScoredChunk
	for _, record := range results {
		idCol := record.Column(0).(*array.String)
		distIndex := -1
		for i, f := range record.Schema().Fields() {
			if f.Name == "_distance" {
				distIndex = i
				break
			}
		}
		for i := 0; i < int(record.NumRows()); i++ {
			score := 0.0
			if distIndex != -1 {
				distCol := record.Column(distIndex).(*array.Float32)
				// LanceDB's _distance for cosine is (1 - cos); convert to
				// the same [0,1] (1+cos)/2 scale the rest of the core uses.
				cos := 1 - float64(distCol.Value(i))
				score = (1 + cos) / 2
			}
			out = append(out, vectorindex.ScoredChunk{ChunkID: idCol.Value(i), Score: score})
		}
		record.Release()
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, userID string, chunkIDs []string) error {
	t, ok := s.table(userID)
	if !ok || len(chunkIDs) == 0 {
		return nil
	}
	where := ""
	for i, id := range chunkIDs {
		if i > 0 {
			where += " OR "
		}
		where += fmt.Sprintf("id = '%s'", id)
	}
	if err := t.Delete(where); err != nil {
		return apperrors.Wrap(apperrors.DependencyUnavailable, err)
	}
	return nil
}

func whereClause(filter vectorindex.Filter) string {
	where := ""
	first := true
	for k, v := range filter {
		if !first {
			where += " AND "
		}
		where += fmt.Sprintf("metadata LIKE '%%\"%s\":\"%s\"%%'", k, v)
		first = false
	}
	return where
}

func encodeMetadata(m map[string]string) string {
	s := "{"
	first := true
	for k, v := range m {
		if !first {
			s += ","
		}
		s += fmt.Sprintf("%q:%q", k, v)
		first = false
	}
	return s + "}"
}

var _ vectorindex.VectorIndex = (*Store)(nil)
