package chunkstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Klarline/academe/internal/apperrors"
	"github.com/Klarline/academe/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	source_type TEXT NOT NULL,
	page_count INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	text TEXT NOT NULL,
	page INTEGER NOT NULL,
	section_title TEXT NOT NULL,
	parent_id TEXT NOT NULL,
	doc_title TEXT NOT NULL,
	is_parent INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(document_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_chunks_user ON chunks(user_id);

CREATE TABLE IF NOT EXISTS propositions (
	id TEXT PRIMARY KEY,
	chunk_id TEXT NOT NULL,
	text TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_propositions_chunk ON propositions(chunk_id);

CREATE TABLE IF NOT EXISTS triples (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	subject TEXT NOT NULL,
	predicate TEXT NOT NULL,
	object TEXT NOT NULL,
	UNIQUE(user_id, subject, predicate, object)
);
CREATE INDEX IF NOT EXISTS idx_triples_user_subject ON triples(user_id, subject);

CREATE TABLE IF NOT EXISTS feedback (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	query_id TEXT NOT NULL,
	chunk_id TEXT NOT NULL,
	rating TEXT NOT NULL,
	comment TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_chunk ON feedback(chunk_id);

CREATE TABLE IF NOT EXISTS user_versions (
	user_id TEXT PRIMARY KEY,
	version INTEGER NOT NULL
);
`

// SQLiteStore is the ChunkStore backed by modernc.org/sqlite (cgo-free,
// chosen over the pack's sibling mattn/go-sqlite3 — see DESIGN.md).
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite-backed ChunkStore at path (":memory:"
// for an ephemeral store, e.g. in tests).
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialise writers, matches §5's single-document-txn model
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) bumpVersion(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_versions(user_id, version) VALUES(?, 1)
		ON CONFLICT(user_id) DO UPDATE SET version = version + 1`, userID)
	return err
}

func (s *SQLiteStore) DocSetVersion(ctx context.Context, userID string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM user_versions WHERE user_id = ?`, userID).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Internal, err)
	}
	return v, nil
}

func (s *SQLiteStore) PutDocument(ctx context.Context, doc model.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents(id, user_id, title, source_type, page_count, status, created_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, source_type=excluded.source_type,
			page_count=excluded.page_count, status=excluded.status`,
		doc.ID, doc.UserID, doc.Title, string(doc.SourceType), doc.PageCount, string(doc.Status), doc.CreatedAt.Unix())
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	if err := s.bumpVersion(ctx, tx, doc.UserID); err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetDocumentStatus(ctx context.Context, documentID string, status model.DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status = ? WHERE id = ?`, string(status), documentID)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperrors.New(apperrors.NotFound, "document not found: "+documentID, nil)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (model.Document, error) {
	var d model.Document
	var createdAt int64
	var sourceType, status string
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, title, source_type, page_count, status, created_at FROM documents WHERE id = ?`, documentID).
		Scan(&d.ID, &d.UserID, &d.Title, &sourceType, &d.PageCount, &status, &createdAt)
	if err == sql.ErrNoRows {
		return model.Document{}, apperrors.New(apperrors.NotFound, "document not found: "+documentID, nil)
	}
	if err != nil {
		return model.Document{}, apperrors.Wrap(apperrors.Internal, err)
	}
	d.SourceType = model.SourceType(sourceType)
	d.Status = model.DocumentStatus(status)
	d.CreatedAt = time.Unix(createdAt, 0)
	return d, nil
}

func (s *SQLiteStore) PutChunks(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks(id, document_id, user_id, ordinal, text, page, section_title, parent_id, doc_title, is_parent)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET text=excluded.text, ordinal=excluded.ordinal`)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		isParent := 0
		if c.IsParentRecord {
			isParent = 1
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.UserID, c.Ordinal, c.Text, c.Page, c.SectionTitle, c.ParentID, c.DocTitle, isParent); err != nil {
			return apperrors.Wrap(apperrors.Internal, err)
		}
	}
	if err := s.bumpVersion(ctx, tx, chunks[0].UserID); err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	return tx.Commit()
}

func scanChunk(row interface {
	Scan(dest ...interface{}) error
}) (model.Chunk, error) {
	var c model.Chunk
	var isParent int
	err := row.Scan(&c.ID, &c.DocumentID, &c.UserID, &c.Ordinal, &c.Text, &c.Page, &c.SectionTitle, &c.ParentID, &c.DocTitle, &isParent)
	c.IsParentRecord = isParent != 0
	return c, err
}

func (s *SQLiteStore) GetChunk(ctx context.Context, chunkID string) (model.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, document_id, user_id, ordinal, text, page, section_title, parent_id, doc_title, is_parent FROM chunks WHERE id = ?`, chunkID)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return model.Chunk{}, apperrors.New(apperrors.NotFound, "chunk not found: "+chunkID, nil)
	}
	if err != nil {
		return model.Chunk{}, apperrors.Wrap(apperrors.Internal, err)
	}
	return c, nil
}

// GetAdjacent returns chunks sharing document_id with ordinals in
// [ord-window, ord+window], sorted by ordinal (§4.2).
func (s *SQLiteStore) GetAdjacent(ctx context.Context, chunkID string, window int) ([]model.Chunk, error) {
	center, err := s.GetChunk(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	lo, hi := center.Ordinal-window, center.Ordinal+window
	if lo < 0 {
		lo = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, user_id, ordinal, text, page, section_title, parent_id, doc_title, is_parent
		FROM chunks WHERE document_id = ? AND ordinal BETWEEN ? AND ? AND is_parent = 0
		ORDER BY ordinal ASC`, center.DocumentID, lo, hi)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) GetParent(ctx context.Context, chunkID string) (model.Chunk, error) {
	child, err := s.GetChunk(ctx, chunkID)
	if err != nil {
		return model.Chunk{}, err
	}
	if child.ParentID == "" {
		return model.Chunk{}, apperrors.New(apperrors.NotFound, "chunk has no parent: "+chunkID, nil)
	}
	return s.GetChunk(ctx, child.ParentID)
}

func (s *SQLiteStore) ListChunksByUser(ctx context.Context, userID string) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, user_id, ordinal, text, page, section_title, parent_id, doc_title, is_parent
		FROM chunks WHERE user_id = ? AND is_parent = 0`, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLiteStore) PutPropositions(ctx context.Context, props []model.Proposition) error {
	if len(props) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO propositions(id, chunk_id, text) VALUES(?,?,?)`)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	defer stmt.Close()
	for _, p := range props {
		if _, err := stmt.ExecContext(ctx, p.ID, p.ChunkID, p.Text); err != nil {
			return apperrors.Wrap(apperrors.Internal, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) PutTriples(ctx context.Context, triples []model.KGTriple) error {
	if len(triples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO triples(id, user_id, doc_id, chunk_id, subject, predicate, object)
		VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	defer stmt.Close()
	for _, t := range triples {
		if _, err := stmt.ExecContext(ctx, t.ID, t.UserID, t.DocID, t.ChunkID, t.Subject, t.Predicate, t.Object); err != nil {
			return apperrors.Wrap(apperrors.Internal, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) TriplesFor(ctx context.Context, userID string, subjects []string) ([]model.KGTriple, error) {
	if len(subjects) == 0 {
		return nil, nil
	}
	q := `SELECT id, user_id, doc_id, chunk_id, subject, predicate, object FROM triples WHERE user_id = ? AND subject IN (`
	args := []interface{}{userID}
	for i, s := range subjects {
		if i > 0 {
			q += ","
		}
		q += "?"
		args = append(args, s)
	}
	q += ")"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	defer rows.Close()

	var out []model.KGTriple
	for rows.Next() {
		var t model.KGTriple
		if err := rows.Scan(&t.ID, &t.UserID, &t.DocID, &t.ChunkID, &t.Subject, &t.Predicate, &t.Object); err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLiteStore) PutFeedback(ctx context.Context, fb model.Feedback) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback(id, user_id, query_id, chunk_id, rating, comment, created_at)
		VALUES(?,?,?,?,?,?,?)`, fb.ID, fb.UserID, fb.QueryID, fb.ChunkID, string(fb.Rating), fb.Comment, fb.CreatedAt.Unix())
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, err)
	}
	return nil
}

// feedbackBoostCap is the maximum relevance boost a chunk's feedback
// history can add to its fused retrieval score (§C supplement).
const feedbackBoostCap = 0.1

// FeedbackBoost computes (ups-downs)/(ups+downs) per chunk, scaled to
// [-feedbackBoostCap, +feedbackBoostCap].
func (s *SQLiteStore) FeedbackBoost(ctx context.Context, chunkIDs []string) (map[string]float64, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(chunkIDs))
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT chunk_id, rating, COUNT(*) FROM feedback
		WHERE chunk_id IN (%s)
		GROUP BY chunk_id, rating`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	defer rows.Close()

	type tally struct{ up, down int }
	tallies := map[string]*tally{}
	for rows.Next() {
		var chunkID, rating string
		var count int
		if err := rows.Scan(&chunkID, &rating, &count); err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, err)
		}
		t, ok := tallies[chunkID]
		if !ok {
			t = &tally{}
			tallies[chunkID] = t
		}
		if model.FeedbackRating(rating) == model.FeedbackUp {
			t.up += count
		} else {
			t.down += count
		}
	}

	boosts := make(map[string]float64, len(tallies))
	for chunkID, t := range tallies {
		total := t.up + t.down
		if total == 0 {
			continue
		}
		boosts[chunkID] = feedbackBoostCap * float64(t.up-t.down) / float64(total)
	}
	return boosts, nil
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) ([]string, error) {
	doc, err := s.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	var chunkIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperrors.Wrap(apperrors.Internal, err)
		}
		chunkIDs = append(chunkIDs, id)
	}
	rows.Close()

	for _, id := range chunkIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM propositions WHERE chunk_id = ?`, id); err != nil {
			return nil, apperrors.Wrap(apperrors.Internal, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM triples WHERE doc_id = ?`, documentID); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	if err := s.bumpVersion(ctx, tx, doc.UserID); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	return chunkIDs, nil
}

func (s *SQLiteStore) ReapStuckProcessing(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents WHERE status = ? AND created_at < ?`, string(model.StatusProcessing), cutoff)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperrors.Wrap(apperrors.Internal, err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := s.SetDocumentStatus(ctx, id, model.StatusFailed); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

var _ ChunkStore = (*SQLiteStore)(nil)
