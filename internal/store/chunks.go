package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"sonar/internal/model"
)

// searchSelect is the shared projection for vector search queries. The
// bound parameter $1 is always the query vector.
const searchSelect = `
	SELECT pc.id, pc.page_id, wp.url,
		COALESCE(wp.title,''), wp.domain, COALESCE(wp.author,''),
		wp.published_date, COALESCE(wp.content,''), pc.content,
		1 - (pc.embedding <=> $1) AS score
	FROM page_chunks pc
	JOIN web_pages wp ON wp.id = pc.page_id`

// ReplacePageChunks atomically swaps the chunk set of a page: all
// existing chunks are deleted and the supplied list inserted with
// indices 0..n-1, inside one transaction. A crash or failure leaves the
// prior chunk set intact. chunks and embeddings must be equal length.
func (s *Store) ReplacePageChunks(ctx context.Context, pageID string, chunks []model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("store: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM page_chunks WHERE page_id = $1`, pageID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	const ins = `
		INSERT INTO page_chunks (id, page_id, chunk_index, content, embedding, start_char, end_char, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`
	for i, c := range chunks {
		var emb any
		if embeddings[i] != nil {
			emb = pgvector.NewVector(embeddings[i])
		}
		if _, err := tx.Exec(ctx, ins, newUUID(), pageID, i, c.Content, emb, c.StartChar, c.EndChar); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SearchChunks runs a cosine top-k query over all embedded chunks,
// applying the optional filters, then deduplicates so each page
// appears at most once with its best-scoring chunk.
func (s *Store) SearchChunks(ctx context.Context, queryVec []float32, k int, filters model.SearchFilters) ([]model.SearchResult, error) {
	if len(queryVec) == 0 {
		return nil, errors.New("store: empty query vector")
	}
	if k <= 0 {
		k = 10
	}

	where, args := buildSearchFilters(filters, []any{pgvector.NewVector(queryVec)})
	args = append(args, k)

	q := searchSelect +
		"\n\tWHERE " + where +
		fmt.Sprintf("\n\tORDER BY pc.embedding <=> $1, pc.id\n\tLIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	all, err := scanSearchResults(rows)
	if err != nil {
		return nil, err
	}
	return dedupByPage(all, k), nil
}

// FindSimilarToPage ranks pages near the given one, using the source
// page's first chunk embedding as a stand-in for the whole page. The
// source page is always excluded, its whole domain optionally so. The
// query over-fetches three times k so page-level dedup can still fill
// the requested count.
func (s *Store) FindSimilarToPage(ctx context.Context, pageID string, k int, excludeSameDomain bool) ([]model.SearchResult, error) {
	if k <= 0 {
		k = 10
	}

	var (
		rep    pgvector.Vector
		domain string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT pc.embedding, wp.domain
		FROM page_chunks pc
		JOIN web_pages wp ON wp.id = pc.page_id
		WHERE pc.page_id = $1 AND pc.embedding IS NOT NULL
		ORDER BY pc.chunk_index
		LIMIT 1`, pageID).Scan(&rep, &domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("representative chunk: %w", err)
	}

	args := []any{rep, pageID}
	where := "pc.embedding IS NOT NULL AND wp.id <> $2"
	if excludeSameDomain {
		args = append(args, domain)
		where += fmt.Sprintf(" AND wp.domain <> $%d", len(args))
	}
	args = append(args, k*3)

	q := searchSelect +
		"\n\tWHERE " + where +
		fmt.Sprintf("\n\tORDER BY pc.embedding <=> $1, pc.id\n\tLIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find similar: %w", err)
	}
	defer rows.Close()

	all, err := scanSearchResults(rows)
	if err != nil {
		return nil, err
	}
	return dedupByPage(all, k), nil
}

// buildSearchFilters appends WHERE conditions and bound args for the
// optional search filters. Conditions always include the embedding
// presence check; args arrive pre-seeded with the query vector.
func buildSearchFilters(f model.SearchFilters, args []any) (string, []any) {
	conds := []string{"pc.embedding IS NOT NULL"}

	if len(f.Domains) > 0 {
		args = append(args, f.Domains)
		conds = append(conds, fmt.Sprintf("wp.domain = ANY($%d)", len(args)))
	}
	if len(f.ExcludeDomains) > 0 {
		args = append(args, f.ExcludeDomains)
		conds = append(conds, fmt.Sprintf("NOT (wp.domain = ANY($%d))", len(args)))
	}
	if f.StartDate != nil {
		args = append(args, *f.StartDate)
		conds = append(conds, fmt.Sprintf("wp.published_date >= $%d", len(args)))
	}
	if f.EndDate != nil {
		args = append(args, *f.EndDate)
		conds = append(conds, fmt.Sprintf("wp.published_date <= $%d", len(args)))
	}
	if f.Language != "" {
		args = append(args, f.Language)
		conds = append(conds, fmt.Sprintf("wp.language = $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

func scanSearchResults(rows pgx.Rows) ([]model.SearchResult, error) {
	var out []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		if err := rows.Scan(
			&r.ChunkID, &r.PageID, &r.URL, &r.Title, &r.Domain,
			&r.Author, &r.PublishedAt, &r.PageText, &r.ChunkText, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// dedupByPage keeps the first (best-scoring, rows arrive ordered) row
// per page and caps the result at k.
func dedupByPage(rows []model.SearchResult, k int) []model.SearchResult {
	seen := make(map[string]bool, len(rows))
	out := make([]model.SearchResult, 0, k)
	for _, r := range rows {
		if len(out) >= k {
			break
		}
		if seen[r.PageID] {
			continue
		}
		seen[r.PageID] = true
		out = append(out, r)
	}
	return out
}
