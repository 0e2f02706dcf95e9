package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sonar/internal/model"
)

// UpsertPage inserts a page or, when the URL is already known, updates
// the existing row in place. The original id and crawled_at survive a
// recrawl; updated_at is bumped. The stored page is returned.
func (s *Store) UpsertPage(ctx context.Context, p *model.Page) (*model.Page, error) {
	if p == nil || p.URL == "" {
		return nil, errors.New("store: page url is required")
	}

	const q = `
		INSERT INTO web_pages (
			id, url, domain, title, description, content, markdown,
			author, published_date, language, content_hash, status_code,
			crawled_at, updated_at
		) VALUES (
			$1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), NULLIF($7,''),
			NULLIF($8,''), $9, NULLIF($10,''), NULLIF($11,''), $12,
			now(), now()
		)
		ON CONFLICT (url) DO UPDATE SET
			domain         = EXCLUDED.domain,
			title          = EXCLUDED.title,
			description    = EXCLUDED.description,
			content        = EXCLUDED.content,
			markdown       = EXCLUDED.markdown,
			author         = EXCLUDED.author,
			published_date = EXCLUDED.published_date,
			language       = EXCLUDED.language,
			content_hash   = EXCLUDED.content_hash,
			status_code    = EXCLUDED.status_code,
			updated_at     = now()
		RETURNING id, crawled_at, updated_at`

	out := *p
	err := s.pool.QueryRow(ctx, q,
		newUUID(), p.URL, p.Domain, p.Title, p.Description, p.Content, p.Markdown,
		p.Author, p.PublishedAt, p.Language, p.ContentHash, nullInt(p.StatusCode),
	).Scan(&out.ID, &out.CrawledAt, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert page: %w", err)
	}
	return &out, nil
}

// GetPageByURL returns the page stored for an exact URL, or ErrNotFound.
func (s *Store) GetPageByURL(ctx context.Context, url string) (*model.Page, error) {
	const q = `
		SELECT id, url, domain,
			COALESCE(title,''), COALESCE(description,''),
			COALESCE(content,''), COALESCE(markdown,''),
			COALESCE(author,''), published_date,
			COALESCE(language,''), COALESCE(content_hash,''),
			COALESCE(status_code, 0), crawled_at, updated_at
		FROM web_pages WHERE url = $1`

	var p model.Page
	err := s.pool.QueryRow(ctx, q, url).Scan(
		&p.ID, &p.URL, &p.Domain, &p.Title, &p.Description,
		&p.Content, &p.Markdown, &p.Author, &p.PublishedAt,
		&p.Language, &p.ContentHash, &p.StatusCode, &p.CrawledAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get page by url: %w", err)
	}
	return &p, nil
}

// nullInt maps the zero value to SQL NULL for optional int columns.
func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
