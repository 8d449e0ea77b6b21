package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cardcheck/internal/macro"
	"github.com/roach88/cardcheck/internal/status"
)

// Source is an indexed source file.
type Source struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Lines  int    `json:"lines"`
}

// SiteRef is a placeholder site that throws a given status word.
type SiteRef struct {
	Source string      `json:"source"`
	Line   int         `json:"line"`
	Value  int         `json:"value"`
	Code   status.Word `json:"code"`
	Text   string      `json:"text"`
}

// Location renders the site as "path:line".
func (r SiteRef) Location() string {
	return fmt.Sprintf("%s:%d", r.Source, r.Line)
}

// NormalizePath returns the key a source path is stored under:
// slash-separated, cleaned and NFC-normalized.
func NormalizePath(path string) string {
	return norm.NFC.String(filepath.ToSlash(filepath.Clean(path)))
}

// IndexSource records the sites of one preprocessing pass, replacing any
// earlier index of the same source.
func (s *Store) IndexSource(ctx context.Context, res *macro.Result) error {
	if res.Source == "" {
		return fmt.Errorf("index source: result has no source name")
	}
	path := NormalizePath(res.Source)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index source: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index source %s: %w", path, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sources (path, digest, lines) VALUES (?, ?, ?)
	`, path, res.Digest, res.Lines); err != nil {
		return fmt.Errorf("index source %s: %w", path, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sites (source_path, line, value, code, text) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index source %s: %w", path, err)
	}
	defer stmt.Close()

	for _, site := range res.Sites {
		code := status.Assertion(status.Line(site.Value & status.LineMask))
		if _, err := stmt.ExecContext(ctx, path, site.Line, site.Value, int(code), site.Text); err != nil {
			return fmt.Errorf("index source %s line %d: %w", path, site.Line, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index source %s: commit: %w", path, err)
	}
	return nil
}

// Sources returns every indexed source ordered by path.
func (s *Store) Sources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, digest, lines FROM sources ORDER BY path COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.Path, &src.Digest, &src.Lines); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

// LookupSites returns the sites that throw code, ordered by source and line.
// When sources is non-empty only those files are searched.
//
// More than one result means the code is ambiguous: several sites alias onto
// it, within one file (lines 1024 apart) or across files.
func (s *Store) LookupSites(ctx context.Context, code status.Word, sources ...string) ([]SiteRef, error) {
	query := `SELECT source_path, line, value, code, text FROM sites WHERE code = ?`
	args := []any{int(code)}
	if len(sources) > 0 {
		query += ` AND source_path IN (?` + strings.Repeat(`, ?`, len(sources)-1) + `)`
		for _, src := range sources {
			args = append(args, NormalizePath(src))
		}
	}
	query += ` ORDER BY source_path COLLATE BINARY ASC, line ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()
	return scanSites(rows)
}

// Sites returns every site of one source in line order.
func (s *Store) Sites(ctx context.Context, source string) ([]SiteRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_path, line, value, code, text FROM sites
		WHERE source_path = ?
		ORDER BY line ASC
	`, NormalizePath(source))
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()
	return scanSites(rows)
}

func scanSites(rows *sql.Rows) ([]SiteRef, error) {
	refs := []SiteRef{}
	for rows.Next() {
		var (
			ref  SiteRef
			code int
		)
		if err := rows.Scan(&ref.Source, &ref.Line, &ref.Value, &code, &ref.Text); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		ref.Code = status.Word(code)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return refs, nil
}
