// Package importer pulls highlights out of foreign annotation stores. The
// only supported source today is the KoboReader.sqlite database a Kobo
// e-reader keeps at the root of its storage.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dipoleapp/dipole-server/internal/domain"
)

// BookHighlights groups the highlights found for one book on the device.
type BookHighlights struct {
	// VolumeID is Kobo's content identifier, a file path or store URL.
	VolumeID string
	Title    string
	Author   string

	Highlights []domain.Highlight
}

// KoboImporter reads highlights from a KoboReader.sqlite file.
type KoboImporter struct {
	logger *slog.Logger
}

// NewKoboImporter creates a Kobo importer.
func NewKoboImporter(logger *slog.Logger) *KoboImporter {
	return &KoboImporter{logger: logger}
}

// Import reads every highlight bookmark from the device database, grouped
// by book. The database is opened read-only; the device's own state is
// never touched.
func (i *KoboImporter) Import(ctx context.Context, dbPath string) ([]BookHighlights, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open kobo db: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("open kobo db: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT b.VolumeID, b.Text, b.StartContainerPath, b.DateCreated,
		       COALESCE(c.Title, ''), COALESCE(c.Attribution, '')
		FROM Bookmark b
		LEFT JOIN content c ON c.ContentID = b.VolumeID
		WHERE b.Type = 'highlight' AND b.Text IS NOT NULL AND b.Text != ''
		ORDER BY b.VolumeID, b.DateCreated`)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	byVolume := make(map[string]*BookHighlights)
	var order []string

	for rows.Next() {
		var (
			volumeID string
			text     string
			path     sql.NullString
			created  sql.NullString
			title    string
			author   string
		)
		if err := rows.Scan(&volumeID, &text, &path, &created, &title, &author); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}

		h, err := domain.NewHighlight(strings.TrimSpace(text), path.String)
		if err != nil {
			i.logger.Warn("skipping unusable kobo bookmark", "volume", volumeID, "error", err)
			continue
		}
		if ts, ok := parseKoboTime(created.String); ok {
			h.AddDate = ts
		}

		book, ok := byVolume[volumeID]
		if !ok {
			book = &BookHighlights{
				VolumeID: volumeID,
				Title:    title,
				Author:   author,
			}
			byVolume[volumeID] = book
			order = append(order, volumeID)
		}
		book.Highlights = append(book.Highlights, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}

	result := make([]BookHighlights, 0, len(order))
	for _, volumeID := range order {
		result = append(result, *byVolume[volumeID])
	}

	i.logger.Info("kobo import read",
		"books", len(result),
		"db", dbPath,
	)
	return result, nil
}

// parseKoboTime parses the timestamp formats Kobo firmware has used over
// the years.
func parseKoboTime(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
