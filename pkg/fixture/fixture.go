// Package fixture loads scenario fixture data from a SQLite database into a
// fresh snapshot store. The fixture schema keeps entity rows and their
// settings in separate key/value tables; loading folds the settings back
// into a nested "settings" map on each entity.
package fixture

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/clipcheck/clipcheck/pkg/store"
)

// Loader produces a populated store for one scenario run.
type Loader interface {
	// Load populates a fresh store with the project's data. When chapterID
	// is non-empty only that chapter's timelines and blocks are loaded,
	// otherwise every chapter of the project is.
	Load(ctx context.Context, projectID, chapterID string) (*store.Store, error)
}

// SQLiteLoader reads fixtures from a SQLite database file.
type SQLiteLoader struct {
	path string
}

func NewSQLiteLoader(path string) *SQLiteLoader {
	return &SQLiteLoader{path: path}
}

func (l *SQLiteLoader) Load(ctx context.Context, projectID, chapterID string) (*store.Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectId is required to load fixtures")
	}

	db, err := open(l.path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	st := store.New()

	if err := loadProject(ctx, db, st, projectID); err != nil {
		return nil, err
	}
	chapterIDs, err := loadChapters(ctx, db, st, projectID, chapterID)
	if err != nil {
		return nil, err
	}
	timelineIDs, err := loadTimelines(ctx, db, st, chapterIDs)
	if err != nil {
		return nil, err
	}
	if err := loadBlocks(ctx, db, st, timelineIDs); err != nil {
		return nil, err
	}
	if err := loadMediaAssets(ctx, db, st, projectID); err != nil {
		return nil, err
	}

	return st, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture database: %w", err)
	}

	// busy_timeout reduces SQLITE_BUSY errors when the fixture file is
	// shared between concurrent runs.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

func loadProject(ctx context.Context, db *sql.DB, st *store.Store, projectID string) error {
	row := db.QueryRowContext(ctx,
		"SELECT id, name, fps FROM projects WHERE id = ?", projectID)

	var id, name string
	var fps float64
	if err := row.Scan(&id, &name, &fps); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("project '%s' not found in fixture database", projectID)
		}
		return fmt.Errorf("failed to load project: %w", err)
	}

	project := store.Entity{"id": id, "name": name, "fps": fps}
	settings, err := loadSettings(ctx, db, "project_settings", "project_id", id)
	if err != nil {
		return err
	}
	if len(settings) > 0 {
		project["settings"] = settings
	}
	st.PutProject(id, project)
	return nil
}

func loadChapters(ctx context.Context, db *sql.DB, st *store.Store, projectID, chapterID string) ([]string, error) {
	query := "SELECT id, project_id, title, order_index FROM chapters WHERE project_id = ?"
	args := []any{projectID}
	if chapterID != "" {
		query += " AND id = ?"
		args = append(args, chapterID)
	}
	query += " ORDER BY order_index"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load chapters: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, project, title string
		var orderIndex int
		if err := rows.Scan(&id, &project, &title, &orderIndex); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}

		chapter := store.Entity{
			"id":         id,
			"projectId":  project,
			"title":      title,
			"orderIndex": orderIndex,
		}
		settings, err := loadSettings(ctx, db, "chapter_settings", "chapter_id", id)
		if err != nil {
			return nil, err
		}
		if len(settings) > 0 {
			chapter["settings"] = settings
		}
		st.PutChapter(id, chapter)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load chapters: %w", err)
	}
	if chapterID != "" && len(ids) == 0 {
		return nil, fmt.Errorf("chapter '%s' not found in project '%s'", chapterID, projectID)
	}
	return ids, nil
}

func loadTimelines(ctx context.Context, db *sql.DB, st *store.Store, chapterIDs []string) ([]string, error) {
	var ids []string
	for _, chID := range chapterIDs {
		rows, err := db.QueryContext(ctx,
			"SELECT id, chapter_id, name, type, order_index FROM timelines WHERE chapter_id = ? ORDER BY order_index", chID)
		if err != nil {
			return nil, fmt.Errorf("failed to load timelines: %w", err)
		}

		batch, err := scanTimelines(ctx, db, st, rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		ids = append(ids, batch...)
	}
	return ids, nil
}

func scanTimelines(ctx context.Context, db *sql.DB, st *store.Store, rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id, chapter, name, kind string
		var orderIndex int
		if err := rows.Scan(&id, &chapter, &name, &kind, &orderIndex); err != nil {
			return nil, fmt.Errorf("failed to scan timeline: %w", err)
		}

		timeline := store.Entity{
			"id":         id,
			"chapterId":  chapter,
			"name":       name,
			"type":       kind,
			"orderIndex": orderIndex,
		}
		settings, err := loadSettings(ctx, db, "timeline_settings", "timeline_id", id)
		if err != nil {
			return nil, err
		}
		if len(settings) > 0 {
			timeline["settings"] = settings
		}
		st.PutTimeline(id, timeline)
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func loadBlocks(ctx context.Context, db *sql.DB, st *store.Store, timelineIDs []string) error {
	for _, tlID := range timelineIDs {
		rows, err := db.QueryContext(ctx,
			"SELECT id, timeline_id, type, start_frame, duration_in_frames FROM blocks WHERE timeline_id = ? ORDER BY start_frame", tlID)
		if err != nil {
			return fmt.Errorf("failed to load blocks: %w", err)
		}

		err = scanBlocks(ctx, db, st, rows)
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func scanBlocks(ctx context.Context, db *sql.DB, st *store.Store, rows *sql.Rows) error {
	for rows.Next() {
		var id, timeline, kind string
		var startFrame, duration int
		if err := rows.Scan(&id, &timeline, &kind, &startFrame, &duration); err != nil {
			return fmt.Errorf("failed to scan block: %w", err)
		}

		block := store.Entity{
			"id":               id,
			"timelineId":       timeline,
			"type":             kind,
			"startFrame":       startFrame,
			"durationInFrames": duration,
		}
		settings, err := loadSettings(ctx, db, "block_settings", "block_id", id)
		if err != nil {
			return err
		}
		if len(settings) > 0 {
			block["settings"] = settings
		}
		st.PutBlock(id, block)
	}
	return rows.Err()
}

func loadMediaAssets(ctx context.Context, db *sql.DB, st *store.Store, projectID string) error {
	rows, err := db.QueryContext(ctx,
		"SELECT id, project_id, name, type, url, duration_in_frames FROM media_assets WHERE project_id = ?", projectID)
	if err != nil {
		return fmt.Errorf("failed to load media assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, project, name, kind, url string
		var duration sql.NullInt64
		if err := rows.Scan(&id, &project, &name, &kind, &url, &duration); err != nil {
			return fmt.Errorf("failed to scan media asset: %w", err)
		}

		asset := store.Entity{
			"id":        id,
			"projectId": project,
			"name":      name,
			"type":      kind,
			"url":       url,
		}
		if duration.Valid {
			asset["durationInFrames"] = int(duration.Int64)
		}
		st.PutMediaAsset(id, asset)
	}
	return rows.Err()
}

// loadSettings folds key/value rows into a map. Values are stored as JSON
// text; anything that does not decode is kept as the raw string.
func loadSettings(ctx context.Context, db *sql.DB, table, fkColumn, ownerID string) (map[string]any, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT key, value FROM %s WHERE %s = ?", table, fkColumn), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	defer rows.Close()

	settings := map[string]any{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			settings[key] = value
			continue
		}
		settings[key] = decoded
	}
	return settings, rows.Err()
}
