package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dfryer1193/sitecounts/blog/domain"
	"github.com/dfryer1193/sitecounts/shared/db"
)

var _ domain.PostTypeRepository = (*SQLitePostTypeRepository)(nil)

// SQLitePostTypeRepository implements domain.PostTypeRepository using SQLite
type SQLitePostTypeRepository struct {
	db *sql.DB
}

func NewPostTypeRepository(sqlDB *sql.DB) *SQLitePostTypeRepository {
	return &SQLitePostTypeRepository{
		db: sqlDB,
	}
}

const postTypeColumns = `slug, label, singular_label, public, position`

// ListPostTypes returns matching post types in registration order.
func (r *SQLitePostTypeRepository) ListPostTypes(ctx context.Context, filter domain.PostTypeFilter) ([]*domain.PostType, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT " + postTypeColumns + " FROM post_types")
	if filter.Public != nil {
		sb.WriteString(" WHERE public = ?")
		args = append(args, *filter.Public)
	}
	sb.WriteString(" ORDER BY position, slug")

	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list post types: %w", err)
	}
	defer rows.Close()

	types := make([]*domain.PostType, 0)
	for rows.Next() {
		pt, err := scanPostType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post type row: %w", err)
		}
		types = append(types, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post type rows: %w", err)
	}

	return types, nil
}

// GetPostType returns domain.ErrPostTypeNotFound for unknown slugs.
func (r *SQLitePostTypeRepository) GetPostType(ctx context.Context, slug string) (*domain.PostType, error) {
	if slug == "" {
		return nil, fmt.Errorf("post type slug cannot be empty")
	}

	row := db.GetExecutor(ctx, r.db).QueryRowContext(ctx,
		"SELECT "+postTypeColumns+" FROM post_types WHERE slug = ?", slug)

	pt, err := scanPostType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPostTypeNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post type: %w", err)
	}

	return pt, nil
}

const upsertPostTypeQuery = `
	INSERT INTO post_types (slug, label, singular_label, public, position)
	VALUES (?, ?, ?, ?, COALESCE(?, (SELECT COALESCE(MAX(position), -1) + 1 FROM post_types)))
	ON CONFLICT(slug) DO UPDATE SET
		label = excluded.label,
		singular_label = excluded.singular_label,
		public = excluded.public
`

// SavePostType registers a post type. New types are appended after existing
// ones unless Position is set; re-registering keeps the original position.
func (r *SQLitePostTypeRepository) SavePostType(ctx context.Context, pt *domain.PostType) error {
	if pt == nil {
		return fmt.Errorf("post type cannot be nil")
	}
	if pt.Slug == "" {
		return fmt.Errorf("post type slug cannot be empty")
	}

	label := pt.Label
	if label == "" {
		label = pt.Slug
	}
	singular := pt.SingularLabel
	if singular == "" {
		singular = label
	}

	var position any
	if pt.Position > 0 {
		position = pt.Position
	}

	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, upsertPostTypeQuery,
		pt.Slug, label, singular, pt.Public, position)
	if err != nil {
		return fmt.Errorf("failed to save post type: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostType(row rowScanner) (*domain.PostType, error) {
	var pt domain.PostType
	if err := row.Scan(&pt.Slug, &pt.Label, &pt.SingularLabel, &pt.Public, &pt.Position); err != nil {
		return nil, err
	}
	return &pt, nil
}
