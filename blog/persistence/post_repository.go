package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/sitecounts/blog/domain"
	"github.com/dfryer1193/sitecounts/shared/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var _ domain.PostRepository = (*SQLitePostRepository)(nil)

const (
	taxonomyTag      = "post_tag"
	taxonomyCategory = "category"

	// postDateLayout stores dates as site-local wall clock text so hour
	// filters see the authored hour.
	postDateLayout = "2006-01-02 15:04:05"

	maxCategoryDepth = 32
)

// SQLitePostRepository implements domain.PostRepository using SQL database (SQLite)
type SQLitePostRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostRepository creates a repository storing post dates in loc.
// A nil loc means UTC.
func NewPostRepository(sqlDB *sql.DB, loc *time.Location) *SQLitePostRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &SQLitePostRepository{
		db:  sqlDB,
		loc: loc,
	}
}

const upsertPostQuery = `
	INSERT INTO posts (id, post_type, status, title, slug, content_html, snippet, post_date, updated_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		post_type = excluded.post_type,
		status = excluded.status,
		title = excluded.title,
		slug = excluded.slug,
		content_html = excluded.content_html,
		snippet = excluded.snippet,
		post_date = excluded.post_date,
		updated_at = excluded.updated_at,
		created_at = COALESCE(posts.created_at, excluded.created_at)
`

const upsertTermQuery = `
	INSERT INTO terms (taxonomy, slug, name, parent_id)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(taxonomy, slug) DO UPDATE SET
		parent_id = COALESCE(excluded.parent_id, terms.parent_id)
	RETURNING id
`

// SavePost upserts a post and replaces its tags and categories in one transaction.
// Categories are slash-separated slug paths; the post is filed under the last
// segment and the parent chain is created as needed.
func (r *SQLitePostRepository) SavePost(ctx context.Context, p *domain.Post) error {
	if p == nil {
		return fmt.Errorf("post cannot be nil")
	}

	if p.ID <= 0 {
		return fmt.Errorf("post ID must be positive")
	}

	if p.Type == "" {
		return fmt.Errorf("post type cannot be empty")
	}

	if !p.Status.Valid() {
		return fmt.Errorf("invalid post status %q", p.Status)
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		var updatedAt any
		if !p.UpdatedAt.IsZero() {
			updatedAt = p.UpdatedAt
		}

		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		postDate := p.Date
		if postDate.IsZero() {
			postDate = createdAt
		}

		executor := db.GetExecutor(txCtx, r.db)
		_, err := executor.ExecContext(txCtx, upsertPostQuery,
			p.ID,
			p.Type,
			string(p.Status),
			p.Title,
			p.Slug,
			p.ContentHTML,
			p.Snippet,
			postDate.In(r.loc).Format(postDateLayout),
			updatedAt,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert post: %w", err)
		}

		if _, err := executor.ExecContext(txCtx, "DELETE FROM post_terms WHERE post_id = ?", p.ID); err != nil {
			return fmt.Errorf("failed to clear post terms: %w", err)
		}

		for _, tag := range p.Tags {
			termID, err := r.upsertTerm(txCtx, taxonomyTag, tag, nil)
			if err != nil {
				return err
			}
			if err := r.linkTerm(txCtx, p.ID, termID); err != nil {
				return err
			}
		}

		for _, path := range p.Categories {
			termID, err := r.upsertCategoryPath(txCtx, path)
			if err != nil {
				return err
			}
			if termID == 0 {
				continue
			}
			if err := r.linkTerm(txCtx, p.ID, termID); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *SQLitePostRepository) upsertTerm(ctx context.Context, taxonomy, slug string, parentID *int64) (int64, error) {
	var parent any
	if parentID != nil {
		parent = *parentID
	}

	var id int64
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, upsertTermQuery, taxonomy, slug, slug, parent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert %s term %q: %w", taxonomy, slug, err)
	}
	return id, nil
}

func (r *SQLitePostRepository) upsertCategoryPath(ctx context.Context, path string) (int64, error) {
	var parentID *int64
	var id int64
	for _, segment := range strings.Split(path, "/") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		termID, err := r.upsertTerm(ctx, taxonomyCategory, segment, parentID)
		if err != nil {
			return 0, err
		}
		id = termID
		parentID = &termID
	}
	return id, nil
}

func (r *SQLitePostRepository) linkTerm(ctx context.Context, postID, termID int64) error {
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx,
		"INSERT OR IGNORE INTO post_terms (post_id, term_id) VALUES (?, ?)", postID, termID)
	if err != nil {
		return fmt.Errorf("failed to link term %d to post %d: %w", termID, postID, err)
	}
	return nil
}

const postColumns = `id, post_type, status, title, slug, content_html, snippet, post_date, updated_at, created_at`

// GetPost retrieves a single post by ID, including its terms.
func (r *SQLitePostRepository) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrPostNotFound, id)
	}

	row := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id)

	var pr postRow
	err := pr.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrPostNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	post, err := pr.toDomain(r.loc)
	if err != nil {
		return nil, err
	}

	if post.Tags, err = r.tagSlugs(ctx, id); err != nil {
		return nil, err
	}
	if post.Categories, err = r.categoryPaths(ctx, id); err != nil {
		return nil, err
	}

	return post, nil
}

func (r *SQLitePostRepository) tagSlugs(ctx context.Context, postID int64) ([]string, error) {
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT t.slug FROM terms t
		JOIN post_terms pt ON pt.term_id = t.id
		WHERE pt.post_id = ? AND t.taxonomy = ?
		ORDER BY t.slug
	`, postID, taxonomyTag)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, slug)
	}
	return tags, rows.Err()
}

func (r *SQLitePostRepository) categoryPaths(ctx context.Context, postID int64) ([]string, error) {
	executor := db.GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, `
		SELECT t.slug, t.parent_id FROM terms t
		JOIN post_terms pt ON pt.term_id = t.id
		WHERE pt.post_id = ? AND t.taxonomy = ?
		ORDER BY t.slug
	`, postID, taxonomyCategory)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	type leaf struct {
		slug   string
		parent sql.NullInt64
	}
	var leaves []leaf
	for rows.Next() {
		var l leaf
		if err := rows.Scan(&l.slug, &l.parent); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		leaves = append(leaves, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	var paths []string
	for _, l := range leaves {
		segments := []string{l.slug}
		parent := l.parent
		for depth := 0; parent.Valid && depth < maxCategoryDepth; depth++ {
			var slug string
			var next sql.NullInt64
			err := executor.QueryRowContext(ctx, "SELECT slug, parent_id FROM terms WHERE id = ?", parent.Int64).Scan(&slug, &next)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve parent category %d: %w", parent.Int64, err)
			}
			segments = append([]string{slug}, segments...)
			parent = next
		}
		paths = append(paths, strings.Join(segments, "/"))
	}

	return paths, nil
}

// DeletePostsExcept removes all posts not listed in keep in one transaction.
// Term links go with them through ON DELETE CASCADE.
func (r *SQLitePostRepository) DeletePostsExcept(ctx context.Context, keep []int64) (int, error) {
	kept := make(map[int64]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}

	removed := 0
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)

		rows, err := executor.QueryContext(txCtx, "SELECT id FROM posts")
		if err != nil {
			return fmt.Errorf("failed to list post ids: %w", err)
		}
		var stale []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan post id: %w", err)
			}
			if !kept[id] {
				stale = append(stale, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("error iterating post ids: %w", err)
		}
		rows.Close()

		for _, id := range stale {
			if _, err := executor.ExecContext(txCtx, "DELETE FROM posts WHERE id = ?", id); err != nil {
				return fmt.Errorf("failed to delete post %d: %w", id, err)
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ListPublishedPosts retrieves published posts, newest first
func (r *SQLitePostRepository) ListPublishedPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	if limit <= 0 {
		limit = domain.DefaultPostsPerPage
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE status = ?
		ORDER BY post_date DESC, id DESC
		LIMIT ? OFFSET ?
	`, string(domain.StatusPublish), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list published posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.Post, 0)
	for rows.Next() {
		var pr postRow
		if err := pr.scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		post, err := pr.toDomain(r.loc)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// CountPosts returns the number of posts of postType in each status.
func (r *SQLitePostRepository) CountPosts(ctx context.Context, postType string) (domain.PostCounts, error) {
	ctx, span := otel.Tracer("persistence").Start(ctx, "SQLitePostRepository.CountPosts")
	defer span.End()
	span.SetAttributes(attribute.String("post_type", postType))

	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx,
		"SELECT status, COUNT(*) FROM posts WHERE post_type = ? GROUP BY status", postType)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}
	defer rows.Close()

	counts := make(domain.PostCounts)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan post count: %w", err)
		}
		counts[domain.PostStatus(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post counts: %w", err)
	}

	return counts, nil
}

// QueryPostIDs evaluates q and returns matching post ids, newest first.
func (r *SQLitePostRepository) QueryPostIDs(ctx context.Context, q *domain.PostQuery) ([]int64, error) {
	ctx, span := otel.Tracer("persistence").Start(ctx, "SQLitePostRepository.QueryPostIDs")
	defer span.End()

	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid post query: %w", err)
	}

	query, args := buildPostIDQuery(q)
	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan post id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post ids: %w", err)
	}

	span.SetAttributes(attribute.Int("results", len(ids)))
	return ids, nil
}

// buildPostIDQuery compiles q into a single statement.
// An empty PostTypes means "post" and an empty PostStatus means "publish".
func buildPostIDQuery(q *domain.PostQuery) (string, []any) {
	var sb strings.Builder
	var args []any

	if q.CategoryName != "" {
		sb.WriteString(`WITH RECURSIVE category_tree(id) AS (
	SELECT id FROM terms WHERE taxonomy = ? AND slug = ?
	UNION
	SELECT t.id FROM terms t JOIN category_tree ct ON t.parent_id = ct.id WHERE t.taxonomy = ?
)
`)
		args = append(args, taxonomyCategory, q.CategoryName, taxonomyCategory)
	}

	sb.WriteString("SELECT p.id FROM posts p WHERE 1 = 1")

	postTypes := q.PostTypes
	if len(postTypes) == 0 {
		postTypes = []string{"post"}
	}
	sb.WriteString(" AND p.post_type IN (" + placeholders(len(postTypes)) + ")")
	for _, pt := range postTypes {
		args = append(args, pt)
	}

	switch q.PostStatus {
	case domain.StatusAny:
		excluded := domain.ExcludedFromAny()
		sb.WriteString(" AND p.status NOT IN (" + placeholders(len(excluded)) + ")")
		for _, s := range excluded {
			args = append(args, string(s))
		}
	case "":
		sb.WriteString(" AND p.status = ?")
		args = append(args, string(domain.StatusPublish))
	default:
		sb.WriteString(" AND p.status = ?")
		args = append(args, string(q.PostStatus))
	}

	for _, clause := range q.DateQuery {
		sb.WriteString(" AND CAST(strftime('%H', p.post_date) AS INTEGER) " + clause.Compare + " ?")
		args = append(args, clause.Hour)
	}

	if tags := q.TagSlugs(); len(tags) > 0 {
		sb.WriteString(` AND EXISTS (
	SELECT 1 FROM post_terms pt JOIN terms t ON t.id = pt.term_id
	WHERE pt.post_id = p.id AND t.taxonomy = ? AND t.slug IN (` + placeholders(len(tags)) + `))`)
		args = append(args, taxonomyTag)
		for _, tag := range tags {
			args = append(args, tag)
		}
	}

	if q.CategoryName != "" {
		sb.WriteString(` AND EXISTS (
	SELECT 1 FROM post_terms pt WHERE pt.post_id = p.id AND pt.term_id IN (SELECT id FROM category_tree))`)
	}

	limit := q.PostsPerPage
	if limit == 0 {
		limit = domain.DefaultPostsPerPage
	}
	sb.WriteString(" ORDER BY p.post_date DESC, p.id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	return sb.String(), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Publish marks a post as published
func (r *SQLitePostRepository) Publish(ctx context.Context, postID int64) error {
	return r.setStatus(ctx, postID, domain.StatusPublish)
}

// Unpublish moves a post back to draft
func (r *SQLitePostRepository) Unpublish(ctx context.Context, postID int64) error {
	return r.setStatus(ctx, postID, domain.StatusDraft)
}

func (r *SQLitePostRepository) setStatus(ctx context.Context, postID int64, status domain.PostStatus) error {
	if postID <= 0 {
		return fmt.Errorf("post ID must be positive")
	}

	result, err := db.GetExecutor(ctx, r.db).ExecContext(ctx,
		"UPDATE posts SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), postID)
	if err != nil {
		return fmt.Errorf("failed to set post status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", domain.ErrPostNotFound, postID)
	}

	return nil
}

// postRow is used to scan database rows; nullable timestamps use sql.NullTime.
type postRow struct {
	ID          int64
	PostType    string
	Status      string
	Title       string
	Slug        string
	ContentHTML string
	Snippet     string
	PostDate    string
	UpdatedAt   sql.NullTime
	CreatedAt   sql.NullTime
}

func (pr *postRow) scan(row rowScanner) error {
	return row.Scan(
		&pr.ID,
		&pr.PostType,
		&pr.Status,
		&pr.Title,
		&pr.Slug,
		&pr.ContentHTML,
		&pr.Snippet,
		&pr.PostDate,
		&pr.UpdatedAt,
		&pr.CreatedAt,
	)
}

func (pr *postRow) toDomain(loc *time.Location) (*domain.Post, error) {
	date, err := time.ParseInLocation(postDateLayout, pr.PostDate, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse post_date %q: %w", pr.PostDate, err)
	}

	post := &domain.Post{
		ID:          pr.ID,
		Type:        pr.PostType,
		Status:      domain.PostStatus(pr.Status),
		Title:       pr.Title,
		Slug:        pr.Slug,
		ContentHTML: pr.ContentHTML,
		Snippet:     pr.Snippet,
		Date:        date,
	}

	if pr.UpdatedAt.Valid {
		post.UpdatedAt = pr.UpdatedAt.Time
	}
	if pr.CreatedAt.Valid {
		post.CreatedAt = pr.CreatedAt.Time
	}

	return post, nil
}
