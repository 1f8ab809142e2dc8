package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"time"

	"github.com/dfryer1193/sitecounts/blog/domain"
	"github.com/dfryer1193/sitecounts/shared/text"
	"github.com/rs/zerolog/log"
)

const defaultPostType = "post"

var (
	postFileRegex = regexp.MustCompile(`^(\d+)-(.*)\.md$`)

	dateLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

type PostStore interface {
	SavePost(ctx context.Context, p *domain.Post) error
	GetPost(ctx context.Context, id int64) (*domain.Post, error)
	DeletePostsExcept(ctx context.Context, keep []int64) (int, error)
}

type PostTypeGetter interface {
	GetPostType(ctx context.Context, slug string) (*domain.PostType, error)
}

// ImportResult counts the outcome of an import run.
type ImportResult struct {
	Imported int
	Failed   int
	Skipped  int
	// Removed counts stored posts whose file is gone from the directory.
	Removed int
}

// ImportService loads markdown post files into the post store.
type ImportService struct {
	posts    PostStore
	types    PostTypeGetter
	markdown MarkdownRenderer
	loc      *time.Location
	now      func() time.Time
}

// NewImportService wires the import pipeline. Dates without an offset are
// read in loc; a nil loc means UTC.
func NewImportService(posts PostStore, types PostTypeGetter, markdown MarkdownRenderer, loc *time.Location) *ImportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ImportService{
		posts:    posts,
		types:    types,
		markdown: markdown,
		loc:      loc,
		now:      time.Now,
	}
}

// ImportDir walks fsys and saves every NNN-slug.md file it finds. A file
// that fails is logged and counted; the walk carries on. Once the walk
// completes, posts with no file left in fsys are deleted. A file that failed
// to import keeps its previously stored post.
func (s *ImportService) ImportDir(ctx context.Context, fsys fs.FS) (ImportResult, error) {
	var (
		result ImportResult
		seen   []int64
	)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".md" {
			return nil
		}

		id, slug, ok := splitPostFileName(path.Base(p))
		if !ok {
			log.Debug().Str("path", p).Msg("Skipping file without a post id")
			result.Skipped++
			return nil
		}
		seen = append(seen, id)

		if err := s.importFile(ctx, fsys, p, id, slug); err != nil {
			log.Error().Err(err).Str("path", p).Int64("postID", id).Msg("Failed to import post")
			result.Failed++
			return nil
		}

		result.Imported++
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to walk import directory: %w", err)
	}

	removed, err := s.posts.DeletePostsExcept(ctx, seen)
	if err != nil {
		return result, fmt.Errorf("failed to remove deleted posts: %w", err)
	}
	result.Removed = removed

	log.Info().
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int("removed", result.Removed).
		Msg("Import finished")

	return result, nil
}

func (s *ImportService) importFile(ctx context.Context, fsys fs.FS, p string, id int64, fileSlug string) error {
	content, err := fs.ReadFile(fsys, p)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p, err)
	}

	result, err := s.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", p, err)
	}

	post, err := s.buildPost(ctx, id, fileSlug, result)
	if err != nil {
		return err
	}

	if err := s.posts.SavePost(ctx, post); err != nil {
		return fmt.Errorf("failed to save post %d: %w", id, err)
	}

	log.Debug().Int64("postID", id).Str("type", post.Type).Str("status", string(post.Status)).Msg("Imported post")
	return nil
}

func (s *ImportService) buildPost(ctx context.Context, id int64, fileSlug string, result *MarkdownProcessingResult) (*domain.Post, error) {
	fm := result.FrontMatter

	postType := fm.Type
	if postType == "" {
		postType = defaultPostType
	}
	if _, err := s.types.GetPostType(ctx, postType); err != nil {
		return nil, fmt.Errorf("failed to resolve post type %q: %w", postType, err)
	}

	status := domain.StatusPublish
	if fm.Status != "" {
		status = domain.PostStatus(fm.Status)
	}
	if !status.Valid() || status == domain.StatusAny {
		return nil, fmt.Errorf("invalid post status %q", fm.Status)
	}

	slug := fm.Slug
	if slug == "" {
		slug = fileSlug
	}

	now := s.now().In(s.loc).Truncate(time.Second)
	date := now
	if fm.Date != "" {
		parsed, err := parsePostDate(fm.Date, s.loc)
		if err != nil {
			return nil, err
		}
		date = parsed
	}

	createdAt := now
	existing, err := s.posts.GetPost(ctx, id)
	switch {
	case err == nil:
		createdAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrPostNotFound):
		return nil, fmt.Errorf("failed to look up post %d: %w", id, err)
	}

	return &domain.Post{
		ID:          id,
		Type:        postType,
		Status:      status,
		Title:       result.Title,
		Slug:        text.Slugify(slug),
		ContentHTML: string(result.HTMLContent),
		Snippet:     result.Snippet,
		Date:        date,
		Tags:        normalizeTerms(fm.Tags, text.Slugify),
		Categories:  normalizeTerms(fm.Categories, text.SlugifyPath),
		UpdatedAt:   now,
		CreatedAt:   createdAt,
	}, nil
}

// parsePostDate accepts RFC 3339 timestamps and a few offset-free layouts,
// the latter read as wall clock time in loc.
func parsePostDate(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised post date %q", raw)
}

func normalizeTerms(terms []string, normalize func(string) string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, term := range terms {
		slug := normalize(term)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	return out
}

// splitPostFileName extracts the numeric id and slug from a file name
// Example: "001-my-post.md" -> 1, "my-post"
func splitPostFileName(name string) (int64, string, bool) {
	matches := postFileRegex.FindStringSubmatch(name)
	if len(matches) < 3 {
		return 0, "", false
	}

	id, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, matches[2], true
}
