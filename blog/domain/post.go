package domain

import (
	"context"
	"errors"
	"time"
)

var ErrPostNotFound = errors.New("post not found")

// PostStatus is the publication state of a post.
type PostStatus string

const (
	StatusPublish   PostStatus = "publish"
	StatusFuture    PostStatus = "future"
	StatusDraft     PostStatus = "draft"
	StatusPending   PostStatus = "pending"
	StatusPrivate   PostStatus = "private"
	StatusTrash     PostStatus = "trash"
	StatusAutoDraft PostStatus = "auto-draft"
	StatusInherit   PostStatus = "inherit"
)

// StatusAny matches every status that is not excluded from queries.
const StatusAny PostStatus = "any"

var knownStatuses = map[PostStatus]bool{
	StatusPublish:   true,
	StatusFuture:    true,
	StatusDraft:     true,
	StatusPending:   true,
	StatusPrivate:   true,
	StatusTrash:     true,
	StatusAutoDraft: true,
	StatusInherit:   true,
}

// Valid reports whether s is a concrete post status.
func (s PostStatus) Valid() bool {
	return knownStatuses[s]
}

// ExcludedFromAny returns the statuses an "any" query never matches.
func ExcludedFromAny() []PostStatus {
	return []PostStatus{StatusTrash, StatusAutoDraft}
}

// Post represents a single content item.
// Posts are imported from markdown files; the rendered HTML is stored inline.
// Date is the authored date in site local time and drives ordering and
// hour-of-day filtering.
type Post struct {
	ID          int64
	Type        string
	Status      PostStatus
	Title       string
	Slug        string
	ContentHTML string
	Snippet     string
	Date        time.Time
	Tags        []string
	Categories  []string
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

// PostCounts maps each status to the number of posts of one type in it.
type PostCounts map[PostStatus]int

// Published returns the number of published posts.
func (c PostCounts) Published() int {
	return c[StatusPublish]
}

type PostRepository interface {
	SavePost(ctx context.Context, p *Post) error
	GetPost(ctx context.Context, id int64) (*Post, error)
	ListPublishedPosts(ctx context.Context, limit int, offset int) ([]*Post, error)

	// CountPosts returns per-status counts for one post type. Unknown types
	// yield an empty PostCounts.
	CountPosts(ctx context.Context, postType string) (PostCounts, error)

	// QueryPostIDs returns the ids of posts matching q, newest first.
	QueryPostIDs(ctx context.Context, q *PostQuery) ([]int64, error)

	Publish(ctx context.Context, postID int64) error
	Unpublish(ctx context.Context, postID int64) error

	// DeletePostsExcept removes every post whose id is not in keep, along
	// with its term links, and returns how many were removed.
	DeletePostsExcept(ctx context.Context, keep []int64) (int, error)
}
