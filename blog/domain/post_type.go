package domain

import (
	"context"
	"errors"
)

var ErrPostTypeNotFound = errors.New("post type not found")

// PostType describes a category of content such as "post" or "page".
// Position preserves registration order, which is the order types are
// enumerated in.
type PostType struct {
	Slug          string
	Label         string
	SingularLabel string
	Public        bool
	Position      int
}

// PostTypeFilter narrows ListPostTypes. A nil field matches everything.
type PostTypeFilter struct {
	Public *bool
}

// PublicOnly is the filter for publicly visible types.
func PublicOnly() PostTypeFilter {
	public := true
	return PostTypeFilter{Public: &public}
}

type PostTypeRepository interface {
	ListPostTypes(ctx context.Context, filter PostTypeFilter) ([]*PostType, error)
	GetPostType(ctx context.Context, slug string) (*PostType, error)
	SavePostType(ctx context.Context, pt *PostType) error
}
