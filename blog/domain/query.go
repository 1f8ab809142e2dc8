package domain

import (
	"fmt"
	"strings"
)

// Comparison operators accepted by DateClause.
const (
	CompareEqual        = "="
	CompareNotEqual     = "!="
	CompareGreater      = ">"
	CompareGreaterEqual = ">="
	CompareLess         = "<"
	CompareLessEqual    = "<="
)

// Fields selects what a query returns.
type Fields string

const (
	FieldsAll Fields = "all"
	FieldsIDs Fields = "ids"
)

// NoLimit as PostsPerPage returns every match. Zero selects DefaultPostsPerPage.
const (
	NoLimit             = -1
	DefaultPostsPerPage = 10
)

// DateClause restricts the hour of day (0-23) of a post's date.
type DateClause struct {
	Hour    int
	Compare string
}

// PostQuery is a declarative filter over posts. All set criteria are ANDed.
//
// Tag holds one or more tag slugs separated by commas; a post matches if it
// carries any of them. CategoryName is a category slug and also matches
// posts filed under its descendant categories.
type PostQuery struct {
	PostTypes    []string
	PostStatus   PostStatus
	DateQuery    []DateClause
	Tag          string
	CategoryName string
	Fields       Fields
	PostsPerPage int
	Offset       int
}

// TagSlugs splits Tag into its individual slugs.
func (q *PostQuery) TagSlugs() []string {
	if q.Tag == "" {
		return nil
	}

	var slugs []string
	for _, s := range strings.Split(q.Tag, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			slugs = append(slugs, s)
		}
	}
	return slugs
}

// Validate checks the query for operators and values the store cannot
// evaluate.
func (q *PostQuery) Validate() error {
	if q == nil {
		return fmt.Errorf("query cannot be nil")
	}

	if q.PostStatus != "" && q.PostStatus != StatusAny && !q.PostStatus.Valid() {
		return fmt.Errorf("unknown post status %q", q.PostStatus)
	}

	for i, c := range q.DateQuery {
		switch c.Compare {
		case CompareEqual, CompareNotEqual, CompareGreater, CompareGreaterEqual, CompareLess, CompareLessEqual:
		default:
			return fmt.Errorf("date clause %d: unknown comparator %q", i, c.Compare)
		}
		if c.Hour < 0 || c.Hour > 23 {
			return fmt.Errorf("date clause %d: hour %d out of range", i, c.Hour)
		}
	}

	if q.Fields != "" && q.Fields != FieldsAll && q.Fields != FieldsIDs {
		return fmt.Errorf("unknown fields selector %q", q.Fields)
	}

	if q.PostsPerPage < NoLimit {
		return fmt.Errorf("posts per page must be %d or greater", NoLimit)
	}

	if q.Offset < 0 {
		return fmt.Errorf("offset cannot be negative")
	}

	return nil
}
