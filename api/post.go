package api

import "time"

type Post struct {
	ID         int64     `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Snippet    string    `json:"snippet"`
	Content    string    `json:"content,omitempty"`
	Date       time.Time `json:"date"`
	Tags       []string  `json:"tags"`
	Categories []string  `json:"categories"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type PostList struct {
	Posts  []Post `json:"posts"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}
