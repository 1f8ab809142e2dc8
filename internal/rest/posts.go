package rest

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"github.com/dfryer1193/sitecounts/api"
	"github.com/dfryer1193/sitecounts/blog/domain"
	"github.com/dfryer1193/sitecounts/shared/block"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

var postPageTemplate = template.Must(template.New("post").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
</head>
<body>
<article class="post-{{.ID}} type-{{.Type}}">
	<h1>{{.Title}}</h1>
	{{.Content}}
</article>
</body>
</html>
`))

type PostReader interface {
	GetPost(ctx context.Context, id int64) (*domain.Post, error)
	ListPublishedPosts(ctx context.Context, limit int, offset int) ([]*domain.Post, error)
}

type PostHandler struct {
	posts    PostReader
	registry *block.Registry
	lang     string
}

// NewPostHandler serves posts as JSON and as HTML pages. Pages run the post
// content through registry so dynamic blocks are rendered per request.
func NewPostHandler(posts PostReader, registry *block.Registry, lang string) *PostHandler {
	return &PostHandler{
		posts:    posts,
		registry: registry,
		lang:     lang,
	}
}

func (h *PostHandler) GetPosts(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, api.Error{Error: "limit must be between 1 and 100"})
		return
	}

	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, api.Error{Error: "offset must be a non-negative integer"})
		return
	}

	posts, err := h.posts.ListPublishedPosts(c.Request.Context(), limit, offset)
	if err != nil {
		internalError(c, err)
		return
	}

	resp := api.PostList{
		Posts:  make([]api.Post, 0, len(posts)),
		Limit:  limit,
		Offset: offset,
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, toAPIPost(p, false))
	}

	c.JSON(http.StatusOK, resp)
}

func (h *PostHandler) GetPost(c *gin.Context) {
	post, ok := h.loadVisiblePost(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toAPIPost(post, true))
}

func (h *PostHandler) GetPostPage(c *gin.Context) {
	post, ok := h.loadVisiblePost(c)
	if !ok {
		return
	}

	rc := block.RenderContext{
		PostID: post.ID,
		Query:  c.Request.URL.Query(),
	}
	content, err := h.registry.RenderContent(c.Request.Context(), post.ContentHTML, rc)
	if err != nil {
		internalError(c, err)
		return
	}

	// Stored content is produced by the import pipeline and trusted as HTML.
	var buf bytes.Buffer
	err = postPageTemplate.Execute(&buf, struct {
		Lang    string
		ID      int64
		Type    string
		Title   string
		Content template.HTML
	}{
		Lang:    h.lang,
		ID:      post.ID,
		Type:    post.Type,
		Title:   post.Title,
		Content: template.HTML(content),
	})
	if err != nil {
		internalError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// loadVisiblePost resolves :postId to a published post and writes the error
// response itself when it cannot.
func (h *PostHandler) loadVisiblePost(c *gin.Context) (*domain.Post, bool) {
	id, err := strconv.ParseInt(c.Param("postId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.Error{Error: "postId must be a positive integer"})
		return nil, false
	}

	post, err := h.posts.GetPost(c.Request.Context(), id)
	if errors.Is(err, domain.ErrPostNotFound) || (err == nil && post.Status != domain.StatusPublish) {
		c.JSON(http.StatusNotFound, api.Error{Error: "post not found"})
		return nil, false
	}
	if err != nil {
		internalError(c, err)
		return nil, false
	}

	return post, true
}

func toAPIPost(p *domain.Post, withContent bool) api.Post {
	out := api.Post{
		ID:         p.ID,
		Type:       p.Type,
		Status:     string(p.Status),
		Title:      p.Title,
		Slug:       p.Slug,
		Snippet:    p.Snippet,
		Date:       p.Date,
		Tags:       p.Tags,
		Categories: p.Categories,
		UpdatedAt:  p.UpdatedAt,
		CreatedAt:  p.CreatedAt,
	}
	if withContent {
		out.Content = p.ContentHTML
	}
	return out
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// internalError records err on the request and answers 500 without
// exposing it.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, api.Error{Error: http.StatusText(http.StatusInternalServerError)})
}
