package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dfryer1193/sitecounts/api"
	"github.com/dfryer1193/sitecounts/blog/domain"
	"github.com/dfryer1193/sitecounts/shared/block"
	"github.com/gin-gonic/gin"
)

const (
	attributesParam = "attributes"
	postIDParam     = "post_id"
)

type BlockHandler struct {
	registry *block.Registry
	posts    PostReader
}

func NewBlockHandler(registry *block.Registry, posts PostReader) *BlockHandler {
	return &BlockHandler{
		registry: registry,
		posts:    posts,
	}
}

// ListBlocks returns the names of the registered block types.
func (h *BlockHandler) ListBlocks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"blocks": h.registry.Names()})
}

// RenderBlock renders one dynamic block outside of any post content. The
// attributes query parameter holds a JSON object; post_id, when given, sets
// the post the block renders for.
func (h *BlockHandler) RenderBlock(c *gin.Context) {
	name := c.Param("namespace") + "/" + c.Param("name")

	t, ok := h.registry.Get(name)
	if !ok || !t.IsDynamic() {
		c.JSON(http.StatusNotFound, api.Error{Error: "block not found"})
		return
	}

	attrs := block.Attributes{}
	if raw := c.Query(attributesParam); raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			c.JSON(http.StatusBadRequest, api.Error{Error: "attributes must be a JSON object"})
			return
		}
	}

	var postID int64
	if raw := c.Query(postIDParam); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			c.JSON(http.StatusBadRequest, api.Error{Error: "post_id must be a non-negative integer"})
			return
		}
		postID = id
	}

	if postID > 0 {
		if _, err := h.posts.GetPost(c.Request.Context(), postID); err != nil {
			if errors.Is(err, domain.ErrPostNotFound) {
				c.JSON(http.StatusNotFound, api.Error{Error: "post not found"})
				return
			}
			internalError(c, err)
			return
		}
	}

	rc := block.RenderContext{
		PostID: postID,
		Query:  c.Request.URL.Query(),
	}
	rendered, err := h.registry.Render(c.Request.Context(), name, attrs, "", rc)
	if errors.Is(err, block.ErrInvalidAttributes) {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, api.Error{Error: err.Error()})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.RenderedBlock{Name: name, Rendered: rendered})
}
