package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/dfryer1193/sitecounts/api"
	"github.com/dfryer1193/sitecounts/blog/application"
	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"
)

type Importer interface {
	ImportDir(ctx context.Context, fsys fs.FS) (application.ImportResult, error)
}

// WebhookHandler re-imports the content directory when the content
// repository receives a push.
type WebhookHandler struct {
	webhookSecret []byte
	importer      Importer
	content       fs.FS
	branch        string
}

// NewWebhookHandler verifies deliveries with secret. Pushes to branches
// other than branch are acknowledged and ignored; an empty branch accepts
// every push.
func NewWebhookHandler(secret string, importer Importer, content fs.FS, branch string) (*WebhookHandler, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is not set")
	}

	return &WebhookHandler{
		webhookSecret: []byte(secret),
		importer:      importer,
		content:       content,
		branch:        branch,
	}, nil
}

func (h *WebhookHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/webhook/git", h.HandleGitWebhook)
}

func (h *WebhookHandler) HandleGitWebhook(c *gin.Context) {
	payload, err := github.ValidatePayload(c.Request, h.webhookSecret)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: "invalid payload"})
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(c.Request), payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: "invalid event"})
		return
	}

	evt, ok := event.(*github.PushEvent)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	if h.branch != "" && evt.GetRef() != "refs/heads/"+h.branch {
		log.Debug().Str("ref", evt.GetRef()).Msg("Ignoring push to non-content branch")
		c.Status(http.StatusNoContent)
		return
	}

	result, err := h.importer.ImportDir(c.Request.Context(), h.content)
	if err != nil {
		_ = c.Error(err)
		log.Error().Err(err).Str("after", evt.GetAfter()).Msg("Failed to import content after push")
		c.JSON(http.StatusInternalServerError, api.Error{Error: "error handling event"})
		return
	}

	c.JSON(http.StatusOK, api.ImportResult{
		Imported: result.Imported,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Removed:  result.Removed,
	})
}
