package rest

import "github.com/gin-gonic/gin"

// Handlers groups the route handlers mounted by NewApi.
type Handlers struct {
	Posts  *PostHandler
	Blocks *BlockHandler
	Health *HealthHandler
}

func NewApi(router *gin.Engine, h Handlers) {
	postsV1 := router.Group("posts/v1")
	{
		postsV1.GET("/", h.Posts.GetPosts)
		postsV1.GET("/:postId", h.Posts.GetPost)
	}

	router.GET("/posts/:postId", h.Posts.GetPostPage)

	blocksV1 := router.Group("blocks/v1")
	{
		blocksV1.GET("/", h.Blocks.ListBlocks)
		blocksV1.GET("/render/:namespace/:name", h.Blocks.RenderBlock)
	}

	router.GET("/liveness", h.Health.Liveness)
	router.GET("/readiness", h.Health.Readiness)
}
