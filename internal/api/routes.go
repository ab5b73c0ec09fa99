package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes.
// Write endpoints enqueue background indexing work; read endpoints serve
// keyword and semantic retrieval over the indexed corpus.
func SetupRoutes(router *gin.Engine, articles *ArticleHandler, discussions *DiscussionHandler, ops *OpsHandler, metricsHandler http.Handler) {
	v1 := router.Group("/api/v1")

	v1.POST("/articles", articles.CreateArticle)
	v1.GET("/articles/:id", articles.GetArticle)
	v1.PUT("/articles/:id", articles.UpdateArticle)
	v1.GET("/articles/:id/discussions", discussions.ListArticleDiscussions)

	v1.POST("/discussions", discussions.CreateDiscussion)
	v1.GET("/discussions/:id", discussions.GetDiscussion)
	v1.PUT("/discussions/:id", discussions.UpdateDiscussion)

	v1.GET("/search", articles.Search)
	v1.POST("/ask", ops.Ask)
	v1.GET("/jobs/stats", ops.JobStats)

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}
}
