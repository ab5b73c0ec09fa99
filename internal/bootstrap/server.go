package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/doc-indexer/internal/ai"
	"github.com/jonesrussell/doc-indexer/internal/api"
	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/database"
	"github.com/jonesrussell/doc-indexer/internal/embeddings"
	"github.com/jonesrussell/doc-indexer/internal/llm"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/metrics"
	"github.com/jonesrussell/doc-indexer/internal/service"
	"github.com/jonesrussell/doc-indexer/internal/vectorstore"
	"github.com/jonesrussell/doc-indexer/internal/worker"
)

const healthCheckTimeout = 2 * time.Second

// Components holds the wired application pieces that need lifecycle
// management beyond the HTTP server itself.
type Components struct {
	Server      *api.Server
	Worker      *worker.IndexingWorker
	Vectors     *vectorstore.QdrantStore
	Articles    *service.ArticleService
	Discussions *service.DiscussionService
}

// SetupComponents wires repositories, AI providers, services, the indexing
// worker, and the HTTP server.
func SetupComponents(
	cfg *config.Config,
	db *database.Connection,
	log logger.Logger,
) (*Components, error) {
	m := metrics.New()

	embedder := embeddings.NewOllamaClient(cfg.Embeddings, m)
	chat := llm.NewClient(cfg.Chat, m)

	vectors, storeErr := vectorstore.NewQdrantStore(cfg.Qdrant, embedder, cfg.Search.SimilarityThreshold, log)
	if storeErr != nil {
		return nil, storeErr
	}

	documents := database.NewDocumentRepository(db.DB)
	jobs := database.NewJobRepository(db.DB)

	summarizer := ai.NewSummarizer(chat, log)
	variants := ai.NewVariantGenerator(chat, log)
	classifier := ai.NewClassifier(chat, log)
	reranker := ai.NewReranker(chat, log)

	jobSvc := service.NewJobService(jobs, cfg.Worker.MaxAttempts, log)
	articleSvc := service.NewArticleService(documents, vectors, summarizer, reranker, jobSvc, cfg.Search, m, log)
	discussionSvc := service.NewDiscussionService(documents, jobSvc, log)
	ragSvc := service.NewRagService(articleSvc, chat, m, log)

	embedHandler := worker.NewEmbedHandler(documents, summarizer, variants, vectors, cfg.Embeddings.Model, cfg.Worker.SummarizeThresholdChars, log)
	classifyHandler := worker.NewClassifyHandler(documents, classifier, log)
	indexWorker := worker.NewIndexingWorker(jobs, embedHandler, classifyHandler, cfg.Worker, m, log)

	articleHandler := api.NewArticleHandler(articleSvc)
	discussionHandler := api.NewDiscussionHandler(discussionSvc)
	opsHandler := api.NewOpsHandler(ragSvc, indexWorker)

	checks := map[string]api.HealthChecker{
		"database": func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()
			return db.Ping(pingCtx)
		},
	}

	server := api.NewServer(cfg.Service, log, checks, func(router *gin.Engine) {
		api.SetupRoutes(router, articleHandler, discussionHandler, opsHandler, m.Handler())
	})

	return &Components{
		Server:      server,
		Worker:      indexWorker,
		Vectors:     vectors,
		Articles:    articleSvc,
		Discussions: discussionSvc,
	}, nil
}
