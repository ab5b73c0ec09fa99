// Package vectorstore adapts the Qdrant vector index for document variants.
// Every document is stored as one point per embedding variant; searches
// return distinct entity ids in best-rank order.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/jonesrussell/doc-indexer/internal/config"
	"github.com/jonesrussell/doc-indexer/internal/domain"
	"github.com/jonesrussell/doc-indexer/internal/embeddings"
	"github.com/jonesrussell/doc-indexer/internal/logger"
)

// Store is the vector index surface the worker and search pipeline use.
type Store interface {
	UpsertVariants(ctx context.Context, targetID int64, title string, variants []domain.EmbeddingVariant, meta domain.VariantMetadata) error
	SearchIDs(ctx context.Context, query string, limit int, sampleType domain.TargetType) ([]int64, error)
	DeleteEntity(ctx context.Context, entityType domain.TargetType, targetID int64) error
}

// QdrantStore implements Store against a Qdrant gRPC endpoint.
type QdrantStore struct {
	client     *qdrant.Client
	embedder   embeddings.Embedder
	collection string
	vectorSize uint64
	threshold  float32
	log        logger.Logger
}

// NewQdrantStore connects to Qdrant and returns a store over the configured
// collection.
func NewQdrantStore(cfg config.QdrantConfig, embedder embeddings.Embedder, threshold float64, log logger.Logger) (*QdrantStore, error) {
	host, port, useTLS, parseErr := parseEndpoint(cfg.URL)
	if parseErr != nil {
		return nil, parseErr
	}

	client, clientErr := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if clientErr != nil {
		return nil, fmt.Errorf("create qdrant client: %w", clientErr)
	}

	return &QdrantStore{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		threshold:  float32(threshold),
		log:        log,
	}, nil
}

func parseEndpoint(raw string) (host string, port int, useTLS bool, err error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}

	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return "", 0, false, fmt.Errorf("parse qdrant url: %w", parseErr)
	}

	port = 6334
	if u.Port() != "" {
		p, portErr := strconv.Atoi(u.Port())
		if portErr != nil {
			return "", 0, false, fmt.Errorf("parse qdrant port: %w", portErr)
		}
		port = p
	}

	return u.Hostname(), port, u.Scheme == "https", nil
}

// EnsureCollection creates the collection when it does not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	exists, existsErr := s.client.CollectionExists(ctx, s.collection)
	if existsErr != nil {
		return fmt.Errorf("check collection: %w", existsErr)
	}
	if exists {
		return nil
	}

	createErr := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if createErr != nil {
		return fmt.Errorf("create collection: %w", createErr)
	}

	s.log.Info("created qdrant collection", logger.String("collection", s.collection))
	return nil
}

// Close releases the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// UpsertVariants writes one point per variant. Existing points of the entity
// are deleted first so a shrinking variant count leaves no stale points.
func (s *QdrantStore) UpsertVariants(
	ctx context.Context,
	targetID int64,
	title string,
	variants []domain.EmbeddingVariant,
	meta domain.VariantMetadata,
) error {
	if len(variants) == 0 {
		return nil
	}

	if deleteErr := s.DeleteEntity(ctx, meta.SampleType, targetID); deleteErr != nil {
		return deleteErr
	}

	texts := make([]string, len(variants))
	for i, v := range variants {
		texts[i] = v.Content
	}

	vectors, embedErr := s.embedder.EmbedBatch(ctx, texts)
	if embedErr != nil {
		return fmt.Errorf("embed variants: %w", embedErr)
	}

	points := make([]*qdrant.PointStruct, len(variants))
	for i, v := range variants {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(meta.SampleType, targetID, i)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(variantPayload(targetID, title, v, meta)),
		}
	}

	_, upsertErr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if upsertErr != nil {
		return fmt.Errorf("upsert variants: %w", upsertErr)
	}
	return nil
}

// variantPayload builds the restricted metadata for one point. Nothing
// outside this allow-list may reach the vector index.
func variantPayload(targetID int64, title string, v domain.EmbeddingVariant, meta domain.VariantMetadata) map[string]any {
	payload := map[string]any{
		"title":            title,
		"content":          v.Content,
		"entityId":         targetID,
		"entityType":       string(meta.SampleType),
		"sampleType":       string(meta.SampleType),
		"embeddingVariant": v.Label,
	}
	if meta.RelatedArticleID != nil {
		payload["relatedArticleId"] = *meta.RelatedArticleID
	}
	if meta.RespondsToID != nil {
		payload["respondsToId"] = *meta.RespondsToID
	}
	if meta.DiscussionSection != nil {
		payload["discussionSection"] = *meta.DiscussionSection
	}
	return payload
}

// DeleteEntity removes all points of one document.
func (s *QdrantStore) DeleteEntity(ctx context.Context, entityType domain.TargetType, targetID int64) error {
	_, deleteErr := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeyword("entityType", string(entityType)),
				qdrant.NewMatchInt("entityId", targetID),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if deleteErr != nil {
		return fmt.Errorf("delete entity points: %w", deleteErr)
	}
	return nil
}

// SearchIDs embeds the query and returns distinct entity ids in best-rank
// order. A document matching on several of its variants counts once, at its
// best rank.
func (s *QdrantStore) SearchIDs(ctx context.Context, query string, limit int, sampleType domain.TargetType) ([]int64, error) {
	vector, embedErr := s.embedder.Embed(ctx, query)
	if embedErr != nil {
		return nil, fmt.Errorf("embed query: %w", embedErr)
	}

	var filter *qdrant.Filter
	if sampleType != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeyword("sampleType", string(sampleType)),
			},
		}
	}

	// over-fetch so dedupe across variants still fills the limit
	fetch := uint64(limit * 3)
	points, queryErr := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &fetch,
		Filter:         filter,
		ScoreThreshold: &s.threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if queryErr != nil {
		return nil, fmt.Errorf("query points: %w", queryErr)
	}

	ranked := make([]int64, 0, len(points))
	for _, point := range points {
		if point.Payload == nil {
			continue
		}
		id := point.Payload["entityId"].GetIntegerValue()
		if id == 0 {
			continue
		}
		ranked = append(ranked, id)
	}

	ids := DedupeFirstSeen(ranked)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// PointID derives the deterministic point id for one variant of a document.
// Qdrant only accepts UUIDs or unsigned integers as ids, so the logical key
// `{entityType}:{targetId}:{variantIndex}` is hashed into a stable UUID.
func PointID(entityType domain.TargetType, targetID int64, variantIndex int) string {
	key := fmt.Sprintf("%s:%d:%d", entityType, targetID, variantIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// DedupeFirstSeen removes duplicate ids while preserving first-seen order.
func DedupeFirstSeen(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
