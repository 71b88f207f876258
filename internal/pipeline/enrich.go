package pipeline

import (
	"context"
	"fmt"
	"time"

	"go-report-pipeline/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultEnrichBatchSize  = 10
	DefaultEnrichBatchDelay = 5 * time.Second
)

// EnrichSource looks up the numeric detail of a single entity
type EnrichSource interface {
	LookupItem(ctx context.Context, id string) (map[string]float64, error)
}

// ChunkLister is implemented by sources that also return attributes for a
// whole chunk of ids in one call. Only the ids it returns get attributes.
type ChunkLister interface {
	ListChunk(ctx context.Context, ids []string) (map[string]map[string]string, error)
}

// EnrichOptions controls chunking and pacing. Fields are the keys every
// enriched entity carries, zero on failed lookups.
type EnrichOptions struct {
	BatchSize       int
	InterBatchDelay time.Duration
	InterItemDelay  time.Duration
	Fields          []string
}

// BatchEnricher runs secondary lookups in fixed-size chunks, one chunk and
// one item at a time.
type BatchEnricher struct {
	source  EnrichSource
	sleeper Sleeper
	logger  *zap.Logger
}

func NewBatchEnricher(source EnrichSource, sleeper Sleeper, logger *zap.Logger) *BatchEnricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchEnricher{source: source, sleeper: sleeperOrDefault(sleeper), logger: logger}
}

// Enrich returns one entity per id, in input order. A failed item lookup
// yields a zeroed entity with Error set; a failed chunk listing aborts with a
// ChunkError and the entities completed before it.
func (e *BatchEnricher) Enrich(ctx context.Context, ids []string, opts EnrichOptions) ([]model.EnrichedEntity, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultEnrichBatchSize
	}
	lister, _ := e.source.(ChunkLister)

	out := make([]model.EnrichedEntity, 0, len(ids))
	for index, chunk := range chunkStrings(ids, opts.BatchSize) {
		if index > 0 {
			if err := e.sleeper.Sleep(ctx, opts.InterBatchDelay); err != nil {
				return out, fmt.Errorf("enrich interrupted before chunk %d: %w", index, err)
			}
		}

		var attrs map[string]map[string]string
		if lister != nil {
			listed, err := lister.ListChunk(ctx, chunk)
			if err != nil {
				e.logger.Error("chunk listing failed", zap.Int("chunk", index), zap.Strings("ids", chunk), zap.Error(err))
				return out, &ChunkError{Index: index, IDs: chunk, Err: err}
			}
			attrs = listed
		}

		for i, id := range chunk {
			if i > 0 {
				if err := e.sleeper.Sleep(ctx, opts.InterItemDelay); err != nil {
					return out, fmt.Errorf("enrich interrupted in chunk %d: %w", index, err)
				}
			}
			out = append(out, e.enrichOne(ctx, id, attrs[id], opts.Fields))
		}

		e.logger.Debug("chunk enriched", zap.Int("chunk", index), zap.Int("items", len(chunk)))
	}
	return out, nil
}

func (e *BatchEnricher) enrichOne(ctx context.Context, id string, attrs map[string]string, fields []string) model.EnrichedEntity {
	entity := model.EnrichedEntity{
		ID:         id,
		Attributes: attrs,
		Fields:     make(map[string]float64, len(fields)),
	}
	for _, f := range fields {
		entity.Fields[f] = 0
	}

	values, err := e.source.LookupItem(ctx, id)
	if err != nil {
		enrichItems.WithLabelValues("failed").Inc()
		e.logger.Warn("item lookup failed", zap.String("id", id), zap.Error(err))
		entity.Error = true
		entity.ErrorMessage = err.Error()
		return entity
	}

	enrichItems.WithLabelValues("ok").Inc()
	for k, v := range values {
		entity.Fields[k] = v
	}
	return entity
}

func chunkStrings(ids []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}
