package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/seawatch/threat-monitor/backend/internal/discovery"
	"github.com/seawatch/threat-monitor/backend/internal/models"
	"github.com/seawatch/threat-monitor/backend/internal/normalize"
	"github.com/seawatch/threat-monitor/backend/internal/outbound"
)

// Persister commits a canonical record to the dual store.
type Persister interface {
	Persist(ctx context.Context, rec models.ThreatRecord) (models.ThreatRecord, error)
}

// Publisher hands a committed record to live stream subscribers.
type Publisher interface {
	Publish(rec models.ThreatRecord)
}

// Pipeline orchestrates one discovery run: adapter, normalizer, dual-store
// persistence, in-process publish, and best-effort outbound notification.
type Pipeline struct {
	adapter   discovery.Adapter
	persister Persister
	publisher Publisher
	notifiers []outbound.Notifier
	log       *slog.Logger
}

// New wires a pipeline. notifiers may be empty.
func New(adapter discovery.Adapter, persister Persister, publisher Publisher, notifiers []outbound.Notifier, log *slog.Logger) *Pipeline {
	return &Pipeline{
		adapter:   adapter,
		persister: persister,
		publisher: publisher,
		notifiers: notifiers,
		log:       log,
	}
}

// Run executes one end-to-end discovery pass and always completes: adapter
// failures count as an empty batch, and per-candidate failures are logged,
// counted, and contained so the rest of the batch proceeds.
func (p *Pipeline) Run(ctx context.Context) models.RunSummary {
	summary := models.RunSummary{RunID: uuid.NewString()}
	log := p.log.With(slog.String("run_id", summary.RunID))

	candidates, err := p.adapter.FindThreats(ctx)
	if err != nil {
		log.Warn("discovery adapter failed, treating run as empty", slog.Any("err", err))
		return summary
	}
	if len(candidates) == 0 {
		log.Info("run complete, no candidates")
		return summary
	}

	for _, raw := range candidates {
		summary.Attempted++

		rec, err := normalize.Candidate(raw)
		if err != nil {
			summary.Failed++
			log.Warn("dropping candidate", slog.Any("err", err))
			continue
		}

		committed, err := p.persister.Persist(ctx, rec)
		if err != nil {
			summary.Failed++
			log.Error("persist failed", slog.String("title", rec.Title), slog.Any("err", err))
			continue
		}
		summary.Persisted++

		p.publisher.Publish(committed)

		for _, n := range p.notifiers {
			if err := n.Notify(ctx, committed); err != nil {
				log.Warn("outbound notify failed",
					slog.String("sink", n.Name()),
					slog.Int64("id", committed.ID),
					slog.Any("err", err),
				)
			}
		}
	}

	log.Info("run complete",
		slog.Int("attempted", summary.Attempted),
		slog.Int("persisted", summary.Persisted),
		slog.Int("failed", summary.Failed),
	)
	return summary
}
