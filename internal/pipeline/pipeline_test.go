package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seawatch/threat-monitor/backend/internal/models"
	"github.com/seawatch/threat-monitor/backend/internal/outbound"
)

type stubAdapter struct {
	candidates []models.RawCandidate
	err        error
}

func (s *stubAdapter) FindThreats(context.Context) ([]models.RawCandidate, error) {
	return s.candidates, s.err
}

type stubPersister struct {
	failTitles map[string]bool
	committed  []models.ThreatRecord
	nextID     int64
}

func (s *stubPersister) Persist(_ context.Context, rec models.ThreatRecord) (models.ThreatRecord, error) {
	if s.failTitles[rec.Title] {
		return models.ThreatRecord{}, errors.New("primary store down")
	}
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = time.Now().UTC()
	s.committed = append(s.committed, rec)
	return rec, nil
}

type stubPublisher struct {
	published []models.ThreatRecord
}

func (s *stubPublisher) Publish(rec models.ThreatRecord) {
	s.published = append(s.published, rec)
}

type stubNotifier struct {
	notified []int64
	err      error
}

func (s *stubNotifier) Name() string { return "stub" }

func (s *stubNotifier) Notify(_ context.Context, rec models.ThreatRecord) error {
	if s.err != nil {
		return s.err
	}
	s.notified = append(s.notified, rec.ID)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPersistsAndPublishesInOrder(t *testing.T) {
	adapter := &stubAdapter{candidates: []models.RawCandidate{
		{"title": "first"},
		{"title": "second"},
	}}
	persister := &stubPersister{}
	publisher := &stubPublisher{}
	notifier := &stubNotifier{}

	p := New(adapter, persister, publisher, []outbound.Notifier{notifier}, discard())
	summary := p.Run(context.Background())

	require.Equal(t, 2, summary.Attempted)
	require.Equal(t, 2, summary.Persisted)
	require.Equal(t, 0, summary.Failed)
	require.NotEmpty(t, summary.RunID)

	require.Len(t, publisher.published, 2)
	require.Equal(t, "first", publisher.published[0].Title)
	require.Equal(t, "second", publisher.published[1].Title)
	require.Equal(t, []int64{1, 2}, notifier.notified)
}

func TestRunContainsPerCandidateFailures(t *testing.T) {
	adapter := &stubAdapter{candidates: []models.RawCandidate{
		{"title": "ok-1"},
		{"title": "doomed"},
		{"title": "ok-2"},
	}}
	persister := &stubPersister{failTitles: map[string]bool{"doomed": true}}
	publisher := &stubPublisher{}
	notifier := &stubNotifier{}

	p := New(adapter, persister, publisher, []outbound.Notifier{notifier}, discard())
	summary := p.Run(context.Background())

	require.Equal(t, 3, summary.Attempted)
	require.Equal(t, 2, summary.Persisted)
	require.Equal(t, 1, summary.Failed)

	// The failing candidate produced no publish event and no notification.
	require.Len(t, publisher.published, 2)
	require.Len(t, notifier.notified, 2)
}

func TestRunContainsValidationFailures(t *testing.T) {
	adapter := &stubAdapter{candidates: []models.RawCandidate{
		{"title": "ok", "countries": "France"},
		{"title": "bad", "countries": 12},
	}}
	persister := &stubPersister{}
	publisher := &stubPublisher{}

	p := New(adapter, persister, publisher, nil, discard())
	summary := p.Run(context.Background())

	require.Equal(t, 2, summary.Attempted)
	require.Equal(t, 1, summary.Persisted)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, []string{"France"}, publisher.published[0].Countries)
}

func TestRunAdapterFailureIsEmptyBatch(t *testing.T) {
	adapter := &stubAdapter{err: errors.New("search backend unreachable")}
	persister := &stubPersister{}
	publisher := &stubPublisher{}

	p := New(adapter, persister, publisher, nil, discard())
	summary := p.Run(context.Background())

	require.Equal(t, 0, summary.Attempted)
	require.Equal(t, 0, summary.Persisted)
	require.Equal(t, 0, summary.Failed)
	require.Empty(t, publisher.published)
}

func TestRunNotifierFailureDoesNotAffectSummary(t *testing.T) {
	adapter := &stubAdapter{candidates: []models.RawCandidate{{"title": "x"}}}
	persister := &stubPersister{}
	publisher := &stubPublisher{}
	notifier := &stubNotifier{err: errors.New("webhook 502")}

	p := New(adapter, persister, publisher, []outbound.Notifier{notifier}, discard())
	summary := p.Run(context.Background())

	require.Equal(t, 1, summary.Persisted)
	require.Equal(t, 0, summary.Failed)
	require.Len(t, publisher.published, 1)
}

func TestRunZeroCandidatesIsSuccess(t *testing.T) {
	p := New(&stubAdapter{}, &stubPersister{}, &stubPublisher{}, nil, discard())
	summary := p.Run(context.Background())
	require.Equal(t, models.RunSummary{RunID: summary.RunID}, summary)
}
