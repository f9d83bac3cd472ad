package submission

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/distress"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/reflection"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 5, 12, 18, 0, 0, 0, time.UTC)

type harness struct {
	orchestrator *Orchestrator
	db           *gorm.DB
	journal      *journal.Service
	ledger       *engagement.Ledger
	queue        *offline.MemoryQueue
	signal       *offline.Signal
	quota        *MemoryQuotaCounter
	publisher    *recordingPublisher
}

type harnessOption func(*Config)

func withEntries(wrap func(EntryStore) EntryStore) harnessOption {
	return func(cfg *Config) {
		cfg.Entries = wrap(cfg.Entries)
	}
}

func withLedger(ledger Ledger) harnessOption {
	return func(cfg *Config) {
		cfg.Ledger = ledger
	}
}

func withWriteTimeout(timeout time.Duration, queueOnTimeout bool) harnessOption {
	return func(cfg *Config) {
		cfg.WriteTimeout = timeout
		cfg.QueueOnTimeout = queueOnTimeout
	}
}

func newHarness(t *testing.T, online bool, options ...harnessOption) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "records.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	models := []interface{}{&journal.Entry{}, &distress.Record{}, &distress.RecommendationEvent{}}
	models = append(models, engagement.Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	clock := func() time.Time { return testNow }

	journalService, err := journal.NewService(journal.ServiceConfig{Database: db, Clock: clock, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build journal service: %v", err)
	}
	history, err := distress.NewHistory(db)
	if err != nil {
		t.Fatalf("failed to build history: %v", err)
	}
	ledger, err := engagement.NewLedger(engagement.LedgerConfig{Database: db, Clock: clock, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build ledger: %v", err)
	}

	h := &harness{
		db:        db,
		journal:   journalService,
		ledger:    ledger,
		queue:     offline.NewMemoryQueue(),
		signal:    offline.NewSignal(online),
		quota:     NewMemoryQuotaCounter(),
		publisher: &recordingPublisher{},
	}
	cfg := Config{
		Entries:      journalService,
		Queue:        h.queue,
		Connectivity: h.signal,
		History:      history,
		Ledger:       ledger,
		Quota:        h.quota,
		Publisher:    h.publisher,
		Generator:    reflection.NewGenerator(rand.New(rand.NewPCG(7, 11))),
		Clock:        clock,
		Location:     time.UTC,
		Logger:       zap.NewNop(),
	}
	for _, option := range options {
		option(&cfg)
	}
	orchestrator, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	h.orchestrator = orchestrator
	return h
}

func (h *harness) submit(t *testing.T, req Request) Result {
	t.Helper()
	result, err := h.orchestrator.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return result
}

func (h *harness) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := h.db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return count
}

func (h *harness) snapshot(t *testing.T, authorID string) engagement.Snapshot {
	t.Helper()
	snapshot, err := h.ledger.Snapshot(context.Background(), authorID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	return snapshot
}

func (h *harness) seedEntries(t *testing.T, authorID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		id, err := journal.NewUUIDProvider().NewID()
		if err != nil {
			t.Fatalf("id generation failed: %v", err)
		}
		entry, err := journal.NewEntry(journal.EntryConfig{
			EntryID:   id,
			AuthorID:  journal.AuthorID(authorID),
			Text:      "seeded entry",
			CreatedAt: testNow.Add(-time.Duration(i+1) * 48 * time.Hour),
		})
		if err != nil {
			t.Fatalf("entry build failed: %v", err)
		}
		if _, err := h.journal.Insert(context.Background(), entry); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) ofType(eventType string) []realtime.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	matched := make([]realtime.Event, 0)
	for _, event := range p.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// scriptedStore fails inserts for selected entry ids, or for every id when failAll is set.
type scriptedStore struct {
	EntryStore
	failAll bool
	failIDs map[string]bool
	block   bool
}

var errScriptedWrite = errors.New("scripted write failure")

func (s *scriptedStore) Insert(ctx context.Context, entry journal.Entry) (journal.EntryID, error) {
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.failAll || s.failIDs[entry.EntryID] {
		return "", errScriptedWrite
	}
	return s.EntryStore.Insert(ctx, entry)
}

type failingLedger struct{}

var errLedgerDown = errors.New("ledger unavailable")

func (failingLedger) Touch(context.Context, string, time.Time) (engagement.StreakState, error) {
	return engagement.StreakState{}, errLedgerDown
}

func (failingLedger) Award(context.Context, string, engagement.ActivityKind) (bool, error) {
	return false, errLedgerDown
}

func (failingLedger) AwardMilestones(context.Context, string, int64) ([]engagement.BadgeID, error) {
	return nil, errLedgerDown
}
