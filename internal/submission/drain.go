package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/realtime"
	"go.uber.org/zap"
)

// DrainReport lists the entry ids a drain confirmed and the ones left in the queue after a failed write.
type DrainReport struct {
	Synced []string
	Failed []string
}

// Drain writes the queued entries to the record store one at a time, oldest first. A failed write
// leaves its entry queued and moves on. Confirmed entries are removed from the queue, then get the
// same escalation and engagement side effects as a direct submission, dated at drain time.
// Entries the store already holds are removed without re-applying side effects; an id the store
// holds for a different entry keeps the queued entry in place and reports it as failed.
func (o *Orchestrator) Drain(ctx context.Context) (DrainReport, error) {
	o.drainMu.Lock()
	defer o.drainMu.Unlock()

	report := DrainReport{Synced: []string{}, Failed: []string{}}
	if !o.connectivity.IsOnline() {
		return report, newServiceError(opDrain, "offline", ErrOffline)
	}

	pending, err := o.queue.List(ctx)
	if err != nil {
		o.logError(opDrain, "list_failed", err)
		return report, newServiceError(opDrain, "list_failed", fmt.Errorf("%w: %w", ErrStorageFailure, err))
	}
	if len(pending) == 0 {
		return report, nil
	}
	o.logger.Info("draining offline queue", zap.Int("pending", len(pending)))

	synced := make(map[string][]string)
	for _, item := range pending {
		if ctx.Err() != nil {
			break
		}
		if !o.connectivity.IsOnline() {
			o.logger.Warn("connectivity lost during drain", zap.Int("remaining", len(pending)-len(report.Synced)-len(report.Failed)))
			break
		}
		confirmed, fresh := o.drainOne(ctx, item)
		if !confirmed {
			report.Failed = append(report.Failed, item.EntryID)
			continue
		}
		report.Synced = append(report.Synced, item.EntryID)
		synced[item.AuthorID] = append(synced[item.AuthorID], item.EntryID)
		if fresh {
			o.afterDrained(ctx, item)
		}
	}

	now := o.clock().UTC()
	for authorID, entryIDs := range synced {
		o.publisher.Publish(realtime.Event{
			AuthorID:  authorID,
			Type:      realtime.EventEntrySynced,
			EntryIDs:  entryIDs,
			Timestamp: now,
		})
	}
	o.logger.Info("offline queue drained",
		zap.Int("synced", len(report.Synced)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// drainOne writes one pending entry. confirmed reports that the store holds it; fresh reports that
// this call wrote it.
func (o *Orchestrator) drainOne(ctx context.Context, item offline.PendingEntry) (confirmed bool, fresh bool) {
	fields := []zap.Field{zap.String("author_id", item.AuthorID), zap.String("entry_id", item.EntryID)}
	entry := entryFromPending(item)

	_, err := o.write(ctx, entry)
	duplicate := errors.Is(err, journal.ErrDuplicateEntry)
	if err != nil && !duplicate {
		o.logger.Warn("queued entry write failed, leaving it queued", append(fields, zap.Error(err))...)
		return false, false
	}
	if duplicate {
		if err := o.confirmReplay(ctx, opDrain, entry); err != nil {
			o.logger.Warn("queued entry id is held by another stored entry, leaving it queued",
				append(fields, zap.Error(err))...)
			return false, false
		}
	}
	if err := o.queue.Remove(ctx, item.EntryID); err != nil {
		o.logError(opDrain, "remove_failed", err, fields...)
	}
	return true, !duplicate
}

func (o *Orchestrator) afterDrained(ctx context.Context, item offline.PendingEntry) {
	effects := o.applyConfirmed(ctx, entryFromPending(item))
	if !effects.escalate {
		return
	}
	o.publisher.Publish(realtime.Event{
		AuthorID:       item.AuthorID,
		Type:           realtime.EventSafetyRecommendation,
		EntryIDs:       []string{item.EntryID},
		Level:          string(effects.signal.Level),
		Recommendation: effects.signal.Recommendation,
		Timestamp:      o.clock().UTC(),
	})
}

func entryFromPending(item offline.PendingEntry) journal.Entry {
	return journal.Entry{
		EntryID:          item.EntryID,
		AuthorID:         item.AuthorID,
		Text:             item.Text,
		Mood:             item.Mood,
		TagsJSON:         item.TagsJSON,
		CreatedAtSeconds: item.CreatedAtSeconds,
	}
}
