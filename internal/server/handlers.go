package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/distress"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/reflection"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/submission"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type submitRequestPayload struct {
	EntryID   string   `json:"entry_id"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at_s"`
}

type entryPayload struct {
	EntryID          string   `json:"entry_id"`
	AuthorID         string   `json:"author_id"`
	Text             string   `json:"text"`
	Mood             string   `json:"mood,omitempty"`
	Tags             []string `json:"tags"`
	CreatedAtSeconds int64    `json:"created_at_s"`
	QueuedAtSeconds  int64    `json:"queued_at_s,omitempty"`
}

type distressPayload struct {
	Level             string   `json:"level"`
	Triggers          []string `json:"triggers"`
	Recommendation    string   `json:"recommendation,omitempty"`
	ShouldShowSupport bool     `json:"should_show_support"`
}

type stepPayload struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	FollowUp string `json:"follow_up,omitempty"`
}

type transformationPayload struct {
	Set   string        `json:"set"`
	Steps []stepPayload `json:"steps"`
}

type submitResponsePayload struct {
	Outcome         string                 `json:"outcome"`
	Entry           *entryPayload          `json:"entry,omitempty"`
	Mood            string                 `json:"mood,omitempty"`
	Distress        *distressPayload       `json:"distress,omitempty"`
	ShowSafetyModal bool                   `json:"show_safety_modal"`
	Transformation  *transformationPayload `json:"transformation,omitempty"`
	NewBadges       []string               `json:"new_badges,omitempty"`
}

func (h *httpHandler) handleSubmitEntry(c *gin.Context) {
	var request submitRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	authorID := authorFromContext(c)

	var entryID journal.EntryID
	if strings.TrimSpace(request.EntryID) != "" {
		validated, err := journal.NewEntryID(request.EntryID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_entry"})
			return
		}
		entryID = validated
	}

	var createdAt time.Time
	if request.CreatedAt > 0 {
		createdAt = time.Unix(request.CreatedAt, 0).UTC()
	}
	result, err := h.pipeline.Submit(c.Request.Context(), submission.Request{
		AuthorID:  authorID,
		Premium:   c.GetBool(premiumContextKey),
		EntryID:   entryID,
		Text:      request.Text,
		Tags:      request.Tags,
		CreatedAt: createdAt,
	})
	if err != nil {
		status, reason := submitErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("entry submission failed", zap.String("author_id", authorID.String()), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": reason})
		return
	}

	response := submitResponsePayload{
		Outcome:         string(result.Outcome),
		Mood:            result.Mood,
		ShowSafetyModal: result.ShowSafetyModal,
		Transformation:  toTransformationPayload(result.Transformation),
	}
	switch result.Outcome {
	case submission.OutcomeQuotaExceeded:
		c.JSON(http.StatusPaymentRequired, response)
		return
	case submission.OutcomeQueued:
		response.Entry = toEntryPayload(result.Entry)
		c.JSON(http.StatusAccepted, response)
		return
	}
	response.Entry = toEntryPayload(result.Entry)
	response.Distress = toDistressPayload(result.Distress)
	response.NewBadges = make([]string, 0, len(result.NewBadges))
	for _, badge := range result.NewBadges {
		response.NewBadges = append(response.NewBadges, string(badge))
	}
	c.JSON(http.StatusOK, response)
}

func submitErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, submission.ErrEmptyEntry):
		return http.StatusBadRequest, "empty_entry"
	case errors.Is(err, journal.ErrInvalidEntryID), errors.Is(err, journal.ErrInvalidTimestamp):
		return http.StatusBadRequest, "invalid_entry"
	case errors.Is(err, submission.ErrEntryIDConflict):
		return http.StatusConflict, "entry_id_conflict"
	case errors.Is(err, submission.ErrMissingAuthor):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, submission.ErrStorageFailure):
		return http.StatusInsufficientStorage, "queue_write_failed"
	case errors.Is(err, submission.ErrTransientWrite):
		return http.StatusBadGateway, "write_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *httpHandler) handleActionCompleted(c *gin.Context) {
	entryID, err := journal.NewEntryID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_entry_id"})
		return
	}
	updated, err := h.pipeline.CompleteAction(c.Request.Context(), authorFromContext(c), entryID)
	switch {
	case errors.Is(err, submission.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "entry_not_found"})
		return
	case err != nil:
		h.logger.Error("action completion failed", zap.String("entry_id", entryID.String()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "write_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry_id": entryID.String(), "updated": updated})
}

type activityRequestPayload struct {
	Kind string `json:"kind"`
}

func (h *httpHandler) handleActivity(c *gin.Context) {
	var request activityRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Kind) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	kind := engagement.ActivityKind(strings.ToLower(strings.TrimSpace(request.Kind)))
	awarded, err := h.pipeline.RecordActivity(c.Request.Context(), authorFromContext(c), kind)
	if err != nil {
		h.logger.Error("activity reward failed", zap.String("kind", string(kind)), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "write_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"awarded": awarded})
}

func (h *httpHandler) handleQueue(c *gin.Context) {
	authorID := authorFromContext(c).String()
	pending, err := h.queue.List(c.Request.Context())
	if err != nil {
		h.logger.Error("queue listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue_read_failed"})
		return
	}
	entries := make([]entryPayload, 0, len(pending))
	for _, item := range pending {
		if item.AuthorID != authorID {
			continue
		}
		entries = append(entries, pendingPayload(item))
	}
	c.JSON(http.StatusOK, gin.H{"online": h.pipeline.IsOnline(), "pending": entries})
}

func (h *httpHandler) handleDrain(c *gin.Context) {
	report, err := h.pipeline.Drain(c.Request.Context())
	switch {
	case errors.Is(err, submission.ErrOffline):
		c.JSON(http.StatusConflict, gin.H{"error": "offline"})
		return
	case err != nil:
		h.logger.Error("queue drain failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "drain_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": report.Synced, "failed": report.Failed})
}

type badgePayload struct {
	BadgeID         string `json:"badge_id"`
	EarnedAtSeconds int64  `json:"earned_at_s"`
}

func (h *httpHandler) handleEngagement(c *gin.Context) {
	snapshot, err := h.engagement.Snapshot(c.Request.Context(), authorFromContext(c).String())
	if err != nil {
		h.logger.Error("engagement read failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "read_failed"})
		return
	}
	badges := make([]badgePayload, 0, len(snapshot.Badges))
	for _, badge := range snapshot.Badges {
		badges = append(badges, badgePayload{BadgeID: badge.BadgeID, EarnedAtSeconds: badge.EarnedAtSeconds})
	}
	c.JSON(http.StatusOK, gin.H{
		"streak": gin.H{
			"current":         snapshot.Streak.CurrentStreak,
			"longest":         snapshot.Streak.LongestStreak,
			"last_entry_date": snapshot.Streak.LastEntryDate,
		},
		"profile": gin.H{
			"xp":       snapshot.Profile.XP,
			"level":    snapshot.Profile.Level,
			"currency": snapshot.Profile.Currency,
		},
		"badges": badges,
	})
}

func toEntryPayload(entry journal.Entry) *entryPayload {
	tags := entry.Tags()
	if tags == nil {
		tags = []string{}
	}
	return &entryPayload{
		EntryID:          entry.EntryID,
		AuthorID:         entry.AuthorID,
		Text:             entry.Text,
		Mood:             entry.Mood,
		Tags:             tags,
		CreatedAtSeconds: entry.CreatedAtSeconds,
	}
}

func pendingPayload(item offline.PendingEntry) entryPayload {
	entry := toEntryPayload(journal.Entry{
		EntryID:          item.EntryID,
		AuthorID:         item.AuthorID,
		Text:             item.Text,
		Mood:             item.Mood,
		TagsJSON:         item.TagsJSON,
		CreatedAtSeconds: item.CreatedAtSeconds,
	})
	entry.QueuedAtSeconds = item.QueuedAtSeconds
	return *entry
}

func toDistressPayload(signal *distress.Signal) *distressPayload {
	if signal == nil {
		return nil
	}
	triggers := signal.Triggers
	if triggers == nil {
		triggers = []string{}
	}
	return &distressPayload{
		Level:             string(signal.Level),
		Triggers:          triggers,
		Recommendation:    signal.Recommendation,
		ShouldShowSupport: signal.ShouldShowSupport,
	}
}

func toTransformationPayload(artifact reflection.Artifact) *transformationPayload {
	steps := make([]stepPayload, 0, len(artifact.Steps))
	for _, step := range artifact.Steps {
		steps = append(steps, stepPayload{
			Kind:     string(step.Kind),
			Title:    step.Title,
			Body:     step.Body,
			FollowUp: step.FollowUp,
		})
	}
	return &transformationPayload{Set: string(artifact.Set), Steps: steps}
}
