package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/distress"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/submission"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSigningSecret = "router-secret"

type testStack struct {
	handler    http.Handler
	signal     *offline.Signal
	queue      *offline.SQLiteQueue
	dispatcher *realtime.Dispatcher
}

func newTestStack(t *testing.T, online bool) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	records, err := gorm.Open(sqlite.Open(filepath.Join(dir, "records.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open record store: %v", err)
	}
	recordModels := []interface{}{&journal.Entry{}, &distress.Record{}, &distress.RecommendationEvent{}, &users.Identity{}}
	if err := records.AutoMigrate(append(recordModels, engagement.Models()...)...); err != nil {
		t.Fatalf("failed to migrate record store: %v", err)
	}
	local, err := gorm.Open(sqlite.Open(filepath.Join(dir, "local.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	if err := local.AutoMigrate(&offline.PendingEntry{}, &submission.QuotaUsage{}, &users.DeviceIdentity{}); err != nil {
		t.Fatalf("failed to migrate local store: %v", err)
	}

	journalService, err := journal.NewService(journal.ServiceConfig{Database: records, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("journal service: %v", err)
	}
	history, err := distress.NewHistory(records)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	ledger, err := engagement.NewLedger(engagement.LedgerConfig{Database: records, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	queue, err := offline.NewSQLiteQueue(local)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	quota, err := submission.NewLocalQuotaCounter(local, nil)
	if err != nil {
		t.Fatalf("quota: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: records, LocalStore: local})
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}

	signal := offline.NewSignal(online)
	dispatcher := realtime.NewDispatcher()
	orchestrator, err := submission.New(submission.Config{
		Entries:      journalService,
		Queue:        queue,
		Connectivity: signal,
		History:      history,
		Ledger:       ledger,
		Quota:        quota,
		Publisher:    dispatcher,
		Location:     time.UTC,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Pipeline:          orchestrator,
		Queue:             queue,
		Engagement:        ledger,
		Sessions:          sessions,
		Authors:           userService,
		Realtime:          dispatcher,
		AllowedOrigins:    []string{"http://localhost:5173"},
		HeartbeatInterval: time.Hour,
		Logger:            zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &testStack{handler: handler, signal: signal, queue: queue, dispatcher: dispatcher}
}

func sessionCookie(t *testing.T, userID string, roles ...string) *http.Cookie {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID:    userID,
		UserRoles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    auth.DefaultSessionIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign session: %v", err)
	}
	return &http.Cookie{Name: auth.DefaultSessionCookieName, Value: signed}
}

func (s *testStack) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestSubmitEntryPersistedResponse(t *testing.T) {
	stack := newTestStack(t, true)

	recorder := stack.do(t, http.MethodPost, "/api/entries", `{"text":"I feel hopeful about the new job","tags":["work"]}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["outcome"] != "persisted" || payload["mood"] != "hopeful" {
		t.Fatalf("unexpected payload %v", payload)
	}
	transformation, ok := payload["transformation"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected transformation object, got %v", payload["transformation"])
	}
	if steps, ok := transformation["steps"].([]interface{}); !ok || len(steps) != 4 {
		t.Fatalf("expected four steps, got %v", transformation["steps"])
	}
	if _, ok := payload["distress"].(map[string]interface{}); !ok {
		t.Fatalf("expected distress signal on persisted entry")
	}
	entry := payload["entry"].(map[string]interface{})
	if !strings.HasPrefix(entry["author_id"].(string), users.DeviceAuthorPrefix) {
		t.Fatalf("expected anonymous device author, got %v", entry["author_id"])
	}
}

func TestSubmitEntryOfflineAndDrain(t *testing.T) {
	stack := newTestStack(t, false)

	recorder := stack.do(t, http.MethodPost, "/api/entries", `{"text":"written without signal"}`)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if payload := decodeBody(t, recorder); payload["outcome"] != "queued" {
		t.Fatalf("expected queued outcome, got %v", payload)
	}

	queueResponse := decodeBody(t, stack.do(t, http.MethodGet, "/api/queue", ""))
	if queueResponse["online"] != false {
		t.Fatalf("expected offline flag, got %v", queueResponse["online"])
	}
	if pending := queueResponse["pending"].([]interface{}); len(pending) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(pending))
	}

	if recorder := stack.do(t, http.MethodPost, "/api/queue/drain", ""); recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 while offline, got %d", recorder.Code)
	}

	stack.signal.Set(true)
	drained := stack.do(t, http.MethodPost, "/api/queue/drain", "")
	if drained.Code != http.StatusOK {
		t.Fatalf("expected 200 after reconnect, got %d: %s", drained.Code, drained.Body.String())
	}
	if synced := decodeBody(t, drained)["synced"].([]interface{}); len(synced) != 1 {
		t.Fatalf("expected one synced entry, got %v", synced)
	}

	engagementResponse := decodeBody(t, stack.do(t, http.MethodGet, "/api/engagement", ""))
	streak := engagementResponse["streak"].(map[string]interface{})
	if streak["current"].(float64) != 1 {
		t.Fatalf("expected streak 1 after drain, got %v", streak["current"])
	}
}

func TestSubmitEntryErrors(t *testing.T) {
	stack := newTestStack(t, true)

	testCases := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{name: "empty text", body: `{"text":"   "}`, status: http.StatusBadRequest, reason: "empty_entry"},
		{name: "malformed json", body: `{"text":`, status: http.StatusBadRequest},
		{name: "over-long entry id", body: `{"entry_id":"` + strings.Repeat("x", 191) + `","text":"hello"}`, status: http.StatusBadRequest, reason: "invalid_entry"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := stack.do(t, http.MethodPost, "/api/entries", testCase.body)
			if recorder.Code != testCase.status {
				t.Fatalf("expected %d, got %d: %s", testCase.status, recorder.Code, recorder.Body.String())
			}
			if testCase.reason != "" && decodeBody(t, recorder)["error"] != testCase.reason {
				t.Fatalf("expected error %q, got %s", testCase.reason, recorder.Body.String())
			}
		})
	}

	queued := decodeBody(t, stack.do(t, http.MethodGet, "/api/queue", ""))
	if pending := queued["pending"].([]interface{}); len(pending) != 0 {
		t.Fatalf("expected nothing accepted, got %v", pending)
	}
}

func TestSubmitEntryIDHeldByAnotherAuthorConflicts(t *testing.T) {
	stack := newTestStack(t, true)
	body := `{"entry_id":"shared-id","text":"my own words"}`

	if first := stack.do(t, http.MethodPost, "/api/entries", body, sessionCookie(t, "google:first")); first.Code != http.StatusOK {
		t.Fatalf("expected 200 for the first author, got %d: %s", first.Code, first.Body.String())
	}
	second := stack.do(t, http.MethodPost, "/api/entries", body, sessionCookie(t, "google:second"))
	if second.Code != http.StatusConflict || decodeBody(t, second)["error"] != "entry_id_conflict" {
		t.Fatalf("expected 409 entry_id_conflict, got %d: %s", second.Code, second.Body.String())
	}
}

func TestSubmitEntryQuotaAndPremium(t *testing.T) {
	stack := newTestStack(t, true)
	free := sessionCookie(t, "google:free-user")

	for i := 0; i < submission.DefaultFreeEntryLimit; i++ {
		if recorder := stack.do(t, http.MethodPost, "/api/entries", `{"text":"daily note"}`, free); recorder.Code != http.StatusOK {
			t.Fatalf("entry %d: expected 200, got %d", i, recorder.Code)
		}
	}
	limited := stack.do(t, http.MethodPost, "/api/entries", `{"text":"daily note"}`, free)
	if limited.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", limited.Code, limited.Body.String())
	}
	if payload := decodeBody(t, limited); payload["outcome"] != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded outcome, got %v", payload)
	}

	premium := sessionCookie(t, "google:premium-user", auth.RolePremium)
	for i := 0; i <= submission.DefaultFreeEntryLimit; i++ {
		if recorder := stack.do(t, http.MethodPost, "/api/entries", `{"text":"daily note"}`, premium); recorder.Code != http.StatusOK {
			t.Fatalf("premium entry %d: expected 200, got %d", i, recorder.Code)
		}
	}
}

func TestInvalidSessionIsRejected(t *testing.T) {
	stack := newTestStack(t, true)
	recorder := stack.do(t, http.MethodGet, "/api/engagement", "", &http.Cookie{Name: auth.DefaultSessionCookieName, Value: "forged"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestActionCompletedAndActivities(t *testing.T) {
	stack := newTestStack(t, true)
	cookie := sessionCookie(t, "google:writer")

	created := decodeBody(t, stack.do(t, http.MethodPost, "/api/entries", `{"entry_id":"entry-42","text":"plan a walk"}`, cookie))
	if created["outcome"] != "persisted" {
		t.Fatalf("expected persisted, got %v", created)
	}

	completed := stack.do(t, http.MethodPost, "/api/entries/entry-42/action-completed", "", cookie)
	if completed.Code != http.StatusOK || decodeBody(t, completed)["updated"] != true {
		t.Fatalf("expected completion update, got %d: %s", completed.Code, completed.Body.String())
	}
	if missing := stack.do(t, http.MethodPost, "/api/entries/nope/action-completed", "", cookie); missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown entry, got %d", missing.Code)
	}

	activity := stack.do(t, http.MethodPost, "/api/activities", `{"kind":"breathing_exercise"}`, cookie)
	if activity.Code != http.StatusOK || decodeBody(t, activity)["awarded"] != true {
		t.Fatalf("expected activity reward, got %d: %s", activity.Code, activity.Body.String())
	}

	profile := decodeBody(t, stack.do(t, http.MethodGet, "/api/engagement", "", cookie))["profile"].(map[string]interface{})
	if profile["xp"].(float64) != 40 {
		t.Fatalf("expected 10+20+10 xp, got %v", profile["xp"])
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	stack := newTestStack(t, true)
	request := httptest.NewRequest(http.MethodOptions, "/api/entries", http.NoBody)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	stack.handler.ServeHTTP(recorder, request)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected configured origin to be allowed, got %q", got)
	}
}

func TestEventsStreamDeliversPublishedEvents(t *testing.T) {
	stack := newTestStack(t, true)
	server := httptest.NewServer(stack.handler)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/events", http.NoBody)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	request.AddCookie(sessionCookie(t, "google:listener"))
	response, err := server.Client().Do(request)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for stack.dispatcher.SubscriberCount("listener") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected the stream to subscribe")
		}
		time.Sleep(10 * time.Millisecond)
	}
	stack.dispatcher.Publish(realtime.Event{AuthorID: "listener", Type: realtime.EventEntrySynced, EntryIDs: []string{"entry-1"}})

	lines := make(chan string, 8)
	go func() {
		scanner := bufio.NewScanner(response.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatal("stream closed before the event arrived")
			}
			if line == "event:"+realtime.EventEntrySynced {
				return
			}
		case <-timeout:
			t.Fatal("expected entry-synced event on the stream")
		}
	}
}
