package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httphandler "github.com/lvalenta/pilltrack/internal/adapter/driving/http"
	"github.com/lvalenta/pilltrack/internal/application"
	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

// stubClient is an in-memory MedicationClient with scriptable failures.
type stubClient struct {
	mu            sync.Mutex
	prescriptions []model.Prescription
	reminders     []model.Reminder
	updateErr     error
	deleteErr     error
	submitErr     error

	fetchRxCalls  int
	fetchRemCalls int
	updates       []driven.ReminderPatch
	deleted       []string
	submissions   []driven.PrescriptionSubmission
}

func (c *stubClient) FetchPrescriptions(_ context.Context, _ string) ([]model.Prescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchRxCalls++
	return append([]model.Prescription(nil), c.prescriptions...), nil
}

func (c *stubClient) FetchReminders(_ context.Context, _ string) ([]model.Reminder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchRemCalls++
	return append([]model.Reminder(nil), c.reminders...), nil
}

func (c *stubClient) UpdateReminder(_ context.Context, id string, patch driven.ReminderPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	c.updates = append(c.updates, patch)
	for i := range c.reminders {
		if c.reminders[i].ID == id && patch.IsActive != nil {
			c.reminders[i].IsActive = *patch.IsActive
		}
	}
	return nil
}

func (c *stubClient) DeleteReminder(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, id)
	kept := c.reminders[:0]
	for _, rem := range c.reminders {
		if rem.ID != id {
			kept = append(kept, rem)
		}
	}
	c.reminders = kept
	return nil
}

func (c *stubClient) SubmitPrescription(_ context.Context, _ string, sub driven.PrescriptionSubmission) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErr != nil {
		return c.submitErr
	}
	c.submissions = append(c.submissions, sub)
	return nil
}

// stubProbe reports a fixed connectivity.
type stubProbe struct {
	mu   sync.Mutex
	conn model.Connectivity
}

func (p *stubProbe) Check(context.Context) model.Connectivity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

func (p *stubProbe) set(conn model.Connectivity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = conn
}

// memMetaStore is an in-memory SyncMetaStore.
type memMetaStore struct {
	mu    sync.Mutex
	metas map[string]model.SyncMetadata
}

func newMemMetaStore() *memMetaStore {
	return &memMetaStore{metas: make(map[string]model.SyncMetadata)}
}

func (s *memMetaStore) Upsert(_ context.Context, meta model.SyncMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[meta.Collection+"_"+meta.OwnerID] = meta
	return nil
}

func (s *memMetaStore) Get(_ context.Context, collection, ownerID string) (*model.SyncMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.metas[collection+"_"+ownerID]
	if !ok {
		return nil, nil
	}
	return &meta, nil
}

// memDraftStore is an in-memory DraftStore.
type memDraftStore struct {
	mu     sync.Mutex
	drafts map[string]model.Draft
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{drafts: make(map[string]model.Draft)}
}

func (s *memDraftStore) Save(_ context.Context, draft model.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if draft.LastModified.IsZero() {
		draft.LastModified = time.Now()
	}
	s.drafts[draft.ID] = draft
	return nil
}

func (s *memDraftStore) Get(_ context.Context, id string) (*model.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[id]
	if !ok {
		return nil, nil
	}
	return &draft, nil
}

func (s *memDraftStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.drafts))
	for id := range s.drafts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.drafts[ids[i]].LastModified.After(s.drafts[ids[j]].LastModified)
	})
	return ids, nil
}

func (s *memDraftStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}

func (s *memDraftStore) Sweep(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	evicted := 0
	for id, draft := range s.drafts {
		if draft.LastModified.Before(cutoff) {
			delete(s.drafts, id)
			evicted++
		}
	}
	return evicted, nil
}

type testEnv struct {
	api    http.Handler
	client *stubClient
	probe  *stubProbe
	drafts *memDraftStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	client := &stubClient{
		prescriptions: []model.Prescription{
			{ID: "rx1", OwnerID: "u1", Medication: "Metformin", Dosage: "500mg",
				Status: model.PrescriptionStatusActive, PrescribedAt: time.Now().Add(-48 * time.Hour)},
		},
		reminders: []model.Reminder{
			{ID: "rem1", OwnerID: "u1", Medication: "Metformin", TimeOfDay: "08:00",
				IsActive: true, Schedule: model.ScheduleDaily},
			{ID: "rem2", OwnerID: "u1", Medication: "Lisinopril", TimeOfDay: "21:00",
				IsActive: false, Schedule: model.ScheduleOnce,
				ScheduledFor: time.Now().Add(24 * time.Hour)},
		},
	}
	probe := &stubProbe{conn: model.ConnectivityWiFi}
	meta := newMemMetaStore()
	draftStore := newMemDraftStore()

	prescriptions := application.NewPrescriptionCollection(client, meta, probe, time.Hour, time.Second, nil)
	reminders := application.NewReminderCollection(client, meta, probe, time.Hour, time.Second, nil)
	guard := application.NewMutationGuard(reminders, nil)
	draftSvc := application.NewDraftService(draftStore, client, 0, 0, nil)

	handler := httphandler.NewHandler(prescriptions, reminders, guard, draftSvc, client, probe, nil)

	return &testEnv{
		api:    httphandler.NewServeMux(handler, testLogger()),
		client: client,
		probe:  probe,
		drafts: draftStore,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// do performs a request against the in-process API.
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.api.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestListPrescriptions_FetchesThenServesCache(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[httphandler.PrescriptionListResponse](t, rec)
	assert.Equal(t, "refreshed", resp.Outcome)
	require.Len(t, resp.Prescriptions, 1)
	assert.Equal(t, "Metformin", resp.Prescriptions[0].Medication)
	assert.Equal(t, 1, resp.RecordCount)
	assert.NotEmpty(t, resp.LastSyncAt)

	rec = env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[httphandler.PrescriptionListResponse](t, rec)
	assert.Equal(t, "using_cache", resp.Outcome)
	assert.Equal(t, 1, env.client.fetchRxCalls, "fresh cache must not refetch")
}

func TestListPrescriptions_RefreshForcesFetch(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions", "")
	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions?refresh=true", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.PrescriptionListResponse](t, rec)
	assert.Equal(t, "refreshed", resp.Outcome)
	assert.Equal(t, 2, env.client.fetchRxCalls)
}

func TestListPrescriptions_OfflineNoCache(t *testing.T) {
	env := newTestEnv(t)
	env.probe.set(model.ConnectivityNone)

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListPrescriptions_OfflineServesCache(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions", "")
	env.probe.set(model.ConnectivityNone)

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[httphandler.PrescriptionListResponse](t, rec)
	assert.Equal(t, "using_cache", resp.Outcome)
	require.Len(t, resp.Prescriptions, 1)
}

func TestListReminders_SortedByTimeOfDay(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/reminders", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[httphandler.ReminderListResponse](t, rec)
	require.Len(t, resp.Reminders, 2)
	assert.Equal(t, "rem1", resp.Reminders[0].ID)
	assert.Equal(t, "rem2", resp.Reminders[1].ID)
}

func TestToggleReminder_OptimisticDeactivate(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/users/u1/reminders", "")

	rec := env.do(t, http.MethodPost, "/api/v1/users/u1/reminders/rem1/toggle", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[httphandler.ReminderResponse](t, rec)
	assert.False(t, resp.IsActive)
	require.Len(t, env.client.updates, 1)
	require.NotNil(t, env.client.updates[0].IsActive)
	assert.False(t, *env.client.updates[0].IsActive)
}

func TestToggleReminder_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/users/u1/reminders", "")

	rec := env.do(t, http.MethodPost, "/api/v1/users/u1/reminders/nope/toggle", `{"is_active":false}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleReminder_ElapsedOneShotConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/users/u1/reminders", "")

	env.client.mu.Lock()
	env.client.updateErr = model.ErrReminderElapsed
	env.client.mu.Unlock()

	// rem2 is a one-shot reminder; reactivation must wait for the server
	// and surface its rejection.
	rec := env.do(t, http.MethodPost, "/api/v1/users/u1/reminders/rem2/toggle", `{"is_active":true}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	// The rejected reactivation never became visible locally.
	list := env.do(t, http.MethodGet, "/api/v1/users/u1/reminders", "")
	resp := decode[httphandler.ReminderListResponse](t, list)
	for _, rem := range resp.Reminders {
		if rem.ID == "rem2" {
			assert.False(t, rem.IsActive)
		}
	}
}

func TestDeleteReminder_RemovesLocally(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/users/u1/reminders", "")

	rec := env.do(t, http.MethodDelete, "/api/v1/users/u1/reminders/rem1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"rem1"}, env.client.deleted)

	list := env.do(t, http.MethodGet, "/api/v1/users/u1/reminders", "")
	resp := decode[httphandler.ReminderListResponse](t, list)
	for _, rem := range resp.Reminders {
		assert.NotEqual(t, "rem1", rem.ID)
	}
}

func TestDraftLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Create.
	rec := env.do(t, http.MethodPost, "/api/v1/drafts",
		`{"kind":"ocr","data":{"medication":"Metformin","dosage":"500mg"},"image_paths":[]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.DraftResponse](t, rec)
	assert.Equal(t, "ocr", created.Kind)
	assert.True(t, strings.HasPrefix(created.ID, "ocr_"))

	// List.
	rec = env.do(t, http.MethodGet, "/api/v1/drafts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[httphandler.DraftListResponse](t, rec)
	assert.Contains(t, list.IDs, created.ID)

	// Get.
	rec = env.do(t, http.MethodGet, "/api/v1/drafts/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Save an update.
	rec = env.do(t, http.MethodPut, "/api/v1/drafts/"+created.ID,
		`{"data":{"medication":"Metformin","dosage":"850mg"},"image_paths":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Resume with validation.
	rec = env.do(t, http.MethodGet, "/api/v1/drafts/"+created.ID+"/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Submit: forwards to the remote and deletes the draft.
	rec = env.do(t, http.MethodPost, "/api/v1/users/u1/drafts/"+created.ID+"/submit", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, env.client.submissions, 1)
	assert.Equal(t, "Metformin", env.client.submissions[0].Medication)
	assert.Equal(t, "850mg", env.client.submissions[0].Dosage)

	rec = env.do(t, http.MethodGet, "/api/v1/drafts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDraft_UnknownKind(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/drafts", `{"kind":"fax","data":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResumeDraft_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/drafts",
		`{"kind":"ocr","data":{"dosage":"500mg"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.DraftResponse](t, rec)

	rec = env.do(t, http.MethodGet, "/api/v1/drafts/"+created.ID+"/resume", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestResumeDraft_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/drafts/ocr_0_missing/resume", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitDraft_RemoteFailureKeepsDraft(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/drafts",
		`{"kind":"ocr","data":{"medication":"Metformin","dosage":"500mg"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[httphandler.DraftResponse](t, rec)

	env.client.mu.Lock()
	env.client.submitErr = context.DeadlineExceeded
	env.client.mu.Unlock()

	rec = env.do(t, http.MethodPost, "/api/v1/users/u1/drafts/"+created.ID+"/submit", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/drafts/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code, "failed submission must keep the draft")
}

func TestStatus_ReportsConnectivityAndSyncState(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/users/u1/prescriptions", "")

	rec := env.do(t, http.MethodGet, "/api/v1/users/u1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[httphandler.StatusResponse](t, rec)
	assert.Equal(t, "wifi", resp.Connectivity)
	assert.Equal(t, 1, resp.Prescriptions.RecordCount)
	assert.NotEmpty(t, resp.Prescriptions.LastSyncAt)
	assert.Positive(t, resp.Prescriptions.FreshForSecs)
	assert.Empty(t, resp.Reminders.LastSyncAt, "reminders never synced")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[httphandler.HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
}
