package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loyaltyops/notify-dispatch/internal/dispatch"
	"github.com/loyaltyops/notify-dispatch/internal/model"
	"github.com/loyaltyops/notify-dispatch/internal/resolver"
	"github.com/loyaltyops/notify-dispatch/internal/template"
)

type fakeDispatch struct {
	// capture args
	gotEventKey   string
	gotUserID     int64
	gotUserIDs    []int64
	gotTemplateID int64
	gotData       template.Data

	// behavior
	outcomes []model.DeliveryOutcome
	report   []dispatch.CampaignResult
	err      error
}

var _ DispatchService = (*fakeDispatch)(nil)

func (f *fakeDispatch) TriggerByEvent(ctx context.Context, eventKey string, userID int64, data template.Data) ([]model.DeliveryOutcome, error) {
	f.gotEventKey = eventKey
	f.gotUserID = userID
	f.gotData = data
	return f.outcomes, f.err
}

func (f *fakeDispatch) SendManual(ctx context.Context, userID, templateID int64, data template.Data) ([]model.DeliveryOutcome, error) {
	f.gotUserID = userID
	f.gotTemplateID = templateID
	f.gotData = data
	return f.outcomes, f.err
}

func (f *fakeDispatch) SendCampaign(ctx context.Context, userIDs []int64, templateID int64, data template.Data) ([]dispatch.CampaignResult, error) {
	f.gotUserIDs = userIDs
	f.gotTemplateID = templateID
	f.gotData = data
	return f.report, f.err
}

type fakeWorker struct {
	running bool
}

func (f *fakeWorker) Start() bool {
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeWorker) Stop() bool {
	if !f.running {
		return false
	}
	f.running = false
	return true
}

func (f *fakeWorker) IsRunning() bool { return f.running }

type fakeDeliveries struct {
	gotLimit  int
	gotOffset int

	items []model.DeliveryAttempt
	err   error
}

func (f *fakeDeliveries) Insert(ctx context.Context, att *model.DeliveryAttempt) error {
	return errors.New("not implemented")
}

func (f *fakeDeliveries) ListRecent(ctx context.Context, limit, offset int) ([]model.DeliveryAttempt, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	return f.items, f.err
}

type fakeCampaignJobs struct {
	inserted []model.CampaignJob
	err      error
}

func (f *fakeCampaignJobs) Insert(ctx context.Context, job *model.CampaignJob) error {
	if f.err != nil {
		return f.err
	}
	job.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, *job)
	return nil
}

func (f *fakeCampaignJobs) ClaimDue(ctx context.Context, limit int) ([]model.CampaignJob, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCampaignJobs) MarkCompleted(ctx context.Context, id int64) error {
	return errors.New("not implemented")
}

func (f *fakeCampaignJobs) MarkFailed(ctx context.Context, id int64, reason string) error {
	return errors.New("not implemented")
}

func newTestServer(d *fakeDispatch, deliveries *fakeDeliveries, jobs *fakeCampaignJobs) http.Handler {
	h := NewHandler(d, &fakeWorker{}, deliveries, jobs)
	return Router(h)
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func postJSON(t *testing.T, mux http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, &fakeCampaignJobs{})

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected Content-Type application/json, got %q", ct)
	}

	body := decodeJSON(t, rr)
	if v, ok := body["ok"].(bool); !ok || !v {
		t.Fatalf("expected {ok:true}, got %v", body)
	}
}

func TestTriggerEvent(t *testing.T) {
	fd := &fakeDispatch{outcomes: []model.DeliveryOutcome{
		{Channel: model.ChannelSMS, Success: true, MessageID: "m1"},
	}}
	mux := newTestServer(fd, &fakeDeliveries{}, &fakeCampaignJobs{})

	rr := postJSON(t, mux, "/v1/events/trigger", `{"eventKey":"TICKET_ASSIGNED","userId":42,"data":{"ticketId":"TKT-007"}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fd.gotEventKey != "TICKET_ASSIGNED" || fd.gotUserID != 42 {
		t.Fatalf("unexpected call args: eventKey=%q userID=%d", fd.gotEventKey, fd.gotUserID)
	}
	if fd.gotData["ticketId"] != "TKT-007" {
		t.Fatalf("unexpected data: %v", fd.gotData)
	}

	body := decodeJSON(t, rr)
	outcomes, ok := body["outcomes"].([]any)
	if !ok || len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %v", body)
	}
}

func TestTriggerEvent_NoBindingReturnsEmptyList(t *testing.T) {
	// A silent no-op dispatch returns nil outcomes; the response still
	// carries an empty array, not null.
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, &fakeCampaignJobs{})

	rr := postJSON(t, mux, "/v1/events/trigger", `{"eventKey":"UNKNOWN","userId":1}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"outcomes":[]`) {
		t.Fatalf("expected empty outcomes array, got %q", rr.Body.String())
	}
}

func TestTriggerEvent_BadRequests(t *testing.T) {
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, &fakeCampaignJobs{})

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `not json`},
		{"missing eventKey", `{"userId":42}`},
		{"missing userId", `{"eventKey":"X"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := postJSON(t, mux, "/v1/events/trigger", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%q", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSendManual(t *testing.T) {
	fd := &fakeDispatch{outcomes: []model.DeliveryOutcome{
		{Channel: model.ChannelSMS, Success: true},
		{Channel: model.ChannelPush, Success: false, Error: "rejected"},
	}}
	mux := newTestServer(fd, &fakeDeliveries{}, &fakeCampaignJobs{})

	rr := postJSON(t, mux, "/v1/notifications/manual", `{"userId":5,"templateId":3,"data":{"name":"Ana"}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fd.gotUserID != 5 || fd.gotTemplateID != 3 {
		t.Fatalf("unexpected call args: userID=%d templateID=%d", fd.gotUserID, fd.gotTemplateID)
	}

	body := decodeJSON(t, rr)
	outcomes, ok := body["outcomes"].([]any)
	if !ok || len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %v", body)
	}
}

func TestSendManual_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"template not found", resolver.ErrTemplateNotFound, http.StatusNotFound},
		{"trigger type mismatch", resolver.ErrTriggerTypeMismatch, http.StatusBadRequest},
		{"storage failure", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fd := &fakeDispatch{err: tc.err}
			mux := newTestServer(fd, &fakeDeliveries{}, &fakeCampaignJobs{})

			rr := postJSON(t, mux, "/v1/notifications/manual", `{"userId":5,"templateId":3}`)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d body=%q", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestSendCampaign(t *testing.T) {
	fd := &fakeDispatch{report: []dispatch.CampaignResult{
		{UserID: 1, Outcomes: []model.DeliveryOutcome{{Channel: model.ChannelSMS, Success: true}}},
		{UserID: 2},
	}}
	mux := newTestServer(fd, &fakeDeliveries{}, &fakeCampaignJobs{})

	rr := postJSON(t, mux, "/v1/campaigns/send", `{"userIds":[1,2],"templateId":8,"data":{}}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if len(fd.gotUserIDs) != 2 || fd.gotTemplateID != 8 {
		t.Fatalf("unexpected call args: userIDs=%v templateID=%d", fd.gotUserIDs, fd.gotTemplateID)
	}

	body := decodeJSON(t, rr)
	report, ok := body["report"].([]any)
	if !ok || len(report) != 2 {
		t.Fatalf("expected 2 report entries, got %v", body)
	}
}

func TestSendCampaign_EmptyUserIDs(t *testing.T) {
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, &fakeCampaignJobs{})

	rr := postJSON(t, mux, "/v1/campaigns/send", `{"userIds":[],"templateId":8}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestScheduleCampaign(t *testing.T) {
	jobs := &fakeCampaignJobs{}
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, jobs)

	rr := postJSON(t, mux, "/v1/campaigns", `{"userIds":[1,2,3],"templateId":8,"data":{"promo":"SUMMER"},"scheduledAt":"2026-09-01T08:00:00Z"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%q", rr.Code, rr.Body.String())
	}
	if len(jobs.inserted) != 1 {
		t.Fatalf("expected 1 inserted job, got %d", len(jobs.inserted))
	}

	job := jobs.inserted[0]
	if job.TemplateID != 8 || len(job.UserIDs) != 3 || job.Status != model.CampaignPending {
		t.Fatalf("unexpected job: %+v", job)
	}
	if got := job.ScheduledAt.Format("2006-01-02T15:04:05Z"); got != "2026-09-01T08:00:00Z" {
		t.Fatalf("unexpected scheduledAt: %v", job.ScheduledAt)
	}

	body := decodeJSON(t, rr)
	if status, ok := body["status"].(string); !ok || status != "pending" {
		t.Fatalf("expected status pending, got %v", body)
	}
}

func TestScheduleCampaign_BadScheduledAt(t *testing.T) {
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, &fakeCampaignJobs{})

	rr := postJSON(t, mux, "/v1/campaigns", `{"userIds":[1],"templateId":8,"scheduledAt":"tomorrow"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestListDeliveries_DefaultsAndArgs(t *testing.T) {
	fr := &fakeDeliveries{
		items: []model.DeliveryAttempt{
			{ID: 1, UserID: 42, Channel: model.ChannelSMS, Status: model.DeliverySent},
		},
	}
	mux := newTestServer(&fakeDispatch{}, fr, &fakeCampaignJobs{})

	// No query params => defaults (limit=50, offset=0)
	req := httptest.NewRequest(http.MethodGet, "/v1/deliveries", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fr.gotLimit != 50 || fr.gotOffset != 0 {
		t.Fatalf("expected repo called with limit=50 offset=0, got limit=%d offset=%d", fr.gotLimit, fr.gotOffset)
	}

	body := decodeJSON(t, rr)
	items, ok := body["items"].([]any)
	if !ok {
		t.Fatalf("expected items array, got %T %v", body["items"], body)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestListDeliveries_ParsesLimitOffset(t *testing.T) {
	fr := &fakeDeliveries{}
	mux := newTestServer(&fakeDispatch{}, fr, &fakeCampaignJobs{})

	req := httptest.NewRequest(http.MethodGet, "/v1/deliveries?limit=10&offset=5", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if fr.gotLimit != 10 || fr.gotOffset != 5 {
		t.Fatalf("expected repo called with limit=10 offset=5, got limit=%d offset=%d", fr.gotLimit, fr.gotOffset)
	}
}

func TestListDeliveries_RepoErrorReturns500(t *testing.T) {
	fr := &fakeDeliveries{err: errors.New("db down")}
	mux := newTestServer(&fakeDispatch{}, fr, &fakeCampaignJobs{})

	req := httptest.NewRequest(http.MethodGet, "/v1/deliveries", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "db down") {
		t.Fatalf("expected error body to contain repo error, got %q", rr.Body.String())
	}
}

func TestWorkerEndpoints(t *testing.T) {
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, &fakeCampaignJobs{})

	// Initially should be false.
	{
		req := httptest.NewRequest(http.MethodGet, "/v1/worker/status", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
		}
		body := decodeJSON(t, rr)
		if running, ok := body["running"].(bool); !ok || running {
			t.Fatalf("expected running=false, got %v", body)
		}
	}

	// Start
	{
		rr := postJSON(t, mux, "/v1/worker/start", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
		}
		body := decodeJSON(t, rr)
		if running, ok := body["running"].(bool); !ok || !running {
			t.Fatalf("expected running=true after start, got %v", body)
		}
	}

	// Stop
	{
		rr := postJSON(t, mux, "/v1/worker/stop", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
		}
		body := decodeJSON(t, rr)
		if running, ok := body["running"].(bool); !ok || running {
			t.Fatalf("expected running=false after stop, got %v", body)
		}
	}
}

func TestRouterRoot(t *testing.T) {
	mux := newTestServer(&fakeDispatch{}, &fakeDeliveries{}, &fakeCampaignJobs{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "notify-dispatch" {
		t.Fatalf("expected body %q, got %q", "notify-dispatch", got)
	}
}
