package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (d *memDocs) Get(ctx context.Context, key string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	body, ok := d.docs[key]
	if !ok {
		return nil, settings.ErrDocumentNotFound
	}
	return body, nil
}

func (d *memDocs) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.docs, key)
	return nil
}

func (d *memDocs) Put(ctx context.Context, key string, body []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[key] = append([]byte(nil), body...)
	return nil
}

type stubMenu struct {
	menu.Controller
	info menu.Info
}

func (s *stubMenu) ThreadID() string  { return s.info.ThreadID }
func (s *stubMenu) Recipient() string { return s.info.ThreadID }
func (s *stubMenu) Info() menu.Info   { return s.info }

type fakeRouter struct {
	mu       sync.Mutex
	registry *menu.Registry
	ready    []menu.ThreadReady
	closed   []string
	replied  []string
	readyErr error
	operator bool
}

func (f *fakeRouter) OnThreadReady(ctx context.Context, ev menu.ThreadReady) (*menu.Menu, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, ev)
	return nil, f.readyErr
}

func (f *fakeRouter) OnThreadClosed(ctx context.Context, threadID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, threadID)
	return threadID == "open"
}

func (f *fakeRouter) OnThreadReplied(ctx context.Context, threadID, messageID string, fromOperator bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replied = append(f.replied, threadID+"/"+messageID)
	f.operator = fromOperator
	return true
}

func (f *fakeRouter) Registry() *menu.Registry { return f.registry }
func (f *fakeRouter) Strategy() menu.Strategy  { return menu.Reactive{} }

type harness struct {
	router  *fakeRouter
	manager *settings.Manager
	handler http.Handler
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	mgr := settings.NewManager(settings.NewDocumentStore(&memDocs{docs: map[string][]byte{}}, ""), 2, nil)
	require.NoError(t, mgr.Load(context.Background()))

	reg := prometheus.NewRegistry()
	menu.NewMetrics(reg)

	router := &fakeRouter{registry: menu.NewRegistry()}
	gw := New(Config{AuthToken: token}, router, mgr, reg, func(ctx context.Context) map[string]any {
		return map[string]any{"discord": map[string]any{"connected": true}}
	}, nil)
	return &harness{router: router, manager: mgr, handler: gw.Handler()}
}

func (h *harness) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCompareTokens(t *testing.T) {
	assert.True(t, compareTokens("secret", "secret"))
	assert.False(t, compareTokens("secret", "secreT"))
	assert.False(t, compareTokens("", "secret"))
}

func TestAuth(t *testing.T) {
	h := newHarness(t, "s3cret")

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing token", "/api/menus", "", http.StatusUnauthorized},
		{"wrong token", "/api/menus", "nope", http.StatusUnauthorized},
		{"valid token", "/api/menus", "s3cret", http.StatusOK},
		{"metrics need token", "/metrics", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodGet, tt.path, "", tt.token)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["active_menus"])
	assert.Contains(t, body, "discord")
}

func TestThreadReady(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, http.MethodPost, "/v1/threads/user-1/ready",
		`{"channel_id":"chan-1","recipient_ids":["user-1"],"initiating":{"channel_id":"dm-1","message_id":"m-1"}}`, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	require.Len(t, h.router.ready, 1)
	ev := h.router.ready[0]
	assert.Equal(t, "user-1", ev.Thread.ID)
	assert.Equal(t, "chan-1", ev.Thread.ChannelID)
	assert.Equal(t, []string{"user-1"}, ev.Thread.RecipientIDs)
	assert.Equal(t, "m-1", ev.Initiating.MessageID)
}

func TestThreadReady_Errors(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodPost, "/v1/threads/user-1/ready", `{"bogus":1}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.router.readyErr = menu.ErrMenuExists
	rec = h.do(t, http.MethodPost, "/v1/threads/user-1/ready", `{"channel_id":"chan-1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/threads/user-1/ready", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestThreadClosedAndReplied(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodPost, "/v1/threads/open/closed", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[disbandResponse](t, rec).Disbanded)

	rec = h.do(t, http.MethodPost, "/v1/threads/gone/closed", "", "")
	assert.False(t, decodeBody[disbandResponse](t, rec).Disbanded)

	rec = h.do(t, http.MethodPost, "/v1/threads/open/replied", `{"message_id":"m-7","from_operator":true}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"open/m-7"}, h.router.replied)
	assert.True(t, h.router.operator)
}

func TestListMenus(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.router.registry.Register("user-2", &stubMenu{info: menu.Info{ThreadID: "user-2", Variant: "reactive", State: "active"}}))
	require.NoError(t, h.router.registry.Register("user-1", &stubMenu{info: menu.Info{ThreadID: "user-1", Variant: "reactive", State: "active"}}))

	rec := h.do(t, http.MethodGet, "/api/menus", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody[[]menu.Info](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "user-1", list[0].ThreadID)
	assert.Equal(t, "user-2", list[1].ThreadID)
}

func TestConfigAPI_Reset(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.manager.ToggleCategory(context.Background(), settings.Category{ID: "100", Label: "Billing"})
	require.NoError(t, err)

	rec := h.do(t, http.MethodPost, "/api/config/reset", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decodeBody[settings.Configuration](t, rec)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.Categories)
	assert.Empty(t, h.manager.Snapshot().Categories)
}

func TestConfigAPI(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodPost, "/api/config/toggle", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[toggleResponse](t, rec).Enabled)

	rec = h.do(t, http.MethodPost, "/api/config/categories", `{"id":"100","label":"Billing"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[categoryResponse](t, rec).Configured)

	rec = h.do(t, http.MethodPost, "/api/config/categories", `{"id":"200","label":"Abuse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/config/categories", `{"id":"300","label":"Other"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/config/categories", `{"id":" "}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/config/categories/100", `{"label":"Payments","description":"Invoices"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payments", decodeBody[settings.Category](t, rec).Label)

	rec = h.do(t, http.MethodPut, "/api/config/categories/999", `{"label":"x"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodPut, "/api/config/categories/200/mentions", `[{"id":"11","kind":"role"}]`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []settings.MentionTarget{{ID: "11", Kind: settings.MentionRole}},
		decodeBody[settings.Category](t, rec).Mentions)

	rec = h.do(t, http.MethodPut, "/api/config/description", `{"text":""}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, settings.DefaultMenuDescription, decodeBody[descriptionRequest](t, rec).Text)

	rec = h.do(t, http.MethodGet, "/api/config", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decodeBody[settings.Configuration](t, rec)
	assert.False(t, cfg.Enabled)
	require.Len(t, cfg.Categories, 2)
	assert.Equal(t, "Payments", cfg.Categories[0].Label)
}

func TestPreview(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.manager.ToggleCategory(context.Background(), settings.Category{ID: "100", Label: "Billing"})
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/config/preview", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	p := decodeBody[previewResponse](t, rec)
	assert.Equal(t, "reactive", p.Variant)
	require.Len(t, p.Options, 1)
	assert.Equal(t, menu.DefaultSymbols[0], p.Options[0].Key)
	assert.Contains(t, p.Description, "1️⃣ - Billing")
}

func TestMetrics(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "threadrouter_")
}

func TestNotFound(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decodeBody[errorResponse](t, rec).Error.Code)
}
