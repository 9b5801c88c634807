package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/org/stockdesk/internal/codec"
	"github.com/org/stockdesk/internal/storage"
	"github.com/org/stockdesk/pkg/models"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-pass-1"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryBackend) {
	t.Helper()
	store := storage.NewMemoryBackend()
	srv := NewServer(store, Config{})
	if err := srv.EnsureAdmin(context.Background(), adminEmail, adminPassword); err != nil {
		t.Fatalf("creating admin: %v", err)
	}
	return srv, store
}

// tokenFor issues a token for an existing account without going through login.
func tokenFor(t *testing.T, srv *Server, store *storage.MemoryBackend, email string) string {
	t.Helper()
	u, err := store.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("looking up %s: %v", email, err)
	}
	plaintext, _, err := srv.tokens.Issue(context.Background(), u.ID, time.Hour)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return plaintext
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, handler http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set(AuthHeader, token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

type testEnvelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *models.APIError `json:"error"`
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decoding response: %v (body: %s)", err, w.Body.String())
	}
	return env
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	env := decodeBody(t, w)
	if !env.Success {
		t.Fatalf("expected success, got %+v", env.Error)
	}
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	return out
}

func expectFailure(t *testing.T, w *httptest.ResponseRecorder, status int, id string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	env := decodeBody(t, w)
	if env.Success || env.Error == nil {
		t.Fatalf("expected failure envelope, got %+v", env)
	}
	if !env.Error.ID.Is(id) {
		t.Errorf("expected error id %q, got %q", id, env.Error.ID)
	}
}

func registerBody(email, password string) map[string]any {
	return map[string]any{
		"email":     email,
		"password":  codec.EncodeCredential(password),
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"token":     codec.GenerateFreshness(),
	}
}

func loginBody(email, password string, remember bool) map[string]any {
	return map[string]any{
		"email":       email,
		"password":    codec.EncodeCredential(password),
		"token":       codec.GenerateFreshness(),
		"remember_me": remember,
	}
}

// --- tests ---

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := getJSON(t, srv.BuildRouter(), "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.BuildRouter()

	w := postJSON(t, handler, "/api/auth/register", registerBody("Ada@Example.com", "Secret123"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}
	reg := decodeData[models.LoginResult](t, w)
	if reg.AccessToken == "" || reg.Email != "ada@example.com" {
		t.Errorf("unexpected register result %+v", reg)
	}

	w = postJSON(t, handler, "/api/auth/login", loginBody("ada@example.com", "Secret123", true), "")
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	login := decodeData[models.LoginResult](t, w)
	if login.AccessToken == "" || login.AccessToken == reg.AccessToken {
		t.Error("expected a fresh access token")
	}

	w = getJSON(t, handler, "/api/user", login.AccessToken)
	me := decodeData[models.User](t, w)
	if me.Email != "ada@example.com" || me.Role != models.RoleUser {
		t.Errorf("unexpected user %+v", me)
	}
}

func TestLoginFailures(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.BuildRouter()

	w := postJSON(t, handler, "/api/auth/login", loginBody(adminEmail, "wrong-pass", false), "")
	expectFailure(t, w, http.StatusUnauthorized, errInvalidCredentials)

	w = postJSON(t, handler, "/api/auth/login", loginBody("nobody@example.com", adminPassword, false), "")
	expectFailure(t, w, http.StatusUnauthorized, errInvalidCredentials)

	stale := loginBody(adminEmail, adminPassword, false)
	stale["token"] = codec.EncodeFreshness(time.Now().Add(-10 * time.Minute).Unix())
	w = postJSON(t, handler, "/api/auth/login", stale, "")
	expectFailure(t, w, http.StatusBadRequest, errStaleRequest)

	plain := loginBody(adminEmail, adminPassword, false)
	plain["password"] = adminPassword
	w = postJSON(t, handler, "/api/auth/login", plain, "")
	expectFailure(t, w, http.StatusUnprocessableEntity, errValidation)
}

func TestRegisterFailures(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.BuildRouter()

	w := postJSON(t, handler, "/api/auth/register", registerBody(adminEmail, "Secret123"), "")
	expectFailure(t, w, http.StatusConflict, errEmailTaken)

	w = postJSON(t, handler, "/api/auth/register", registerBody("short@example.com", "abc"), "")
	expectFailure(t, w, http.StatusUnprocessableEntity, errWeakPassword)

	body := registerBody("x@example.com", "Secret123")
	delete(body, "firstName")
	w = postJSON(t, handler, "/api/auth/register", body, "")
	expectFailure(t, w, http.StatusUnprocessableEntity, errValidation)

	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	expectFailure(t, rec, http.StatusBadRequest, errInvalidRequest)
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.BuildRouter()

	expectFailure(t, getJSON(t, handler, "/api/user", ""), http.StatusUnauthorized, errUnauthorized)
	expectFailure(t, getJSON(t, handler, "/api/user", "sdk_bogus"), http.StatusForbidden, errForbidden)
}

func TestLogoutRevokesToken(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.BuildRouter()
	token := tokenFor(t, srv, store, adminEmail)

	w := postJSON(t, handler, "/api/auth/logout", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("logout failed: %d %s", w.Code, w.Body.String())
	}
	expectFailure(t, getJSON(t, handler, "/api/user", token), http.StatusForbidden, errForbidden)
}

func TestUserPolicy(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.BuildRouter()
	postJSON(t, handler, "/api/auth/register", registerBody("u@example.com", "Secret123"), "")
	token := tokenFor(t, srv, store, "u@example.com")

	expectFailure(t, getJSON(t, handler, "/api/users", token), http.StatusNotFound, errPermissionDenied)
	expectFailure(t, getJSON(t, handler, "/api/credit/analytics", token), http.StatusNotFound, errPermissionDenied)
	w := postJSON(t, handler, "/api/sites/add", map[string]any{"name": "x", "url": "https://x.com"}, token)
	expectFailure(t, w, http.StatusNotFound, errPermissionDenied)

	if w := getJSON(t, handler, "/api/sites", token); w.Code != http.StatusOK {
		t.Errorf("users may list sites, got %d", w.Code)
	}
}

func addPlan(t *testing.T, handler http.Handler, token string, credits, days int) models.PricingPlan {
	t.Helper()
	w := postJSON(t, handler, "/api/pricing/add", map[string]any{
		"name": "Plan", "credits": credits, "price": 9.99, "validity_days": days,
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("adding plan: %d %s", w.Code, w.Body.String())
	}
	return decodeData[models.PricingPlan](t, w)
}

func TestCreditLifecycle(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.BuildRouter()
	admin := tokenFor(t, srv, store, adminEmail)
	postJSON(t, handler, "/api/auth/register", registerBody("u@example.com", "Secret123"), "")

	small := addPlan(t, handler, admin, 10, 30)
	big := addPlan(t, handler, admin, 50, 90)

	w := postJSON(t, handler, "/api/credit/subscribe", map[string]any{"email": "u@example.com", "plan_id": small.ID}, admin)
	res := decodeData[models.CreditResult](t, w)
	if res.Credits != 10 || res.ExpiresAt == nil {
		t.Fatalf("unexpected subscribe result %+v", res)
	}
	firstExpiry := *res.ExpiresAt

	w = postJSON(t, handler, "/api/credit/upgrade", map[string]any{"email": "u@example.com", "plan_id": big.ID}, admin)
	res = decodeData[models.CreditResult](t, w)
	if res.Credits != 60 {
		t.Errorf("expected 60 credits after upgrade, got %d", res.Credits)
	}
	if !res.ExpiresAt.After(firstExpiry) {
		t.Error("upgrade should extend expiry to the larger plan validity")
	}
	upgraded := *res.ExpiresAt

	w = postJSON(t, handler, "/api/credit/extend", map[string]any{"email": "u@example.com", "days": 5}, admin)
	res = decodeData[models.CreditResult](t, w)
	if got := res.ExpiresAt.Sub(upgraded); got != 5*24*time.Hour {
		t.Errorf("expected 5 day extension, got %v", got)
	}

	w = getJSON(t, handler, "/api/credit/analytics", admin)
	a := decodeData[models.CreditAnalytics](t, w)
	if a.TotalUsers != 2 || a.ActiveSubscriptions != 1 || a.CreditsOutstanding != 60 || a.CreditsGranted != 60 {
		t.Errorf("unexpected analytics %+v", a)
	}

	w = postJSON(t, handler, "/api/credit/delete", map[string]any{"email": "u@example.com"}, admin)
	res = decodeData[models.CreditResult](t, w)
	if res.Credits != 0 {
		t.Errorf("expected zero credits after delete, got %d", res.Credits)
	}

	user := tokenFor(t, srv, store, "u@example.com")
	w = getJSON(t, handler, "/api/credit/history", user)
	events := decodeData[[]models.CreditEvent](t, w)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Action != models.CreditDelete {
		t.Errorf("expected newest event first, got %s", events[0].Action)
	}

	w = postJSON(t, handler, "/api/credit/subscribe", map[string]any{"email": "ghost@example.com", "plan_id": small.ID}, admin)
	expectFailure(t, w, http.StatusNotFound, errNotFound)
}

func TestSiteCatalog(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.BuildRouter()
	admin := tokenFor(t, srv, store, adminEmail)

	w := postJSON(t, handler, "/api/sites/add", map[string]any{"name": "Shutterstock", "url": "https://www.shutterstock.com", "enabled": true}, admin)
	site := decodeData[models.Site](t, w)
	if site.Host != "shutterstock.com" {
		t.Errorf("expected host shutterstock.com, got %q", site.Host)
	}

	w = postJSON(t, handler, "/api/sites/edit", map[string]any{"id": site.ID, "name": "SS", "url": "https://shutterstock.com", "enabled": false}, admin)
	edited := decodeData[models.Site](t, w)
	if edited.Name != "SS" || edited.Enabled {
		t.Errorf("unexpected edit result %+v", edited)
	}

	w = getJSON(t, handler, "/api/sites", admin)
	if sites := decodeData[[]models.Site](t, w); len(sites) != 1 {
		t.Fatalf("expected 1 site, got %d", len(sites))
	}

	w = postJSON(t, handler, "/api/sites/delete", map[string]any{"id": site.ID}, admin)
	decodeData[models.MessageResult](t, w)

	w = postJSON(t, handler, "/api/sites/delete", map[string]any{"id": site.ID}, admin)
	expectFailure(t, w, http.StatusNotFound, errNotFound)

	w = postJSON(t, handler, "/api/sites/add", map[string]any{"name": "bad", "url": "not a url"}, admin)
	expectFailure(t, w, http.StatusUnprocessableEntity, errValidation)

	w = getJSON(t, handler, "/api/pricing", admin)
	if plans := decodeData[[]models.PricingPlan](t, w); len(plans) != 0 {
		t.Errorf("expected empty plan list, got %d", len(plans))
	}
}

func TestDownloads(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.BuildRouter()
	admin := tokenFor(t, srv, store, adminEmail)
	postJSON(t, handler, "/api/auth/register", registerBody("u@example.com", "Secret123"), "")
	user := tokenFor(t, srv, store, "u@example.com")

	postJSON(t, handler, "/api/sites/add", map[string]any{"name": "Freepik", "url": "https://freepik.com", "enabled": true}, admin)
	postJSON(t, handler, "/api/sites/add", map[string]any{"name": "Off", "url": "https://disabled.example", "enabled": false}, admin)

	w := postJSON(t, handler, "/api/downloads", map[string]any{"url": "https://www.freepik.com/photo/1"}, user)
	expectFailure(t, w, http.StatusPaymentRequired, errInsufficient)

	plan := addPlan(t, handler, admin, 2, 30)
	postJSON(t, handler, "/api/credit/subscribe", map[string]any{"email": "u@example.com", "plan_id": plan.ID}, admin)

	w = postJSON(t, handler, "/api/downloads", map[string]any{"url": "https://disabled.example/a"}, user)
	expectFailure(t, w, http.StatusUnprocessableEntity, errUnsupportedSite)

	w = postJSON(t, handler, "/api/downloads", map[string]any{"url": "https://www.freepik.com/photo/1"}, user)
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	created := decodeData[models.DownloadCreated](t, w)
	if created.Status != models.TaskPending {
		t.Errorf("expected pending, got %s", created.Status)
	}

	u, _ := store.GetUserByEmail(context.Background(), "u@example.com")
	if u.Credits != 1 {
		t.Errorf("expected one credit charged, balance %d", u.Credits)
	}

	w = getJSON(t, handler, "/api/downloads", user)
	tasks := decodeData[[]models.DownloadTask](t, w)
	if len(tasks) != 1 || tasks[0].Platform != "Freepik" {
		t.Fatalf("unexpected task list %+v", tasks)
	}

	w = postJSON(t, handler, "/api/downloads/retry", map[string]any{"task_id": created.TaskID}, user)
	expectFailure(t, w, http.StatusConflict, errInvalidState)

	task, _ := store.GetTask(context.Background(), created.TaskID)
	task.Status = models.TaskFailed
	task.ErrorMessage = "source responded 500"
	store.UpdateTask(context.Background(), task) //nolint:errcheck

	w = postJSON(t, handler, "/api/downloads/retry", map[string]any{"task_id": created.TaskID}, admin)
	expectFailure(t, w, http.StatusNotFound, errNotFound)

	w = postJSON(t, handler, "/api/downloads/retry", map[string]any{"task_id": created.TaskID}, user)
	retried := decodeData[models.DownloadRetried](t, w)
	if retried.Status != models.TaskPending {
		t.Errorf("expected pending after retry, got %s", retried.Status)
	}
	task, _ = store.GetTask(context.Background(), created.TaskID)
	if task.ErrorMessage != "" {
		t.Error("retry should clear the previous error")
	}
}

func TestAuditRecordsAdminMutations(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.BuildRouter()
	admin := tokenFor(t, srv, store, adminEmail)

	getJSON(t, handler, "/api/sites", admin)
	postJSON(t, handler, "/api/sites/add", map[string]any{"name": "A", "url": "https://a.com"}, admin)

	entries := store.AuditEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Path != "/api/sites/add" || entries[0].ResponseCode != http.StatusCreated {
		t.Errorf("unexpected audit entry %+v", entries[0])
	}
}

func TestRateLimit(t *testing.T) {
	store := storage.NewMemoryBackend()
	handler := NewServer(store, Config{RateLimit: 1}).BuildRouter()

	var limited bool
	for i := 0; i < 5; i++ {
		if w := getJSON(t, handler, "/api/health", ""); w.Code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("expected rate limiting to kick in")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	expectFailure(t, getJSON(t, srv.BuildRouter(), "/api/nope", ""), http.StatusNotFound, errNotFound)
}
