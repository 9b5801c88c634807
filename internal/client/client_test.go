package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/org/stockdesk/internal/session"
	"github.com/org/stockdesk/pkg/models"
)

// --- test helpers ---

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recorded struct {
	method string
	path   string
	header http.Header
	body   []byte
}

// fakeBackend answers every request with the same status and body and
// records what it received.
type fakeBackend struct {
	mu     sync.Mutex
	calls  []recorded
	hits   atomic.Int32
	status int
	body   string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone(), body: body})
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	io.WriteString(w, f.body) //nolint:errcheck
}

func (f *fakeBackend) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("backend received no request")
	}
	return f.calls[len(f.calls)-1]
}

func newTestClient(t *testing.T, status int, body string) (*Client, *fakeBackend, *session.Store) {
	t.Helper()
	fb := &fakeBackend{status: status, body: body}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	store := session.NewMemoryStore()
	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, store,
		WithClock(fixedClock{time.Unix(1700000000, 0)}))
	return c, fb, store
}

func signIn(t *testing.T, store *session.Store, token string) {
	t.Helper()
	if err := store.Save(session.AuthSession{Token: token}); err != nil {
		t.Fatalf("saving session: %v", err)
	}
}

func expectFailure[T any](t *testing.T, env models.Envelope[T], kind models.ErrorKind, id string) {
	t.Helper()
	if env.Success {
		t.Fatalf("expected failure, got success: %+v", env)
	}
	if env.Error == nil {
		t.Fatal("failed envelope without error")
	}
	if env.Error.Kind != kind {
		t.Errorf("expected kind %q, got %q", kind, env.Error.Kind)
	}
	if id != "" && !env.Error.ID.Is(id) {
		t.Errorf("expected id %q, got %q", id, env.Error.ID)
	}
	if env.Error.Message == "" {
		t.Error("expected a human-readable message")
	}
}

// --- envelope normalization ---

func TestSuccessEnvelopeReturnedVerbatim(t *testing.T) {
	c, _, store := newTestClient(t, http.StatusOK,
		`{"success":true,"data":{"id":"u1","email":"a@b.com","first_name":"Ann","last_name":"Bee","role":"user","credits":5,"created_at":"2024-01-01T00:00:00Z"}}`)
	signIn(t, store, "tok")

	env := c.UserData(context.Background())
	if !env.Success || env.Error != nil {
		t.Fatalf("expected success, got %+v", env)
	}
	if env.Data == nil || env.Data.Email != "a@b.com" || env.Data.Credits != 5 {
		t.Errorf("unexpected data %+v", env.Data)
	}
}

func TestBarePayloadIsWrapped(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusOK, `[{"id":"s1","name":"Stock One","url":"https://one.example","host":"one.example","enabled":true}]`)

	env := c.ListSites(context.Background())
	if !env.Success {
		t.Fatalf("expected success, got %+v", env.Error)
	}
	if env.Data == nil || len(*env.Data) != 1 || (*env.Data)[0].Name != "Stock One" {
		t.Errorf("unexpected data %+v", env.Data)
	}
}

func TestStructuredErrorPassedThrough(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusUnprocessableEntity,
		`{"success":false,"error":{"id":"invalid_credentials","message":"Wrong email or password."}}`)

	env := c.Login(context.Background(), "a@b.com", "nope", false)
	expectFailure(t, env, models.KindAPI, "invalid_credentials")
	if env.Error.Message != "Wrong email or password." {
		t.Errorf("backend message not preserved: %q", env.Error.Message)
	}
}

func TestStructuredErrorNumericID(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusBadRequest,
		`{"success":false,"error":{"id":1042,"message":"Plan is archived.","kind":"api_error"}}`)

	env := c.SubscribeCredit(context.Background(), models.CreditSubscribeRequest{Email: "a@b.com", PlanID: "p"})
	expectFailure(t, env, models.KindAPI, "")
	if n, ok := env.Error.ID.Int64(); !ok || n != 1042 {
		t.Errorf("expected numeric id 1042, got %v", env.Error.ID)
	}
}

func TestRejectedCredentialIsSynthesized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c, _, store := newTestClient(t, status,
			`{"success":false,"error":{"id":"token_expired","message":"backend text"}}`)
		signIn(t, store, "tok")

		users := c.UserData(context.Background())
		expectFailure(t, users, models.KindAuthRequired, models.IDAuthRequired)
		if users.Error.Message == "backend text" {
			t.Errorf("status %d: backend message leaked through", status)
		}

		history := c.CreditHistory(context.Background())
		expectFailure(t, history, models.KindAuthRequired, models.IDAuthRequired)
	}
}

func TestUnauthorizedWithoutStoredTokenIsPassedThrough(t *testing.T) {
	c, fb, _ := newTestClient(t, http.StatusUnauthorized,
		`{"success":false,"error":{"id":"token_expired","message":"Session expired."}}`)

	env := c.ListUsers(context.Background())
	expectFailure(t, env, models.KindAPI, "token_expired")
	if n := fb.hits.Load(); n != 1 {
		t.Errorf("expected the request to be sent, got %d calls", n)
	}
}

func TestUnstructuredHTTPError(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusBadGateway, `<html>bad gateway</html>`)

	env := c.ListPricing(context.Background())
	expectFailure(t, env, models.KindAPI, "")
	if n, ok := env.Error.ID.Int64(); !ok || n != http.StatusBadGateway {
		t.Errorf("expected numeric id 502, got %v", env.Error.ID)
	}
}

func TestUndecodableSuccessIsUnknown(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusOK, `not json`)

	env := c.CreditAnalytics(context.Background())
	expectFailure(t, env, models.KindUnknown, models.IDUnknown)
	if env.Error.Message != models.MsgUnknown {
		t.Errorf("unexpected message %q", env.Error.Message)
	}
}

func TestMismatchedDataIsUnknown(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusOK, `{"success":true,"data":"a string, not a list"}`)

	env := c.CreditHistory(context.Background())
	expectFailure(t, env, models.KindUnknown, models.IDUnknown)
}

func TestFailedEnvelopeWithoutErrorIsUnknown(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusOK, `{"success":false}`)

	env := c.ListSites(context.Background())
	expectFailure(t, env, models.KindUnknown, models.IDUnknown)
}

func TestMarshalFailureIsUnknown(t *testing.T) {
	c, fb, _ := newTestClient(t, http.StatusOK, `{"success":true}`)

	env := request[models.MessageResult](context.Background(), c, call{
		resource: "test",
		method:   http.MethodPost,
		path:     "/api/anything",
		body:     map[string]any{"bad": make(chan int)},
	})
	expectFailure(t, env, models.KindUnknown, models.IDUnknown)
	if fb.hits.Load() != 0 {
		t.Errorf("request must not be sent when the body cannot be encoded")
	}
}

func TestConnectionFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second}, session.NewMemoryStore())
	env := c.ListSites(context.Background())
	expectFailure(t, env, models.KindNetwork, models.IDNetwork)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, session.NewMemoryStore())
	env := c.ListPricing(context.Background())
	expectFailure(t, env, models.KindNetwork, models.IDNetwork)
	if env.Error.Message != msgTimeout {
		t.Errorf("expected timeout message, got %q", env.Error.Message)
	}
}

func TestCancelledContextDoesNotAbortRequest(t *testing.T) {
	c, fb, _ := newTestClient(t, http.StatusOK, `{"success":true,"data":[]}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := c.ListSites(ctx)
	if !env.Success {
		t.Fatalf("expected the issued request to complete, got %+v", env.Error)
	}
	if fb.hits.Load() != 1 {
		t.Errorf("expected 1 backend hit, got %d", fb.hits.Load())
	}
}

// --- downloads ---

func TestDownloadsWithoutCredentialSkipNetwork(t *testing.T) {
	c, fb, _ := newTestClient(t, http.StatusOK, `{"success":true,"data":[]}`)
	ctx := context.Background()

	expectFailure(t, c.ListTasks(ctx), models.KindAuthRequired, models.IDAuthRequired)
	expectFailure(t, c.CreateTask(ctx, "https://stock.example/photo/1"), models.KindAuthRequired, models.IDAuthRequired)
	expectFailure(t, c.RetryTask(ctx, "task-1"), models.KindAuthRequired, models.IDAuthRequired)

	if n := fb.hits.Load(); n != 0 {
		t.Errorf("expected zero network calls, got %d", n)
	}
}

func TestDownloadsAuthRejectionIsSynthesized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c, _, store := newTestClient(t, status,
			`{"success":false,"error":{"id":"token_revoked","message":"backend wording"}}`)
		signIn(t, store, "tok")

		env := c.ListTasks(context.Background())
		expectFailure(t, env, models.KindAuthRequired, models.IDAuthRequired)
		if env.Error.Message == "backend wording" {
			t.Errorf("status %d: backend message must be replaced", status)
		}
	}
}

func TestDownloadsAttachBearerAndMirror(t *testing.T) {
	c, fb, store := newTestClient(t, http.StatusOK, `{"success":true,"data":{"task_id":"t1","status":"pending"}}`)
	signIn(t, store, "secret-token")

	env := c.CreateTask(context.Background(), "https://stock.example/photo/1")
	if !env.Success || env.Data.TaskID != "t1" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	got := fb.last(t)
	if got.header.Get("Authorization") != "Bearer secret-token" {
		t.Errorf("unexpected Authorization %q", got.header.Get("Authorization"))
	}
	if got.header.Get(AuthHeader) != "secret-token" {
		t.Errorf("unexpected %s %q", AuthHeader, got.header.Get(AuthHeader))
	}
	if got.method != http.MethodPost || got.path != pathDownloads {
		t.Errorf("unexpected request %s %s", got.method, got.path)
	}
	var body models.DownloadCreateRequest
	if err := json.Unmarshal(got.body, &body); err != nil || body.URL != "https://stock.example/photo/1" {
		t.Errorf("unexpected body %s", got.body)
	}
}

func TestRetrySurfacesBackendRejection(t *testing.T) {
	c, fb, store := newTestClient(t, http.StatusConflict,
		`{"success":false,"error":{"id":"invalid_state","message":"Only failed tasks can be retried."}}`)
	signIn(t, store, "tok")

	env := c.RetryTask(context.Background(), "t1")
	expectFailure(t, env, models.KindAPI, "invalid_state")
	var body map[string]string
	json.Unmarshal(fb.last(t).body, &body) //nolint:errcheck
	if body["task_id"] != "t1" {
		t.Errorf("expected task_id in body, got %v", body)
	}
}

func TestConcurrentCreatesAreNotCoalesced(t *testing.T) {
	c, fb, store := newTestClient(t, http.StatusOK, `{"success":true,"data":{"task_id":"t","status":"pending"}}`)
	signIn(t, store, "tok")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CreateTask(context.Background(), "https://stock.example/a")
		}()
	}
	wg.Wait()
	if n := fb.hits.Load(); n != 2 {
		t.Errorf("expected 2 backend calls, got %d", n)
	}
}

func TestPollTaskStopsWhenSettled(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "in_progress"
		if n.Add(1) >= 3 {
			status = "completed"
		}
		io.WriteString(w, `{"success":true,"data":[{"id":"t1","url":"u","platform":"p","status":"`+status+`","progress":50}]}`) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	store := session.NewMemoryStore()
	signIn(t, store, "tok")
	c := New(Config{BaseURL: srv.URL}, store)

	var seen []models.TaskStatus
	env := c.PollTask(context.Background(), "t1", time.Millisecond, func(task models.DownloadTask) {
		seen = append(seen, task.Status)
	})
	if !env.Success || env.Data.Status != models.TaskCompleted {
		t.Fatalf("expected completed task, got %+v", env)
	}
	if len(seen) != 3 {
		t.Errorf("expected 3 observations, got %v", seen)
	}
}

func TestPollTaskNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		c, _, store := newTestClient(t, http.StatusOK,
			`{"success":true,"data":[{"id":"t1","url":"u","platform":"p","status":"completed","progress":100}]}`)
		signIn(t, store, "tok")

		env := c.PollTask(context.Background(), "t1", interval, nil)
		if !env.Success || env.Data.Status != models.TaskCompleted {
			t.Fatalf("interval %v: expected completed task, got %+v", interval, env)
		}
	}
}

func TestPollTaskMissing(t *testing.T) {
	c, _, store := newTestClient(t, http.StatusOK, `{"success":true,"data":[]}`)
	signIn(t, store, "tok")

	env := c.PollTask(context.Background(), "nope", time.Millisecond, nil)
	expectFailure(t, env, models.KindAPI, "not_found")
}

// --- auth flow ---

func TestLoginSendsObfuscatedPassword(t *testing.T) {
	c, fb, store := newTestClient(t, http.StatusOK,
		`{"success":true,"data":{"access_token":"abc","email":"a@b.com","message":"Welcome back"}}`)

	env := c.Login(context.Background(), "a@b.com", "Secret1", true)
	if !env.Success {
		t.Fatalf("login failed: %+v", env.Error)
	}

	got := fb.last(t)
	if got.path != pathLogin || got.method != http.MethodPost {
		t.Errorf("unexpected request %s %s", got.method, got.path)
	}
	if got.header.Get("Authorization") != "" {
		t.Error("login must not carry a bearer token")
	}
	var body models.LoginRequest
	if err := json.Unmarshal(got.body, &body); err != nil {
		t.Fatalf("decoding login body: %v", err)
	}
	if body.Password != "526e4a775a584a6e4d513d3d" {
		t.Errorf("expected obfuscated password, got %q", body.Password)
	}
	if strings.Contains(string(got.body), "Secret1") || strings.Contains(string(got.body), "Frperg1") {
		t.Error("plaintext or rot13-only password leaked into the body")
	}
	if body.Token != "ZGZmpmZjZQZmNmZjZQZmNmZ2ZQZ" {
		t.Errorf("unexpected freshness token %q", body.Token)
	}
	if body.Email != "a@b.com" || !body.RememberMe {
		t.Errorf("unexpected body %+v", body)
	}

	sess, ok := store.Load()
	if !ok || sess.Token != "abc" || !sess.RememberMe {
		t.Errorf("expected durable session abc, got %+v (ok=%v)", sess, ok)
	}
}

func TestLoginFailureKeepsNoSession(t *testing.T) {
	c, _, store := newTestClient(t, http.StatusUnauthorized,
		`{"success":false,"error":{"id":"invalid_credentials","message":"Wrong email or password."}}`)

	c.Login(context.Background(), "a@b.com", "bad", true)
	if _, ok := store.Load(); ok {
		t.Error("failed login must not store a session")
	}
}

func TestRegisterUsesTabScope(t *testing.T) {
	c, fb, store := newTestClient(t, http.StatusOK,
		`{"success":true,"data":{"access_token":"new","email":"a@b.com","message":"Account created"}}`)

	env := c.Register(context.Background(), RegisterInput{
		Email: "a@b.com", Password: "Secret1", FirstName: "Ann", LastName: "Bee",
	})
	if !env.Success {
		t.Fatalf("register failed: %+v", env.Error)
	}
	var body map[string]any
	if err := json.Unmarshal(fb.last(t).body, &body); err != nil {
		t.Fatal(err)
	}
	if body["password"] != "526e4a775a584a6e4d513d3d" || body["firstName"] != "Ann" || body["lastName"] != "Bee" {
		t.Errorf("unexpected register body %v", body)
	}
	if body["token"] != "ZGZmpmZjZQZmNmZjZQZmNmZ2ZQZ" {
		t.Errorf("unexpected freshness token %v", body["token"])
	}
	sess, ok := store.Load()
	if !ok || sess.Token != "new" || sess.RememberMe {
		t.Errorf("expected tab-scoped session, got %+v", sess)
	}
}

func TestLogoutClearsBothScopesEvenOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	durable, tab := &session.MemorySlot{}, &session.MemorySlot{}
	durable.Save("d") //nolint:errcheck
	tab.Save("t")     //nolint:errcheck
	c := New(Config{BaseURL: url, Timeout: time.Second}, session.NewStore(durable, tab))

	env := c.Logout(context.Background())
	expectFailure(t, env, models.KindNetwork, models.IDNetwork)
	if d, _ := durable.Load(); d != "" {
		t.Error("durable slot not cleared")
	}
	if v, _ := tab.Load(); v != "" {
		t.Error("tab slot not cleared")
	}
}

func TestLogoutSendsToken(t *testing.T) {
	c, fb, store := newTestClient(t, http.StatusOK, `{"success":true,"data":{"access_token":"","message":"Logged out"}}`)
	signIn(t, store, "tok")

	env := c.Logout(context.Background())
	if !env.Success {
		t.Fatalf("logout failed: %+v", env.Error)
	}
	if fb.last(t).header.Get("Authorization") != "Bearer tok" {
		t.Error("logout must carry the bearer token")
	}
	if _, ok := store.Load(); ok {
		t.Error("session should be cleared after logout")
	}
}
