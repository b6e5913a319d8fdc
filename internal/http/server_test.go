package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/fire"
	"fintrack/internal/screens"
	"fintrack/internal/services"
)

// fakeRemote stands in for the finance API on both the read and write side.
type fakeRemote struct {
	mu            sync.Mutex
	records       []core.TransactionRecord
	listErr       error
	created       []api.NewTransaction
	createErr     error
	category      string
	categorizeErr error
	advice        string
	adviceErr     error
}

func (f *fakeRemote) ListTransactions(ctx context.Context, p *auth.Principal) ([]core.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.TransactionRecord(nil), f.records...), nil
}

func (f *fakeRemote) CreateTransaction(ctx context.Context, p *auth.Principal, tx api.NewTransaction) (api.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return api.CreateResult{}, f.createErr
	}
	f.created = append(f.created, tx)
	return api.CreateResult{Record: &core.TransactionRecord{ID: "rec-1", Description: tx.Description, Amount: tx.Amount}, Status: "created"}, nil
}

func (f *fakeRemote) Categorize(ctx context.Context, description string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.category, f.categorizeErr
}

func (f *fakeRemote) Advice(ctx context.Context, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advice, f.adviceErr
}

func (f *fakeRemote) set(fn func(f *fakeRemote)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type testEnv struct {
	srv     *Server
	remote  *fakeRemote
	watcher *auth.Watcher
}

func newTestEnv(t *testing.T, signedIn bool) *testEnv {
	t.Helper()
	return newTestEnvWithLimit(t, signedIn, 1000)
}

func newTestEnvWithLimit(t *testing.T, signedIn bool, perMinute int) *testEnv {
	t.Helper()
	remote := &fakeRemote{
		records: []core.TransactionRecord{
			{ID: "1", Description: "Salary", Amount: 1000, Category: "Salary"},
			{ID: "2", Description: "Milk", Amount: -200, Category: "Groceries"},
			{ID: "3", Description: "Rent", Amount: -300, Category: "Rent"},
			{ID: "4", Description: "Bonus", Amount: 500, Category: "Salary"},
		},
		category: "Groceries",
		advice:   "Spend less than you earn.",
	}

	var initial *auth.Principal
	if signedIn {
		p, err := auth.NewStaticPrincipal("test-token")
		if err != nil {
			t.Fatalf("principal: %v", err)
		}
		initial = p
	}
	watcher := auth.NewWatcher(initial)
	session := screens.NewSession(watcher, remote, fire.DefaultParameters(), nil)
	svc := services.NewTransactionService(remote, remote, nil, nil)

	srv := NewServer(Options{
		Addr:               ":0",
		Location:           time.UTC,
		RateLimitPerMinute: perMinute,
		FireDefaults:       fire.DefaultParameters(),
	}, Dependencies{
		Watcher:      watcher,
		Session:      session,
		Transactions: svc,
		SignIn: func(ctx context.Context, token string) (*auth.Principal, error) {
			return auth.NewStaticPrincipal(token)
		},
		Caches: cache.NewManager(nil),
	}, nil)

	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		session.Stop()
	})
	return &testEnv{srv: srv, remote: remote, watcher: watcher}
}

func (e *testEnv) do(method, target string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr := env.do(http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	for _, name := range []string{"http_requests_total", "transactions_created_total", "cache_hits_total", "uptime_seconds"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

func TestReadyReportsDependencyFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.srv.deps.Ready = func(context.Context) error { return errors.New("broker down") }

	rr := env.do(http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
	var body struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "not_ready" || !strings.Contains(body.Checks["dependencies"].(string), "broker down") {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestPagesRedirectWhenSignedOut(t *testing.T) {
	env := newTestEnv(t, false)

	for _, path := range []string{"/", "/transactions/new", "/fire", "/advice", "/profile"} {
		rr := env.do(http.MethodGet, path, nil, nil)
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
			t.Errorf("%s: status=%d location=%q", path, rr.Code, rr.Header().Get("Location"))
		}
	}

	rr := env.do(http.MethodGet, "/fire", nil, map[string]string{"HX-Request": "true"})
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("hx: status=%d hx-redirect=%q", rr.Code, rr.Header().Get("HX-Redirect"))
	}
}

func TestHomeShowsTotals(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"₹1,500", "₹500", "₹1,000", "Salary", "Milk", "-₹200"} {
		if !strings.Contains(body, want) {
			t.Errorf("home body missing %q", want)
		}
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not applied")
	}
}

func TestHomeFailureShowsRetry(t *testing.T) {
	env := newTestEnv(t, true)
	env.remote.set(func(f *fakeRemote) {
		f.listErr = &api.StatusError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	})

	rr := env.do(http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want 502", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Server error (500): boom") {
		t.Errorf("error banner missing: %s", body)
	}
	if !strings.Contains(body, `action="/transactions/refresh"`) {
		t.Error("retry affordance missing")
	}
	if strings.Contains(body, "₹1,500") {
		t.Error("stale totals shown after a failed fetch")
	}
	if strings.Contains(body, `class="summary"`) || strings.Contains(body, "₹0") {
		t.Error("empty summary cards shown next to the error")
	}

	env.remote.set(func(f *fakeRemote) { f.listErr = nil })
	rr = env.do(http.MethodPost, "/transactions/refresh", url.Values{}, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("refresh: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(http.MethodPost, "/transactions", url.Values{
		"kind": {"expense"}, "description": {"Coffee"}, "amount": {"abc"}, "category": {"Groceries"},
	}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid amount: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Enter a valid amount") || !strings.Contains(rr.Body.String(), `value="Coffee"`) {
		t.Errorf("form not re-rendered with error and values")
	}

	rr = env.do(http.MethodPost, "/transactions", url.Values{"kind": {"expense"}, "amount": {"12"}}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing description: status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/transactions", url.Values{
		"kind": {"expense"}, "description": {"Coffee"}, "amount": {"12.50"}, "category": {"Groceries"},
	}, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/transactions/new?added=expense" {
		t.Fatalf("success: status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	env.remote.mu.Lock()
	created := append([]api.NewTransaction(nil), env.remote.created...)
	env.remote.mu.Unlock()
	if len(created) != 1 || created[0].Amount != -12.5 || created[0].Category != "Groceries" {
		t.Fatalf("unexpected create calls %+v", created)
	}

	rr = env.do(http.MethodGet, "/transactions/new?added=expense", nil, nil)
	if !strings.Contains(rr.Body.String(), "Expense added successfully!") {
		t.Error("success flash missing")
	}
}

func TestCreateTransactionHX(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(http.MethodPost, "/transactions", url.Values{
		"kind": {"income"}, "description": {"Salary"}, "amount": {"5000"},
	}, map[string]string{"HX-Request": "true"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"transaction:created"`) || !strings.Contains(trigger, `"kind":"income"`) {
		t.Errorf("HX-Trigger = %s", trigger)
	}
	if !strings.Contains(rr.Body.String(), "Income added successfully!") {
		t.Errorf("body = %s", rr.Body.String())
	}

	env.remote.set(func(f *fakeRemote) { f.createErr = errors.New("dial tcp: refused") })
	rr = env.do(http.MethodPost, "/transactions", url.Values{
		"kind": {"income"}, "description": {"Salary"}, "amount": {"5000"},
	}, map[string]string{"HX-Request": "true"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("remote failure: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Could not reach the finance service") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestCategorize(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodPost, "/ui/categorize", strings.NewReader(`{"description":"milk and bread"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"category":"Groceries"`) {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}
	if !strings.Contains(rr.Body.String(), "cat-groceries") {
		t.Errorf("body = %s", rr.Body.String())
	}

	rr = env.do(http.MethodPost, "/ui/categorize", url.Values{"description": {"  "}}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty description: status=%d", rr.Code)
	}

	env.remote.set(func(f *fakeRemote) { f.categorizeErr = errors.New("timeout") })
	rr = env.do(http.MethodPost, "/ui/categorize", url.Values{"description": {"bus"}}, nil)
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), "Could not suggest a category") {
		t.Errorf("remote failure: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestFirePlanner(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(http.MethodGet, "/fire", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	// Defaults: expense 400000 at 4% -> goal 1,00,00,000 printed with thousands grouping.
	if !strings.Contains(rr.Body.String(), "₹10,000,000") || !strings.Contains(rr.Body.String(), "<svg") {
		t.Errorf("fire page missing goal or chart")
	}

	rr = env.do(http.MethodPost, "/fire", url.Values{"current_age": {"30"}, "annual_income": {"1000000"}, "savings_rate": {"40"}}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("update: status=%d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/fire", nil, nil)
	if !strings.Contains(rr.Body.String(), `value="30"`) || !strings.Contains(rr.Body.String(), "₹400,000") {
		t.Errorf("updated parameters not shown")
	}

	rr = env.do(http.MethodPost, "/fire", url.Values{"annual_income": {"lots"}}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not a number") || !strings.Contains(rr.Body.String(), `value="30"`) {
		t.Errorf("invalid form should show the error and keep the previous plan")
	}
}

func TestProjectionAPI(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/api/fire/projection?annual_income=1000000&annual_expense=400000&savings_rate=40&withdrawal_rate=4&current_age=30", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var body projectionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Projection.Goal != 10_000_000 || body.Projection.AnnualSavings != 400_000 {
		t.Errorf("unexpected projection %+v", body.Projection)
	}
	if body.Projection.YearsToFire != 25 || body.Projection.RoundedFireAge() != 55 {
		t.Errorf("years=%v age=%v", body.Projection.YearsToFire, body.Projection.FireAge)
	}
	if len(body.Projection.NetWorth) != fire.Horizon || body.Formatted["fire_age"] != "55" {
		t.Errorf("series=%d formatted=%v", len(body.Projection.NetWorth), body.Formatted)
	}

	rr = env.do(http.MethodGet, "/api/fire/projection?withdrawal_rate=0", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("zero withdrawal: status=%d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Projection.Reachable || body.Formatted["fire_age"] != "Not reachable" {
		t.Errorf("zero withdrawal should be unreachable: %+v", body.Projection)
	}

	rr = env.do(http.MethodGet, "/api/fire/projection?current_age=0", nil, nil)
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Body.String(), "current age must be positive") {
		t.Errorf("invalid: status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAdvice(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(http.MethodGet, "/advice", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "How can I save money?") {
		t.Fatalf("status=%d; suggestions missing", rr.Code)
	}

	rr = env.do(http.MethodPost, "/advice", url.Values{"question": {"How can I save money?"}}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("ask: status=%d", rr.Code)
	}
	rr = env.do(http.MethodGet, "/advice", nil, nil)
	if !strings.Contains(rr.Body.String(), "Spend less than you earn.") {
		t.Error("answer not shown")
	}

	env.remote.set(func(f *fakeRemote) { f.adviceErr = &api.StatusError{StatusCode: 503} })
	rr = env.do(http.MethodPost, "/advice", url.Values{"question": {"Plan my Finance"}}, nil)
	if rr.Code != http.StatusBadGateway || !strings.Contains(rr.Body.String(), "Server error (503)") {
		t.Errorf("failure: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "<p>Plan my Finance</p>") {
		t.Error("question should stay visible after a failure")
	}
}

func TestLoginLogout(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/login", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `name="token"`) {
		t.Fatalf("login page: status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/login", url.Values{"token": {"  "}}, nil)
	if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "User not authenticated") {
		t.Fatalf("empty token: status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/login", url.Values{"token": {"opaque-token"}}, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("sign in: status=%d", rr.Code)
	}
	if env.watcher.Current() == nil {
		t.Fatal("principal not published")
	}

	rr = env.do(http.MethodGet, "/profile", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "signed in") {
		t.Errorf("profile: status=%d", rr.Code)
	}

	rr = env.do(http.MethodPost, "/logout", url.Values{}, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("logout: status=%d", rr.Code)
	}
	if env.watcher.Current() != nil {
		t.Error("principal still set after logout")
	}
	rr = env.do(http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusSeeOther {
		t.Errorf("home after logout: status=%d", rr.Code)
	}
}

func TestNotFoundAndProbes(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/nope", nil, nil)
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), "Page not found") {
		t.Errorf("unknown path: status=%d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/.env", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("probe: status=%d", rr.Code)
	}
	if env.srv.detector.Blocked() != 1 {
		t.Errorf("Blocked() = %d", env.srv.detector.Blocked())
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(http.MethodGet, "/static/app.css", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Cache-Control"), "public") {
		t.Errorf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestPostsAreRateLimited(t *testing.T) {
	env := newTestEnvWithLimit(t, false, 1)

	rr := env.do(http.MethodPost, "/ui/categorize", url.Values{"description": {"bus"}}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("first post: status=%d", rr.Code)
	}
	rr = env.do(http.MethodPost, "/ui/categorize", url.Values{"description": {"bus"}}, map[string]string{"HX-Request": "true"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post: status=%d, want 429", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"type":"error"`) {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}

	for i := 0; i < 3; i++ {
		if rr := env.do(http.MethodGet, "/healthz", nil, nil); rr.Code != http.StatusOK {
			t.Fatalf("GET limited: status=%d", rr.Code)
		}
	}
}
