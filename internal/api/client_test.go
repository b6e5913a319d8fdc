package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

type remoteLog struct {
	mu   sync.Mutex
	reqs []recorded
}

func (l *remoteLog) all() []recorded {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recorded(nil), l.reqs...)
}

func fakeRemote(t *testing.T, status int, respond string) (*httptest.Server, *remoteLog) {
	t.Helper()
	reqs := &remoteLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			require.NoError(t, json.Unmarshal(b, &rec.body))
		}
		reqs.mu.Lock()
		reqs.reqs = append(reqs.reqs, rec)
		reqs.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respond)
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

func principal(t *testing.T) *auth.Principal {
	t.Helper()
	p, err := auth.NewStaticPrincipal("tok-123")
	require.NoError(t, err)
	return p
}

func TestListTransactions(t *testing.T) {
	srv, reqs := fakeRemote(t, http.StatusOK, `[
		{"id":"1","description":"Salary","amount":50000,"category":"Salary","date":{"_seconds":1700000000,"_nanoseconds":0}},
		{"id":"2","description":"Milk","amount":-60,"category":"Groceries","date":{"_seconds":1700000100,"_nanoseconds":0}}
	]`)
	c := New(srv.URL + "/api/")

	got, err := c.ListTransactions(context.Background(), principal(t))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, -60.0, got[1].Amount)

	require.Len(t, reqs.all(), 1)
	assert.Equal(t, http.MethodGet, reqs.all()[0].method)
	assert.Equal(t, "/api/expenses", reqs.all()[0].path)
	assert.Equal(t, "Bearer tok-123", reqs.all()[0].auth)
}

func TestListTransactions_NonArray(t *testing.T) {
	for _, body := range []string{`{"expenses":[]}`, `null`} {
		srv, _ := fakeRemote(t, http.StatusOK, body)
		_, err := New(srv.URL).ListTransactions(context.Background(), principal(t))
		assert.ErrorIs(t, err, core.ErrInvalidDataFormat, body)
	}
}

func TestNoPrincipalMeansNoRequest(t *testing.T) {
	srv, reqs := fakeRemote(t, http.StatusOK, `[]`)
	c := New(srv.URL)

	_, err := c.ListTransactions(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, "User not authenticated", err.Error())

	_, err = c.CreateTransaction(context.Background(), nil, NewTransaction{Description: "x", Amount: 1})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	assert.Empty(t, reqs.all())
}

func TestExpiredPrincipalMeansNoRequest(t *testing.T) {
	srv, reqs := fakeRemote(t, http.StatusOK, `[]`)
	expired := auth.NewPrincipal(staticSource{expiry: time.Now().Add(-time.Minute)}, "u", "")

	_, err := New(srv.URL).ListTransactions(context.Background(), expired)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, reqs.all())
}

type staticSource struct{ expiry time.Time }

func (s staticSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "stale", Expiry: s.expiry}, nil
}

func TestStatusError(t *testing.T) {
	srv, _ := fakeRemote(t, http.StatusUnauthorized, `{"error":"Unauthorized"}`)
	_, err := New(srv.URL).ListTransactions(context.Background(), principal(t))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Unauthorized", se.Message)
}

func TestStatusError_PlainBody(t *testing.T) {
	srv, _ := fakeRemote(t, http.StatusInternalServerError, `boom`)
	_, err := New(srv.URL).Advice(context.Background(), "q")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "boom", se.Message)
	assert.Equal(t, "api: status 500: boom", se.Error())
}

func TestErrorMessage_TruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("₹", 250)
	msg := errorMessage([]byte(long))

	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(msg))

	assert.Equal(t, "bad", errorMessage([]byte("bad\xff")))
}

func TestTransportError(t *testing.T) {
	srv, _ := fakeRemote(t, http.StatusOK, `[]`)
	url := srv.URL
	srv.Close()

	_, err := New(url, WithTimeout(time.Second)).ListTransactions(context.Background(), principal(t))
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestCreateTransaction(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		record bool
		status string
	}{
		{"record", `{"id":"abc","description":"Lunch","amount":-250,"category":"Food"}`, true, "created"},
		{"message", `{"message":"Expense added successfully"}`, false, "Expense added successfully"},
		{"string", `"ok"`, false, "ok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, reqs := fakeRemote(t, http.StatusCreated, tc.body)
			res, err := New(srv.URL).CreateTransaction(context.Background(), principal(t), NewTransaction{
				Description: "Lunch", Amount: -250, Category: "Food",
			})
			require.NoError(t, err)
			assert.Equal(t, tc.record, res.Record != nil)
			assert.Equal(t, tc.status, res.Status)

			require.Len(t, reqs.all(), 1)
			r := reqs.all()[0]
			assert.Equal(t, http.MethodPost, r.method)
			assert.Equal(t, "/expenses", r.path)
			assert.Equal(t, "Lunch", r.body["description"])
			assert.Equal(t, -250.0, r.body["amount"])
			assert.Equal(t, "Food", r.body["category"])
		})
	}
}

func TestCategorize(t *testing.T) {
	srv, reqs := fakeRemote(t, http.StatusOK, `{"category":" Groceries "}`)
	got, err := New(srv.URL).Categorize(context.Background(), "weekly veg")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got)

	r := reqs.all()[0]
	assert.Equal(t, "/ai/categorize", r.path)
	assert.Equal(t, "", r.auth)
	assert.Equal(t, "weekly veg", r.body["description"])
}

func TestCategorize_MissingField(t *testing.T) {
	srv, _ := fakeRemote(t, http.StatusOK, `{"label":"x"}`)
	_, err := New(srv.URL).Categorize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestAdvice(t *testing.T) {
	srv, reqs := fakeRemote(t, http.StatusOK, `{"advice":"Track every expense."}`)
	got, err := New(srv.URL).Advice(context.Background(), "How can I save money?")
	require.NoError(t, err)
	assert.Equal(t, "Track every expense.", got)
	assert.Equal(t, "/ai/advice", reqs.all()[0].path)
	assert.Equal(t, "How can I save money?", reqs.all()[0].body["question"])
}

func TestNewDefaultsBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("  ").BaseURL())
	assert.Equal(t, "http://x/api", New("http://x/api/").BaseURL())
}

type countingCategorizer struct {
	calls atomic.Int32
	label string
	err   error
}

func (c *countingCategorizer) Categorize(context.Context, string) (string, error) {
	c.calls.Add(1)
	return c.label, c.err
}

func TestCachingCategorizer(t *testing.T) {
	next := &countingCategorizer{label: "Transport"}
	cc := NewCachingCategorizer(next, cache.NewLRUCache[string](10, time.Minute))

	for _, d := range []string{"Bus ticket", "  bus   TICKET ", "bus ticket"} {
		got, err := cc.Categorize(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, "Transport", got)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachingCategorizer_ErrorsNotCached(t *testing.T) {
	next := &countingCategorizer{err: errors.New("ai down")}
	cc := NewCachingCategorizer(next, cache.NewLRUCache[string](10, time.Minute))

	_, err := cc.Categorize(context.Background(), "x")
	require.Error(t, err)
	_, err = cc.Categorize(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}
