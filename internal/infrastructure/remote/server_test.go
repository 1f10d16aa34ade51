package remote

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeAdminAPI answers GraphQL calls with canned responses keyed by
// operation name, the first identifier after "query"/"mutation"
type fakeAdminAPI struct {
	t        *testing.T
	mu       sync.Mutex
	handlers map[string]func(vars map[string]any) (int, string)
	requests []recordedRequest
}

type recordedRequest struct {
	Operation string
	Token     string
	Variables map[string]any
}

func newFakeAdminAPI(t *testing.T) (*fakeAdminAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAdminAPI{t: t, handlers: make(map[string]func(map[string]any) (int, string))}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, srv
}

func (a *fakeAdminAPI) on(operation string, fn func(vars map[string]any) (int, string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[operation] = fn
}

func (a *fakeAdminAPI) reply(operation string, status int, body string) {
	a.on(operation, func(map[string]any) (int, string) { return status, body })
}

func (a *fakeAdminAPI) calls(operation string) []recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []recordedRequest
	for _, r := range a.requests {
		if r.Operation == operation {
			out = append(out, r)
		}
	}
	return out
}

func (a *fakeAdminAPI) serve(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	require.NoError(a.t, err)

	var req graphQLRequest
	require.NoError(a.t, json.Unmarshal(raw, &req))
	name := operationName(req.Query)

	a.mu.Lock()
	a.requests = append(a.requests, recordedRequest{
		Operation: name,
		Token:     r.Header.Get("X-Shopify-Access-Token"),
		Variables: req.Variables,
	})
	fn, ok := a.handlers[name]
	a.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	status, body := fn(req.Variables)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func operationName(query string) string {
	fields := strings.Fields(query)
	if len(fields) < 2 {
		return ""
	}
	name, _, _ := strings.Cut(fields[1], "(")
	return name
}

func testConfig() Config {
	cfg := Config{
		Scheme:               "http",
		Timeout:              2 * time.Second,
		MaxRetries:           2,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
	}
	cfg.applyDefaults()
	return cfg
}
