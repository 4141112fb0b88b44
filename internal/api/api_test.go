package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"campusagent/internal/agent"
	"campusagent/internal/api"
	"campusagent/internal/log"
	"campusagent/internal/testutil"
)

const testJWTSecret = "test-jwt-secret-0123456789abcdefghij"

// fakeAgent is a scripted ChatAgent for handler tests.
type fakeAgent struct {
	response  *agent.Response
	err       error
	events    []agent.Event
	lastOwner string
	lastInput string
}

func (f *fakeAgent) Execute(ctx context.Context, ownerEmail, input string) (*agent.Response, error) {
	return f.ExecuteStream(ctx, ownerEmail, input, nil)
}

func (f *fakeAgent) ExecuteStream(_ context.Context, ownerEmail, input string, callback agent.StreamCallback) (*agent.Response, error) {
	f.lastOwner = ownerEmail
	f.lastInput = input
	if callback != nil {
		for _, ev := range f.events {
			if err := callback(context.Background(), ev); err != nil {
				return nil, err
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type testServer struct {
	*httptest.Server
	records *testutil.MemRecords
	agent   *fakeAgent
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	records := testutil.NewMemRecords()
	fa := &fakeAgent{response: &agent.Response{FinalText: "ok"}}

	srv, err := api.NewServer(api.ServerConfig{
		Logger:    log.NewNop(),
		Students:  records,
		Admins:    records,
		Agent:     fa,
		JWTSecret: testJWTSecret,
		TokenTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, records: records, agent: fa}
}

// signupAndLogin registers an admin and returns a bearer token.
func (ts *testServer) signupAndLogin(t *testing.T, email, password string) string {
	t.Helper()

	resp := ts.postJSON(t, "/admin/signup", "", map[string]string{
		"email": email, "password": password, "name": "Test Admin",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}

	form := url.Values{"username": {email}, "password": {password}}
	loginResp, err := http.PostForm(ts.URL+"/admin/login", form)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", loginResp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(loginResp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	if body.TokenType != "bearer" || body.AccessToken == "" {
		t.Fatalf("login response = %+v", body)
	}
	return body.AccessToken
}

func (ts *testServer) do(t *testing.T, method, path, token string, body string) *http.Response {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (ts *testServer) postJSON(t *testing.T, path, token string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return ts.do(t, http.MethodPost, path, token, string(data))
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestHealthAndLiveness(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /ready status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d", resp.StatusCode)
	}
}

func TestSignupValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		payload map[string]string
	}{
		{"malformed email", map[string]string{"email": "nope", "password": "longenough"}},
		{"short password", map[string]string{"email": "a@x.com", "password": "short"}},
		{"empty body", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.postJSON(t, "/admin/signup", "", tt.payload)
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("signup status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin(t, "admin@x.com", "password123")

	resp := ts.postJSON(t, "/admin/signup", "", map[string]string{
		"email": "Admin@X.com", "password": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate signup status = %d, want 400", resp.StatusCode)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.signupAndLogin(t, "admin@x.com", "password123")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "admin@x.com", "wrong-password"},
		{"unknown account", "nobody@x.com", "password123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(ts.URL+"/admin/login", url.Values{
				"username": {tt.username}, "password": {tt.password},
			})
			if err != nil {
				t.Fatalf("login request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("login status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/students/list"},
		{http.MethodPost, "/students"},
		{http.MethodGet, "/analytics/total"},
		{http.MethodGet, "/faq/cafeteria"},
		{http.MethodGet, "/chat?q=hi"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			resp := ts.do(t, p.method, p.path, "", "")
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401 without token", resp.StatusCode)
			}
		})
	}

	// Garbage token is rejected too.
	resp := ts.do(t, http.MethodGet, "/students/list", "not-a-token", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", resp.StatusCode)
	}
}

func TestStudentLifecycleScenario(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "admin@x.com", "password123")

	// Create
	resp := ts.postJSON(t, "/students", token, map[string]any{
		"name": "A", "student_id": 1, "department": "CS", "email": "a@x.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	created := decodeBody[map[string]any](t, resp)
	if created["email"] != "a@x.com" {
		t.Fatalf("created record = %v", created)
	}

	// Duplicate
	resp = ts.postJSON(t, "/students", token, map[string]any{
		"name": "A2", "student_id": 2, "department": "CS", "email": "A@x.com",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("duplicate create status = %d, want 400", resp.StatusCode)
	}

	// Fetch by email
	resp = ts.do(t, http.MethodGet, "/students?email=a@x.com", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	fetched := decodeBody[map[string]any](t, resp)
	if fetched["email"] != created["email"] || fetched["name"] != created["name"] {
		t.Fatalf("fetched = %v, created = %v", fetched, created)
	}

	// Fetch by campus ID
	resp = ts.do(t, http.MethodGet, "/students?student_id=1", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get by id status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Update
	resp = ts.do(t, http.MethodPut, "/students?identifier=a@x.com", token,
		`{"field":"department","new_value":"EE"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := decodeBody[map[string]any](t, resp)
	if updated["department"] != "EE" {
		t.Fatalf("updated = %v", updated)
	}

	// Update outside whitelist
	resp = ts.do(t, http.MethodPut, "/students?identifier=a@x.com", token,
		`{"field":"created_at","new_value":"2020"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("whitelist update status = %d, want 400", resp.StatusCode)
	}

	// Delete by campus ID
	resp = ts.do(t, http.MethodDelete, "/students?identifier=1", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	confirmation := decodeBody[map[string]string](t, resp)
	if !strings.Contains(confirmation["message"], "a@x.com") {
		t.Errorf("delete confirmation = %v, want recipient named", confirmation)
	}

	// Subsequent fetch is a 404
	resp = ts.do(t, http.MethodGet, "/students?email=a@x.com", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}

	// Delete again is a 404
	resp = ts.do(t, http.MethodDelete, "/students?identifier=1", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestGetStudentRequiresQuery(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "admin@x.com", "password123")

	resp := ts.do(t, http.MethodGet, "/students", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("get without query status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyticsByDepartment(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "admin@x.com", "password123")

	for i, dept := range []string{"CS", "CS", "CS", "EE"} {
		resp := ts.postJSON(t, "/students", token, map[string]any{
			"name":       fmt.Sprintf("S%d", i),
			"student_id": i + 1,
			"department": dept,
			"email":      fmt.Sprintf("s%d@x.com", i),
		})
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("seed create %d status = %d", i, resp.StatusCode)
		}
	}

	resp := ts.do(t, http.MethodGet, "/analytics/by-department", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("by-department status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string][]map[string]any](t, resp)
	groups := body["students_by_department"]
	if len(groups) != 2 {
		t.Fatalf("groups = %v, want 2", groups)
	}
	if groups[0]["department"] != "CS" || groups[0]["count"] != float64(3) {
		t.Errorf("groups[0] = %v, want CS count 3", groups[0])
	}
	if groups[1]["department"] != "EE" || groups[1]["count"] != float64(1) {
		t.Errorf("groups[1] = %v, want EE count 1", groups[1])
	}
}

func TestAnalyticsTotalAndRecent(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "admin@x.com", "password123")

	for i := 0; i < 7; i++ {
		resp := ts.postJSON(t, "/students", token, map[string]any{
			"name": fmt.Sprintf("S%d", i), "student_id": i + 1,
			"department": "CS", "email": fmt.Sprintf("s%d@x.com", i),
		})
		resp.Body.Close()
	}

	resp := ts.do(t, http.MethodGet, "/analytics/total", token, "")
	total := decodeBody[map[string]int64](t, resp)
	if total["total_students"] != 7 {
		t.Errorf("total_students = %d, want 7", total["total_students"])
	}

	resp = ts.do(t, http.MethodGet, "/analytics/recent", token, "")
	recent := decodeBody[map[string][]map[string]any](t, resp)
	if len(recent["recent_students"]) != 5 {
		t.Errorf("recent default = %d records, want 5", len(recent["recent_students"]))
	}

	resp = ts.do(t, http.MethodGet, "/analytics/recent?limit=2", token, "")
	recent = decodeBody[map[string][]map[string]any](t, resp)
	if len(recent["recent_students"]) != 2 {
		t.Errorf("recent limit=2 = %d records, want 2", len(recent["recent_students"]))
	}

	resp = ts.do(t, http.MethodGet, "/analytics/recent?limit=abc", token, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("recent limit=abc status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyticsActiveUsesActivityLog(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "admin@x.com", "password123")
	ctx := context.Background()

	resp := ts.postJSON(t, "/students", token, map[string]any{
		"name": "Old", "student_id": 1, "department": "CS", "email": "old@x.com",
	})
	resp.Body.Close()
	resp = ts.postJSON(t, "/students", token, map[string]any{
		"name": "Fresh", "student_id": 2, "department": "CS", "email": "fresh@x.com",
	})
	resp.Body.Close()

	// An entry outside the window must not shadow an in-window one.
	if err := ts.records.RecordActivity(ctx, "old@x.com", time.Now().Add(-30*24*time.Hour)); err != nil {
		t.Fatalf("RecordActivity() error = %v", err)
	}

	resp = ts.do(t, http.MethodGet, "/analytics/active", token, "")
	body := decodeBody[map[string][]map[string]any](t, resp)
	actives := body["active_last_7_days"]
	// Both were active via creation; the extra old entry must not exclude Old.
	if len(actives) != 2 {
		t.Errorf("active students = %v, want both (created within window)", actives)
	}
}

func TestFAQRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signupAndLogin(t, "admin@x.com", "password123")

	resp := ts.do(t, http.MethodGet, "/faq/cafeteria", token, "")
	cafeteria := decodeBody[map[string]string](t, resp)
	if !strings.Contains(cafeteria["cafeteria_timings"], "Mon-Fri") {
		t.Errorf("cafeteria = %v", cafeteria)
	}

	resp = ts.do(t, http.MethodGet, "/faq/library", token, "")
	library := decodeBody[map[string]string](t, resp)
	if library["library_hours"] == "" {
		t.Errorf("library = %v", library)
	}

	resp = ts.do(t, http.MethodGet, "/faq/events", token, "")
	events := decodeBody[map[string][]map[string]any](t, resp)
	if len(events["events"]) == 0 {
		t.Errorf("events = %v", events)
	}
}
