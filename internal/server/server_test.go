package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JaligamRishitha/renewmart-sub002/internal/config"
	"github.com/JaligamRishitha/renewmart-sub002/internal/db"
	"github.com/JaligamRishitha/renewmart-sub002/internal/domain"
	"github.com/JaligamRishitha/renewmart-sub002/internal/engine"
	"github.com/JaligamRishitha/renewmart-sub002/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func actorHeaders(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func seedGovernanceUser(t *testing.T, srv *testServer, id string) {
	t.Helper()
	_, err := srv.Engine.RegisterUser(context.Background(), domain.User{
		ID:    id,
		Email: id + "@example.com",
		Roles: []string{"re_governance_lead"},
	}, "seed")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func createLandHTTP(t *testing.T, srv *testServer, owner string) LandResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/lands", map[string]any{
		"title":       "Sunnyvale Plot",
		"energy_type": "solar",
		"location":    "Sunnyvale, CA",
	}, actorHeaders(owner))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create land status %d: %s", res.StatusCode, string(data))
	}
	var land LandResponse
	if err := json.Unmarshal(data, &land); err != nil {
		t.Fatalf("unmarshal land: %v", err)
	}
	return land
}

func TestHealthIsPublic(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/lands", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("error code = %q, want unauthorized", envelope.Error.Code)
	}
}

func TestLandLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	seedGovernanceUser(t, srv, "gov-1")

	land := createLandHTTP(t, srv, "owner-1")
	if land.Status != "draft" {
		t.Fatalf("new land status = %s, want draft", land.Status)
	}

	statusURL := srv.URL + "/v1/lands/" + land.ID + "/status"
	for _, next := range []string{"submitted", "under_review"} {
		res, data := doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": next}, actorHeaders("owner-1"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s status %d: %s", next, res.StatusCode, string(data))
		}
	}

	// approval is gated on the governance role
	res, data := doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": "approved"}, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("owner approval status %d, want 403: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": "approved"}, actorHeaders("gov-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("governance approval status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": "published"}, actorHeaders("gov-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("publish status %d: %s", res.StatusCode, string(data))
	}
	var published LandResponse
	if err := json.Unmarshal(data, &published); err != nil {
		t.Fatalf("unmarshal land: %v", err)
	}
	if published.PublishedAt == nil {
		t.Fatalf("published land missing published_at")
	}

	// skipping straight from published is rejected
	res, data = doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": "under_review"}, actorHeaders("gov-1"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("terminal transition status %d, want 422: %s", res.StatusCode, string(data))
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/lands/no-such-land", nil, actorHeaders("anyone"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("error code = %q, want not_found", envelope.Error.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	if _, err := srv.Engine.RegisterUser(ctx, domain.User{ID: "svc-1", Roles: []string{"landowner"}}, "seed"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	_, plaintext, err := srv.Engine.CreateAPIKey(ctx, "svc-1", "ci", "seed")
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/lands", nil, map[string]string{"X-Api-Key": plaintext})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key list status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/lands", nil, map[string]string{"X-Api-Key": "bogus"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bogus key status %d, want 401: %s", res.StatusCode, string(data))
	}
}

func TestJWTAuthWithRoles(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	land := createLandHTTP(t, srv, "owner-1")
	statusURL := srv.URL + "/v1/lands/" + land.ID + "/status"
	for _, next := range []string{"submitted", "under_review"} {
		res, data := doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": next}, actorHeaders("owner-1"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s status %d: %s", next, res.StatusCode, string(data))
		}
	}

	token := signTestToken(t, "lead-1", []string{"re_governance_lead"})
	res, data := doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": "approved"}, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("jwt approval status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/lands", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d, want 401: %s", res.StatusCode, string(data))
	}
}

func signTestToken(t *testing.T, subject string, roles []string) string {
	t.Helper()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestProgressEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	land := createLandHTTP(t, srv, "owner-1")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/lands/"+land.ID+"/tasks", map[string]any{
		"assigned_role": "re_sales_advisor",
		"title":         "Pricing review",
	}, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	for _, next := range []string{"in_progress", "completed"} {
		res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+task.ID, map[string]any{"status": next}, actorHeaders("owner-1"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("task to %s status %d: %s", next, res.StatusCode, string(data))
		}
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/lands/"+land.ID+"/progress", nil, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("progress status %d: %s", res.StatusCode, string(data))
	}
	var snap struct {
		State       string `json:"state"`
		OverallPct  int    `json:"overall_pct"`
		RoleResults map[string]struct {
			Percentage int `json:"percentage"`
		} `json:"role_results"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.State != "loaded" {
		t.Fatalf("snapshot state = %s, want loaded", snap.State)
	}
	if got := snap.RoleResults["re_sales_advisor"].Percentage; got != 100 {
		t.Fatalf("sales pct = %d, want 100", got)
	}
	// one staffed role done, two unstaffed roles counted at zero
	if snap.OverallPct != 33 {
		t.Fatalf("overall pct = %d, want 33", snap.OverallPct)
	}
}

func TestMarketplaceAndInterest(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	seedGovernanceUser(t, srv, "gov-1")

	land := createLandHTTP(t, srv, "owner-1")
	statusURL := srv.URL + "/v1/lands/" + land.ID + "/status"
	for _, step := range []struct {
		status string
		actor  string
	}{
		{"submitted", "owner-1"},
		{"under_review", "owner-1"},
		{"approved", "gov-1"},
	} {
		res, data := doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": step.status}, actorHeaders(step.actor))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s status %d: %s", step.status, res.StatusCode, string(data))
		}
	}

	// interest before publication is refused
	interestURL := srv.URL + "/v1/lands/" + land.ID + "/interests"
	res, data := doJSON(t, client, http.MethodPost, interestURL, map[string]any{"message": "call me"}, actorHeaders("investor-1"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("early interest status %d, want 422: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": "published"}, actorHeaders("gov-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("publish status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/marketplace/lands?energy_type=solar", nil, actorHeaders("investor-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("marketplace status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedLands
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal marketplace page: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != land.ID {
		t.Fatalf("marketplace items = %+v, want the published land", page.Items)
	}

	res, data = doJSON(t, client, http.MethodPost, interestURL, map[string]any{"message": "call me"}, actorHeaders("investor-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("interest status %d: %s", res.StatusCode, string(data))
	}
	// duplicates are refused
	res, data = doJSON(t, client, http.MethodPost, interestURL, map[string]any{"message": "again"}, actorHeaders("investor-1"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate interest status %d, want 409: %s", res.StatusCode, string(data))
	}
}

func TestDocMappingOverrideHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	seedGovernanceUser(t, srv, "gov-1")
	land := createLandHTTP(t, srv, "owner-1")

	typesURL := srv.URL + "/v1/lands/" + land.ID + "/document-types?role=re_analyst"
	res, data := doJSON(t, client, http.MethodGet, typesURL, nil, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("visible types status %d: %s", res.StatusCode, string(data))
	}
	var visible VisibleTypesResponse
	if err := json.Unmarshal(data, &visible); err != nil {
		t.Fatalf("unmarshal visible types: %v", err)
	}
	if len(visible.DocumentTypes) == 0 {
		t.Fatalf("expected default visibility for analyst, got none")
	}

	// an explicitly empty override hides everything from every role
	mappingURL := srv.URL + "/v1/lands/" + land.ID + "/doc-mapping"
	res, data = doJSON(t, client, http.MethodPut, mappingURL, map[string]any{}, actorHeaders("gov-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set mapping status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, typesURL, nil, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("visible types status %d: %s", res.StatusCode, string(data))
	}
	visible = VisibleTypesResponse{}
	if err := json.Unmarshal(data, &visible); err != nil {
		t.Fatalf("unmarshal visible types: %v", err)
	}
	if len(visible.DocumentTypes) != 0 {
		t.Fatalf("empty override should hide all types, got %v", visible.DocumentTypes)
	}

	res, data = doJSON(t, client, http.MethodDelete, mappingURL, nil, actorHeaders("gov-1"))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		t.Fatalf("clear mapping status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, typesURL, nil, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("visible types status %d: %s", res.StatusCode, string(data))
	}
	visible = VisibleTypesResponse{}
	if err := json.Unmarshal(data, &visible); err != nil {
		t.Fatalf("unmarshal visible types: %v", err)
	}
	if len(visible.DocumentTypes) == 0 {
		t.Fatalf("clearing the override should restore defaults")
	}
}

func TestDeleteLandHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	seedGovernanceUser(t, srv, "gov-1")

	land := createLandHTTP(t, srv, "owner-1")
	landURL := srv.URL + "/v1/lands/" + land.ID

	// only the owner (or an admin) may delete
	res, data := doJSON(t, client, http.MethodDelete, landURL, nil, actorHeaders("stranger-1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger delete status %d, want 403: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodDelete, landURL, nil, actorHeaders("owner-1"))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		t.Fatalf("owner delete status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, landURL, nil, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted land status %d, want 404: %s", res.StatusCode, string(data))
	}

	// published listings are not deletable without force
	published := createLandHTTP(t, srv, "owner-1")
	statusURL := srv.URL + "/v1/lands/" + published.ID + "/status"
	for _, step := range []struct {
		status string
		actor  string
	}{
		{"submitted", "owner-1"},
		{"under_review", "owner-1"},
		{"approved", "gov-1"},
		{"published", "gov-1"},
	} {
		res, data := doJSON(t, client, http.MethodPost, statusURL, map[string]any{"status": step.status}, actorHeaders(step.actor))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("transition to %s status %d: %s", step.status, res.StatusCode, string(data))
		}
	}
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v1/lands/"+published.ID, nil, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("published delete status %d, want 422: %s", res.StatusCode, string(data))
	}
}

func TestTaskUnassignWithNullBody(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	land := createLandHTTP(t, srv, "owner-1")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/lands/"+land.ID+"/tasks", map[string]any{
		"title":       "Feasibility",
		"assigned_to": "rev-1",
	}, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var task TaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.AssignedTo == nil || *task.AssignedTo != "rev-1" {
		t.Fatalf("task assignee = %v, want rev-1", task.AssignedTo)
	}

	// explicit null unassigns; an absent key would leave the assignee alone
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+task.ID, map[string]any{
		"assigned_to": nil,
	}, actorHeaders("owner-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unassign status %d: %s", res.StatusCode, string(data))
	}
	task = TaskResponse{}
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.AssignedTo != nil {
		t.Fatalf("assignee = %q, want unassigned", *task.AssignedTo)
	}
}

func TestLandListPaginationComplete(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	created := map[string]bool{}
	for i := 0; i < 5; i++ {
		land := createLandHTTP(t, srv, "owner-1")
		created[land.ID] = true
	}

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		url := srv.URL + "/v1/lands?limit=2&owner_id=owner-1"
		if cursor != "" {
			url += "&cursor=" + cursor
		}
		res, data := doJSON(t, client, http.MethodGet, url, nil, actorHeaders("owner-1"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("list lands status %d: %s", res.StatusCode, string(data))
		}
		var page paginatedLands
		if err := json.Unmarshal(data, &page); err != nil {
			t.Fatalf("unmarshal page: %v", err)
		}
		for _, item := range page.Items {
			if seen[item.ID] {
				t.Fatalf("land %s returned twice", item.ID)
			}
			seen[item.ID] = true
		}
		pages++
		if pages > 10 {
			t.Fatalf("cursor never exhausted")
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	// every created land must come back exactly once across the pages
	for id := range created {
		if !seen[id] {
			t.Fatalf("land %s lost between pages", id)
		}
	}
	if len(seen) != len(created) {
		t.Fatalf("paginated %d lands, want %d", len(seen), len(created))
	}
}

func TestTaskListPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	land := createLandHTTP(t, srv, "owner-1")

	for i := 0; i < 5; i++ {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/lands/"+land.ID+"/tasks", map[string]any{
			"assigned_role": "re_analyst",
			"title":         "Feasibility step",
		}, actorHeaders("owner-1"))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create task %d status %d: %s", i, res.StatusCode, string(data))
		}
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		url := srv.URL + "/v1/lands/" + land.ID + "/tasks?limit=2"
		if cursor != "" {
			url += "&cursor=" + cursor
		}
		res, data := doJSON(t, client, http.MethodGet, url, nil, actorHeaders("owner-1"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("list tasks status %d: %s", res.StatusCode, string(data))
		}
		var page paginatedTasks
		if err := json.Unmarshal(data, &page); err != nil {
			t.Fatalf("unmarshal page: %v", err)
		}
		for _, item := range page.Items {
			if seen[item.ID] {
				t.Fatalf("task %s returned twice", item.ID)
			}
			seen[item.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != 5 {
		t.Fatalf("paginated %d tasks, want 5", len(seen))
	}
}
