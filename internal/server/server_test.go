package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"teamsched/internal/audit"
	"teamsched/internal/auth"
	"teamsched/internal/dbtest"
	"teamsched/internal/notify"
	"teamsched/internal/schedule"
	"teamsched/internal/team"
	"teamsched/internal/token"
	"teamsched/internal/user"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	db := dbtest.Open(t)
	codec, err := token.NewCodec("0123456789abcdef0123456789abcdef", 30*time.Minute, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	log := zerolog.Nop()
	rec := audit.NewRecorder(db, log)
	prefs := notify.NewPreferenceService(db, log)
	teams := team.NewService(db, rec, log)
	srv := New(Options{
		Codec:     codec,
		Auth:      auth.NewService(db, codec, nil, prefs, rec, log),
		Users:     user.NewService(db, log),
		Teams:     teams,
		Schedules: schedule.NewService(db, teams, nil, log),
		Notify:    notify.NewDispatcher(db, nil, log),
		Prefs:     prefs,
		Log:       log,
	})
	return srv.Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// registerAndLogin creates a user through the API and returns its access
// token.
func registerAndLogin(t *testing.T, h http.Handler, username string) string {
	t.Helper()

	w := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"password": "correct horse battery",
		"name":     username,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": "correct horse battery",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var result struct {
		AccessToken string `json:"access_token"`
	}
	decodeBody(t, w, &result)
	if result.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return result.AccessToken
}

func TestLoginFlow(t *testing.T) {
	h := newTestHandler(t)
	tok := registerAndLogin(t, h, "alice")

	w := doJSON(t, h, http.MethodGet, "/api/users/me", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile status = %d, body %s", w.Code, w.Body.String())
	}
	var profile struct {
		Username *string `json:"username"`
		Name     string  `json:"name"`
	}
	decodeBody(t, w, &profile)
	if profile.Username == nil || *profile.Username != "alice" {
		t.Errorf("profile username = %v, want alice", profile.Username)
	}

	// Wrong password and unknown user produce the same answer.
	for _, creds := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "nobody", "password": "whatever"},
	} {
		w := doJSON(t, h, http.MethodPost, "/api/auth/login", "", creds)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("login %v status = %d, want 401", creds, w.Code)
		}
		var body struct {
			Code string `json:"code"`
		}
		decodeBody(t, w, &body)
		if body.Code != "UNAUTHORIZED" {
			t.Errorf("login %v code = %s, want UNAUTHORIZED", creds, body.Code)
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name   string
		bearer string
		want   int
		code   string
	}{
		{name: "no token", bearer: "", want: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "garbage token", bearer: "not-a-jwt", want: http.StatusUnauthorized, code: "INVALID_TOKEN"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodGet, "/api/users/me", tc.bearer, nil)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
			var body struct {
				Code string `json:"code"`
			}
			decodeBody(t, w, &body)
			if body.Code != tc.code {
				t.Errorf("code = %s, want %s", body.Code, tc.code)
			}
		})
	}
}

func TestScheduleVisibility(t *testing.T) {
	h := newTestHandler(t)
	owner := registerAndLogin(t, h, "owner")
	outsider := registerAndLogin(t, h, "outsider")

	w := doJSON(t, h, http.MethodPost, "/api/teams", owner, map[string]string{"name": "platform"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create team status = %d, body %s", w.Code, w.Body.String())
	}
	var createdTeam struct {
		ID uint `json:"id"`
	}
	decodeBody(t, w, &createdTeam)

	w = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/teams/%d/schedules", createdTeam.ID), owner, map[string]any{
		"title":       "oncall week",
		"description": "rotation notes",
		"type":        "WORK",
		"start_at":    "2026-09-07T09:00:00Z",
		"end_at":      "2026-09-11T18:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create schedule status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID uint `json:"id"`
	}
	decodeBody(t, w, &created)

	path := fmt.Sprintf("/api/teams/%d/schedules/%d", createdTeam.ID, created.ID)

	type viewBody struct {
		Description *string `json:"description"`
		CanEdit     bool    `json:"can_edit"`
		CanDelete   bool    `json:"can_delete"`
	}

	// The creator sees everything and may mutate.
	w = doJSON(t, h, http.MethodGet, path, owner, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("member get status = %d", w.Code)
	}
	var memberBody viewBody
	decodeBody(t, w, &memberBody)
	if memberBody.Description == nil || !memberBody.CanEdit || !memberBody.CanDelete {
		t.Errorf("member view redacted: %+v", memberBody)
	}

	// Non-members and anonymous readers get the redacted projection.
	for _, bearer := range []string{outsider, ""} {
		w = doJSON(t, h, http.MethodGet, path, bearer, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("public get status = %d, body %s", w.Code, w.Body.String())
		}
		var body viewBody
		decodeBody(t, w, &body)
		if body.Description != nil || body.CanEdit || body.CanDelete {
			t.Errorf("public view not redacted: %+v", body)
		}
	}

	// Archive, then reads answer SCHEDULE_ARCHIVED rather than not-found.
	w = doJSON(t, h, http.MethodDelete, path, owner, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("archive status = %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, h, http.MethodGet, path, owner, nil)
	if w.Code != http.StatusGone {
		t.Fatalf("archived get status = %d, want 410", w.Code)
	}
	var archivedBody struct {
		Code string `json:"code"`
	}
	decodeBody(t, w, &archivedBody)
	if archivedBody.Code != "SCHEDULE_ARCHIVED" {
		t.Errorf("archived code = %s, want SCHEDULE_ARCHIVED", archivedBody.Code)
	}
}

func TestPublicReadTreatsBadBearerAsAnonymous(t *testing.T) {
	h := newTestHandler(t)
	owner := registerAndLogin(t, h, "owner")

	w := doJSON(t, h, http.MethodPost, "/api/teams", owner, map[string]string{"name": "platform"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create team status = %d, body %s", w.Code, w.Body.String())
	}
	var createdTeam struct {
		ID uint `json:"id"`
	}
	decodeBody(t, w, &createdTeam)

	w = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/teams/%d/schedules", createdTeam.ID), owner, map[string]any{
		"title":    "standup",
		"type":     "WORK",
		"start_at": "2026-09-07T09:00:00Z",
		"end_at":   "2026-09-07T09:30:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create schedule status = %d, body %s", w.Code, w.Body.String())
	}

	// Same key as newTestHandler, so signatures verify but this token is
	// already past its expiry.
	codec, err := token.NewCodec("0123456789abcdef0123456789abcdef", 30*time.Minute, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	expired, err := codec.IssueWithTTL(1, -time.Minute)
	if err != nil {
		t.Fatalf("issue expired token: %v", err)
	}

	listPath := fmt.Sprintf("/api/teams/%d/schedules", createdTeam.ID)
	for _, tc := range []struct {
		name   string
		bearer string
	}{
		{name: "garbage token", bearer: "not-a-jwt"},
		{name: "expired token", bearer: expired},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodGet, listPath, tc.bearer, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("list status = %d, want 200, body %s", w.Code, w.Body.String())
			}
			var body struct {
				Schedules []struct {
					Description *string `json:"description"`
					CanEdit     bool    `json:"can_edit"`
				} `json:"schedules"`
			}
			decodeBody(t, w, &body)
			if len(body.Schedules) != 1 {
				t.Fatalf("got %d schedules, want 1", len(body.Schedules))
			}
			if body.Schedules[0].Description != nil || body.Schedules[0].CanEdit {
				t.Errorf("view not redacted: %+v", body.Schedules[0])
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestHandler(t)
	tok := registerAndLogin(t, h, "carol")

	w := doJSON(t, h, http.MethodGet, "/api/teams/9999", tok, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing team status = %d, want 404", w.Code)
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	decodeBody(t, w, &body)
	if body.Code != "TEAM_NOT_FOUND" {
		t.Errorf("code = %s, want TEAM_NOT_FOUND", body.Code)
	}
	if body.Message == "" {
		t.Error("error response missing message")
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestHandler(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		w := doJSON(t, h, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}
