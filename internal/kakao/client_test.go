package kakao

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"teamsched/internal/apperr"
)

func newTestClient(authURL, apiURL string) *Client {
	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost/callback",
		AuthBaseURL:  authURL,
		APIBaseURL:   apiURL,
	}, zerolog.Nop())
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("path = %s, want /oauth/token", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %s", got)
		}
		if got := r.PostForm.Get("code"); got != "the-code" {
			t.Errorf("code = %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "issued-token"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	got, err := c.ExchangeCode(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if got != "issued-token" {
		t.Errorf("token = %s, want issued-token", got)
	}
}

func TestExchangeCodeFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "provider error status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			},
		},
		{
			name: "missing access token",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"token_type": "bearer"})
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := newTestClient(srv.URL, srv.URL)
			if _, err := c.ExchangeCode(context.Background(), "code"); !errors.Is(err, apperr.ErrKakaoAPI) {
				t.Errorf("err = %v, want KAKAO_API_ERROR", err)
			}
		})
	}
}

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/user/me" {
			t.Errorf("path = %s, want /v2/user/me", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer provider-token" {
			t.Errorf("authorization = %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 7001,
			"kakao_account": map[string]any{
				"email": "kim@example.com",
				"profile": map[string]any{
					"nickname":          "kim",
					"profile_image_url": "https://img.example.com/kim.png",
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	profile, err := c.FetchProfile(context.Background(), "provider-token")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	want := Profile{
		KakaoID:         7001,
		Email:           "kim@example.com",
		Nickname:        "kim",
		ProfileImageURL: "https://img.example.com/kim.png",
	}
	if profile != want {
		t.Errorf("profile = %+v, want %+v", profile, want)
	}
}

func TestSend(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
	}{
		{
			name: "json body success",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"result_code": 0})
			},
		},
		{
			// Kakao replies 200 with no body on some success paths.
			name:    "empty body success",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) },
		},
		{
			name: "provider failure",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"code":-401}`, http.StatusUnauthorized)
			},
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var sawTemplate bool
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v2/api/talk/memo/default/send" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("parse form: %v", err)
				}
				sawTemplate = r.PostForm.Get("template_object") != ""
				tc.handler(w, r)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL, srv.URL)
			err := c.Send(context.Background(), "recipient-token", "hello")
			if tc.wantErr {
				if !errors.Is(err, apperr.ErrKakaoAPI) {
					t.Fatalf("err = %v, want KAKAO_API_ERROR", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if !sawTemplate {
				t.Error("request missing template_object form field")
			}
		})
	}
}
