// Package kakao implements the two narrow Kakao integrations the core
// depends on: the OAuth code-for-identity exchange and the self-memo
// message send. All provider failures surface uniformly as KAKAO_API_ERROR.
package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"teamsched/internal/apperr"
)

const (
	authBaseURL = "https://kauth.kakao.com"
	apiBaseURL  = "https://kapi.kakao.com"

	tokenPath    = "/oauth/token"
	userInfoPath = "/v2/user/me"
	memoSendPath = "/v2/api/talk/memo/default/send"

	defaultTimeout = 5 * time.Second
)

// Profile is the subset of the Kakao user payload the core depends on.
type Profile struct {
	KakaoID         int64
	Email           string
	Nickname        string
	ProfileImageURL string
}

// Config carries the OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration

	// AuthBaseURL/APIBaseURL override the Kakao endpoints. Test hook.
	AuthBaseURL string
	APIBaseURL  string
}

// Client talks to the Kakao auth and API hosts with bounded timeouts.
// Timeouts fail the enclosing operation; cancellation is not propagated
// into an in-flight provider call beyond the request context.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// New returns a Client with defaults applied.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = authBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = apiBaseURL
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type userInfoResponse struct {
	ID           int64 `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

// ExchangeCode exchanges an authorization code for a Kakao access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
		"code":          {code},
	}

	var resp tokenResponse
	if err := c.postForm(ctx, c.cfg.AuthBaseURL+tokenPath, "", form, &resp); err != nil {
		c.log.Error().Err(err).Msg("kakao token exchange failed")
		return "", apperr.ErrKakaoAPI.Wrap(err)
	}
	if resp.AccessToken == "" {
		return "", apperr.ErrKakaoAPI.Wrap(fmt.Errorf("empty access token in response"))
	}
	return resp.AccessToken, nil
}

// FetchProfile resolves a Kakao access token to the caller's profile.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+userInfoPath, nil)
	if err != nil {
		return Profile{}, apperr.ErrKakaoAPI.Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var resp userInfoResponse
	if err := c.do(req, &resp); err != nil {
		c.log.Error().Err(err).Msg("kakao profile fetch failed")
		return Profile{}, apperr.ErrKakaoAPI.Wrap(err)
	}

	return Profile{
		KakaoID:         resp.ID,
		Email:           resp.KakaoAccount.Email,
		Nickname:        resp.KakaoAccount.Profile.Nickname,
		ProfileImageURL: resp.KakaoAccount.Profile.ProfileImageURL,
	}, nil
}

// Send delivers message to the recipient identified by their stored Kakao
// access token via the self-memo API. Some success responses carry no body;
// an empty body is treated as success.
func (c *Client) Send(ctx context.Context, recipientToken, message string) error {
	template, err := json.Marshal(map[string]any{
		"object_type": "text",
		"text":        message,
		"link": map[string]string{
			"web_url":        "",
			"mobile_web_url": "",
		},
	})
	if err != nil {
		return apperr.ErrKakaoAPI.Wrap(err)
	}

	form := url.Values{"template_object": {string(template)}}
	if err := c.postForm(ctx, c.cfg.APIBaseURL+memoSendPath, recipientToken, form, nil); err != nil {
		c.log.Warn().Err(err).Msg("kakao memo send failed")
		return apperr.ErrKakaoAPI.Wrap(err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, endpoint, bearer string, form url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("kakao API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if dest == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dest)
}
