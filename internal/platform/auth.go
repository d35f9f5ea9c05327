package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/h2g-data/bidscan/internal/common"
)

const (
	identityToolkitURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"
	sessionTTL         = 55 * time.Minute
	userAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"
)

// Config identifies the vendor platform and the account used to crawl it.
type Config struct {
	Email       string
	Password    string
	LoginURL    string // identity config host
	AppURL      string // application API host
	DownloadURL string // document download host
	TenantID    string
	SessionFile string
}

// session is the persisted authentication state. The identity provider
// issues hour-long tokens; we cache for 55 minutes and re-authenticate
// past that.
type session struct {
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	Email        string    `json:"email"`
	CSRFToken    string    `json:"csrf_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *session) valid() bool {
	return s != nil && s.IDToken != "" && s.CSRFToken != "" && time.Now().Before(s.ExpiresAt)
}

// Auth owns the cookie-based session against the vendor platform. All API
// calls go through Do, which authenticates lazily.
type Auth struct {
	cfg         Config
	http        *http.Client
	logger      *slog.Logger
	session     *session
	identityURL string
}

func NewAuth(cfg Config, logger *slog.Logger) (*Auth, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "platform credentials missing", common.ErrInvalidInput)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &Auth{
		cfg:         cfg,
		http:        &http.Client{Jar: jar, Timeout: 60 * time.Second},
		logger:      logger,
		identityURL: identityToolkitURL,
	}, nil
}

// IDToken exposes the bearer token for the download host, which uses token
// auth instead of cookies.
func (a *Auth) IDToken() string {
	if a.session == nil {
		return ""
	}
	return a.session.IDToken
}

// EnsureAuthenticated loads a cached session or runs the full login flow:
// fetch the identity API key, sign in with password, then obtain a CSRF
// token from the application host.
func (a *Auth) EnsureAuthenticated(ctx context.Context) error {
	if a.session.valid() {
		return nil
	}
	if a.loadSessionFile() && a.session.valid() {
		a.logger.Info("platform.auth.cached_session", "expires_at", a.session.ExpiresAt)
		a.installCookies()
		return nil
	}

	a.logger.Info("platform.auth.login_start", "email", a.cfg.Email)

	apiKey, err := a.fetchAPIKey(ctx)
	if err != nil {
		return err
	}
	if err := a.signIn(ctx, apiKey); err != nil {
		return err
	}
	if err := a.fetchCSRFToken(ctx); err != nil {
		return err
	}

	a.saveSessionFile()
	a.logger.Info("platform.auth.login_ok", "expires_at", a.session.ExpiresAt)
	return nil
}

func (a *Auth) fetchAPIKey(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.LoginURL+"/api/config", nil)
	if err != nil {
		return "", err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch identity config: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		GCIPAPIKey string `json:"gcipApiKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode identity config: %w", err)
	}
	if body.GCIPAPIKey == "" {
		return "", fmt.Errorf("identity config has no api key")
	}
	return body.GCIPAPIKey, nil
}

func (a *Auth) signIn(ctx context.Context, apiKey string) error {
	payload := map[string]any{
		"returnSecureToken": true,
		"email":             a.cfg.Email,
		"password":          a.cfg.Password,
		"clientType":        "CLIENT_TYPE_WEB",
		"tenantId":          a.cfg.TenantID,
	}
	bs, _ := json.Marshal(payload)

	u := a.identityURL + "?key=" + url.QueryEscape(apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sign in failed (status %d): %s", resp.StatusCode, raw)
	}

	var body struct {
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		Email        string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode sign in response: %w", err)
	}
	if body.IDToken == "" {
		return fmt.Errorf("sign in returned no token")
	}

	a.session = &session{
		IDToken:      body.IDToken,
		RefreshToken: body.RefreshToken,
		Email:        body.Email,
		ExpiresAt:    time.Now().Add(sessionTTL),
	}
	a.installCookies()
	return nil
}

// installCookies sets the CCGIPAuth cookie the application host expects.
func (a *Auth) installCookies() {
	appURL, err := url.Parse(a.cfg.AppURL)
	if err != nil || a.session == nil {
		return
	}
	auth, _ := json.Marshal(map[string]string{
		"accessToken":  a.session.IDToken,
		"refreshToken": a.session.RefreshToken,
	})
	cookies := []*http.Cookie{{Name: "CCGIPAuth", Value: url.QueryEscape(string(auth))}}
	if a.session.CSRFToken != "" {
		cookies = append(cookies, &http.Cookie{Name: "_csrf", Value: a.session.CSRFToken})
	}
	a.http.Jar.SetCookies(appURL, cookies)
}

func (a *Auth) fetchCSRFToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.AppURL+"/api/csrf", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", a.cfg.AppURL+"/results")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		CSRF string `json:"csrf"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode csrf response: %w", err)
	}
	if body.CSRF == "" {
		return fmt.Errorf("csrf response has no token")
	}
	a.session.CSRFToken = body.CSRF
	a.installCookies()
	return nil
}

func (a *Auth) loadSessionFile() bool {
	if a.cfg.SessionFile == "" {
		return false
	}
	data, err := os.ReadFile(a.cfg.SessionFile)
	if err != nil {
		return false
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		a.logger.Warn("platform.auth.session_file_corrupt", "file", a.cfg.SessionFile)
		return false
	}
	a.session = &s
	return true
}

func (a *Auth) saveSessionFile() {
	if a.cfg.SessionFile == "" || a.session == nil {
		return
	}
	data, _ := json.MarshalIndent(a.session, "", "  ")
	if err := os.WriteFile(a.cfg.SessionFile, data, 0o600); err != nil {
		a.logger.Warn("platform.auth.session_save_failed", "error", err)
	}
}

// ClearSession drops the in-memory and on-disk session, forcing a fresh
// login on the next call.
func (a *Auth) ClearSession() {
	a.session = nil
	if a.cfg.SessionFile != "" {
		_ = os.Remove(a.cfg.SessionFile)
	}
	if jar, err := cookiejar.New(nil); err == nil {
		a.http.Jar = jar
	}
}

// Do issues an authenticated JSON API call against the application host.
// A 403 clears the session and retries once with fresh credentials.
func (a *Auth) Do(ctx context.Context, method, apiURL string, payload any, headers map[string]string) ([]byte, error) {
	raw, status, err := a.do(ctx, method, apiURL, payload, headers)
	if status == http.StatusForbidden {
		a.logger.Warn("platform.api.forbidden_reauth", "url", apiURL)
		a.ClearSession()
		raw, status, err = a.do(ctx, method, apiURL, payload, headers)
	}
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("api call %s returned status %d", apiURL, status)
	}
	return raw, nil
}

func (a *Auth) do(ctx context.Context, method, apiURL string, payload any, headers map[string]string) ([]byte, int, error) {
	if err := a.EnsureAuthenticated(ctx); err != nil {
		return nil, 0, err
	}

	var body io.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", a.cfg.AppURL)
	req.Header.Set("Referer", a.cfg.AppURL+"/results?area=project&selectedContexts=details")
	req.Header.Set("X-CSRF-Token", a.session.CSRFToken)
	req.Header.Set("csrf-token", a.session.CSRFToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	reqID := uuid.New().String()
	start := time.Now()
	resp, err := a.http.Do(req)
	if err != nil {
		a.logger.Error("platform.api.send_error", "req_id", reqID, "url", apiURL, "error", err)
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	a.logger.Info("platform.api.response",
		"req_id", reqID,
		"url", apiURL,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, resp.StatusCode, nil
}
