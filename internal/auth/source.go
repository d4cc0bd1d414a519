package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingCredentials is returned when neither a usable static token nor a
// complete login credential set is configured. Fatal at point of first use.
var ErrMissingCredentials = errors.New("source auth: no static token and no complete login credentials configured")

// Credentials is the login credential set for the source API.
type Credentials struct {
	LoginURL string
	Alias    string
	User     string
	Password string
}

// Complete reports whether every field needed for a login call is present.
func (c Credentials) Complete() bool {
	return c.LoginURL != "" && c.Alias != "" && c.User != "" && c.Password != ""
}

// StalenessPolicy decides whether a cached token may still be reused. The
// source API does not report token lifetime, so the policy is injectable:
// callers can tighten it without touching the provider.
type StalenessPolicy interface {
	Stale(token string, storedAt, now time.Time) bool
}

// NeverExpires reuses cached tokens indefinitely. This is the behavior the
// source system assumes; stale tokens are regenerated out-of-band.
type NeverExpires struct{}

func (NeverExpires) Stale(string, time.Time, time.Time) bool { return false }

// RejectExpiredJWT treats a cached token as stale when it parses as a JWT
// whose exp claim already passed. Opaque tokens are never stale under this
// policy. Claims are inspected without signature verification; the token is
// only being screened locally, never trusted.
type RejectExpiredJWT struct{}

func (RejectExpiredJWT) Stale(token string, _, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}

// cacheEntry is the persisted token cache format. Earlier deployments wrote
// the bare token string; readEntry still accepts that.
type cacheEntry struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// SourceTokenProvider resolves the bearer token for the source API, in
// order: configured static token, file-cached token (subject to the
// staleness policy), login call. Login results are persisted to the cache
// file for reuse across runs.
type SourceTokenProvider struct {
	Static    string
	Creds     Credentials
	CacheFile string
	Client    *http.Client
	Policy    StalenessPolicy
	Now       func() time.Time
	Log       *slog.Logger
}

// Token returns a usable bearer token or ErrMissingCredentials.
func (p *SourceTokenProvider) Token(ctx context.Context) (string, error) {
	if token := CleanStaticToken(p.Static); token != "" {
		return token, nil
	}

	if token, ok := p.cachedToken(); ok {
		return token, nil
	}

	if !p.Creds.Complete() {
		return "", ErrMissingCredentials
	}
	return p.Login(ctx)
}

// Login performs the credential exchange unconditionally and persists the
// resulting token to the cache file. Used by Token on cache miss and by the
// explicit token-refresh maintenance command.
func (p *SourceTokenProvider) Login(ctx context.Context) (string, error) {
	if !p.Creds.Complete() {
		return "", ErrMissingCredentials
	}

	payload, err := json.Marshal(map[string]string{
		"aliasName": p.Creds.Alias,
		"userName":  p.Creds.User,
		"password":  p.Creds.Password,
	})
	if err != nil {
		return "", fmt.Errorf("source login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Creds.LoginURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("source login: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := p.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("source login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("source login: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("source login: %w", err)
	}

	token := extractToken(body)
	if token == "" {
		return "", errors.New("source login: response carries no token")
	}

	p.saveCache(token)
	return token, nil
}

func (p *SourceTokenProvider) cachedToken() (string, bool) {
	if p.CacheFile == "" {
		return "", false
	}
	entry, ok := p.readEntry()
	if !ok || entry.Token == "" {
		return "", false
	}
	if p.policy().Stale(entry.Token, entry.CreatedAt, p.now()) {
		p.logger().Info("cached source token is stale, regenerating")
		return "", false
	}
	return entry.Token, true
}

func (p *SourceTokenProvider) readEntry() (cacheEntry, bool) {
	body, err := os.ReadFile(p.CacheFile)
	if err != nil {
		return cacheEntry{}, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(body, &entry); err == nil && entry.Token != "" {
		return entry, true
	}
	// Legacy format: the file is the token itself. Use the file mtime as
	// the creation time so the staleness policy still has something.
	token := strings.TrimSpace(string(body))
	if token == "" {
		return cacheEntry{}, false
	}
	createdAt := p.now()
	if info, err := os.Stat(p.CacheFile); err == nil {
		createdAt = info.ModTime()
	}
	return cacheEntry{Token: token, CreatedAt: createdAt}, true
}

func (p *SourceTokenProvider) saveCache(token string) {
	if p.CacheFile == "" {
		return
	}
	body, err := json.Marshal(cacheEntry{Token: token, CreatedAt: p.now()})
	if err != nil {
		return
	}
	if err := os.WriteFile(p.CacheFile, body, 0o600); err != nil {
		p.logger().Warn("source token cache write failed", "path", p.CacheFile, "error", err)
	}
}

func (p *SourceTokenProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *SourceTokenProvider) policy() StalenessPolicy {
	if p.Policy != nil {
		return p.Policy
	}
	return RejectExpiredJWT{}
}

func (p *SourceTokenProvider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *SourceTokenProvider) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// CleanStaticToken strips the quoting config files tend to carry and rejects
// placeholder values, returning "" when the configured token is unusable.
func CleanStaticToken(token string) string {
	token = strings.TrimSpace(strings.Trim(strings.TrimSpace(token), `"`))
	if token == "" || token == "changeme" {
		return ""
	}
	if strings.HasPrefix(token, "<") && strings.HasSuffix(token, ">") {
		return ""
	}
	return token
}

// extractToken pulls a token out of the login response body. The endpoint
// answers a JSON object keyed token/access_token/Token, a JSON string, or
// the bare token itself.
func extractToken(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		for _, key := range []string{"token", "access_token", "Token"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
		}
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return strings.TrimSpace(s)
	}

	// Not JSON at all. Accept the raw body when it looks like a token
	// rather than an error page.
	raw := strings.TrimSpace(string(trimmed))
	if looksLikeToken(raw) {
		return raw
	}
	return ""
}

// looksLikeToken reports whether a bare response body plausibly is a token:
// it parses as a JWT, or it is a single long opaque word.
func looksLikeToken(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	if _, _, err := jwt.NewParser().ParseUnverified(s, jwt.MapClaims{}); err == nil {
		return true
	}
	return len(s) >= 16
}
