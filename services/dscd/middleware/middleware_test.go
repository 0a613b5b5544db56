package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ := Subject(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(subject + "|" + strings.Join(Scopes(r.Context()), ",")))
	})
}

func TestAuthenticatorDisabledPassesThrough(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	handler := auth.Middleware("dsc:write")(subjectEcho())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", res.Code)
	}
}

func TestAuthenticatorAcceptsValidToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "dsc-auth", Audience: "dscd"}, nil)
	handler := auth.Middleware("dsc:write")(subjectEcho())

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub":   "dsc1account",
		"iss":   "dsc-auth",
		"aud":   "dscd",
		"scope": "dsc:write dsc:read",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/dsc/mint", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected success, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Body.String(); got != "dsc1account|dsc:write,dsc:read" {
		t.Fatalf("unexpected context values %q", got)
	}
}

func TestAuthenticatorRejections(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "dsc-auth"}, nil)
	handler := auth.Middleware("oracle:write")(subjectEcho())
	valid := jwt.MapClaims{"sub": "dsc1account", "iss": "dsc-auth", "scope": "oracle:write"}

	withClaims := func(mutate func(jwt.MapClaims)) jwt.MapClaims {
		claims := jwt.MapClaims{}
		for k, v := range valid {
			claims[k] = v
		}
		mutate(claims)
		return claims
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "bad signature", header: "Bearer " + signToken(t, "another-secret-another-secret-xx", valid), status: http.StatusUnauthorized},
		{name: "wrong issuer", header: "Bearer " + signToken(t, testSecret, withClaims(func(c jwt.MapClaims) { c["iss"] = "other" })), status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, testSecret, withClaims(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() })), status: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + signToken(t, testSecret, withClaims(func(c jwt.MapClaims) { delete(c, "sub") })), status: http.StatusUnauthorized},
		{name: "missing scope", header: "Bearer " + signToken(t, testSecret, withClaims(func(c jwt.MapClaims) { c["scope"] = "dsc:read" })), status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			if res.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, res.Code)
			}
		})
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RequestsPerMinute: 60, Burst: 1},
	}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }

	handler := limiter.Middleware("write")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/dsc/mint", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}

	now = now.Add(time.Second)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected refilled bucket to admit request, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesClientsAndGroups(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"write": {RequestsPerMinute: 1, Burst: 1},
		"read":  {RequestsPerMinute: 1, Burst: 1},
	}, nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	write := limiter.Middleware("write")(ok)
	read := limiter.Middleware("read")(ok)
	unlimited := limiter.Middleware("admin")(ok)

	send := func(h http.Handler, ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		res := httptest.NewRecorder()
		h.ServeHTTP(res, req)
		return res.Code
	}

	if code := send(write, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("expected first write to pass, got %d", code)
	}
	if code := send(write, "10.0.0.2"); code != http.StatusOK {
		t.Fatalf("expected a different client to pass, got %d", code)
	}
	if code := send(read, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("expected read group to have its own bucket, got %d", code)
	}
	if code := send(write, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("expected repeated write to be limited, got %d", code)
	}
	for i := 0; i < 3; i++ {
		if code := send(unlimited, "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("expected unconfigured group to be unlimited, got %d", code)
		}
	}
}

func TestObservabilityRecordsStatus(t *testing.T) {
	obs := NewObservability(ObservabilityConfig{LogRequests: true}, nil)
	handler := obs.Middleware("test.route")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if res.Code != http.StatusTeapot {
		t.Fatalf("expected wrapped status, got %d", res.Code)
	}
}
