package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fuomag9/kabomba-auth/internal/config"
	"github.com/fuomag9/kabomba-auth/internal/oauth"
	"github.com/fuomag9/kabomba-auth/internal/session"
	"github.com/fuomag9/kabomba-auth/internal/testutil"
	"github.com/fuomag9/kabomba-auth/internal/token"
	"github.com/fuomag9/kabomba-auth/internal/users"
)

const testSecret = "abcdefghijklmnopqrstuvwxyz123456"

// googleStub fakes the token and tokeninfo endpoints.
type googleStub struct {
	tokenStatus int
	tokenBody   string
	tokenDelay  time.Duration
	identity    string
}

type testEnv struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	redis  *miniredis.Miniredis
	users  *users.Service
	store  *users.GormStore
	tokens *token.Issuer
	google *googleStub
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	stub := &googleStub{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"id_token":"id_token"}`,
		identity:    `{"email":"test@gmail.com","given_name":"test","family_name":"test"}`,
	}
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			if stub.tokenDelay > 0 {
				select {
				case <-time.After(stub.tokenDelay):
				case <-r.Context().Done():
					return
				}
			}
			w.WriteHeader(stub.tokenStatus)
			_, _ = io.WriteString(w, stub.tokenBody)
		case "/tokeninfo":
			_, _ = io.WriteString(w, stub.identity)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	cfg := &config.Config{
		Environment: "test",
		CORSOrigins: []string{"http://localhost:3000"},
		JWT:         config.JWTConfig{Secret: testSecret, Issuer: "kabomba-auth", TTL: time.Hour},
		Google: config.GoogleConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8080/auth/google/callback/",
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     provider.URL + "/token",
			UserInfoURL:  provider.URL + "/tokeninfo",
			Scopes:       []string{"openid", "email", "profile"},
			HTTPTimeout:  2 * time.Second,
			StateTTL:     10 * time.Minute,
		},
		Session:            config.SessionConfig{TTL: time.Hour},
		LoginRatePerMinute: 1000,
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := users.NewGormStore(testutil.NewDB(t))
	userSvc := users.NewService(store)
	tokens := token.NewIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	sessions := session.NewManager(session.NewRedisStore(rdb), cfg.Session.TTL, session.CookieOptions{Secure: false})
	oauthSvc := oauth.NewService(oauth.NewClient(cfg.Google), userSvc, tokens, cfg.Google.StateTTL)

	srv := httptest.NewServer(NewRouter(cfg, Deps{
		Users:    userSvc,
		OAuth:    oauthSvc,
		Tokens:   tokens,
		Sessions: sessions,
		Limiter:  NewLoginRateLimiter(cfg.LoginRatePerMinute),
	}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{
		t:      t,
		srv:    srv,
		client: client,
		redis:  mr,
		users:  userSvc,
		store:  store,
		tokens: tokens,
		google: stub,
	}
}

func (e *testEnv) do(method, path string, body any, bearer string) (*http.Response, map[string]any) {
	e.t.Helper()
	return e.doWithHeaders(method, path, body, bearer, nil)
}

func (e *testEnv) doWithHeaders(method, path string, body any, bearer string, headers http.Header) (*http.Response, map[string]any) {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		e.t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatal(err)
	}
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			e.t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp, decoded
}

// startGoogleLogin runs the redirect step and returns the issued state.
func (e *testEnv) startGoogleLogin() string {
	e.t.Helper()
	resp, _ := e.do(http.MethodGet, "/auth/google/", nil, "")
	if resp.StatusCode != http.StatusFound {
		e.t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		e.t.Fatal(err)
	}
	return loc.Query().Get("state")
}

func (e *testEnv) register(username, email, password string) int {
	e.t.Helper()
	u, err := e.users.Register(context.Background(), users.NewUser{Username: username, Email: email, Password: &password})
	if err != nil {
		e.t.Fatalf("register: %v", err)
	}
	return u.ID
}

func (e *testEnv) userCount() int64 {
	e.t.Helper()
	n, err := e.store.Count(context.Background())
	if err != nil {
		e.t.Fatal(err)
	}
	return n
}

func (e *testEnv) tokenFor(userID int) string {
	e.t.Helper()
	tok, err := e.tokens.Issue(userID)
	if err != nil {
		e.t.Fatal(err)
	}
	return tok
}
