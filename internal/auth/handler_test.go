package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semsearch/semsearch/internal/auth"
	"github.com/semsearch/semsearch/internal/shared"
	"github.com/semsearch/semsearch/internal/users"
	_ "github.com/semsearch/semsearch/testing"
)

type stubRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*users.User
	failGet error
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[uuid.UUID]*users.User{}}
}

func (s *stubRepo) GetByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	return s.users[id], nil
}

func (s *stubRepo) find(match func(*users.User) bool) *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (s *stubRepo) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	return s.find(func(u *users.User) bool { return u.Username == username }), nil
}

func (s *stubRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return s.find(func(u *users.User) bool { return u.Email == email }), nil
}

func (s *stubRepo) Create(ctx context.Context, u users.User) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = uuid.New()
	s.users[u.ID] = &u
	return &u, nil
}

func newIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer("test-secret", "HS256", 30*time.Minute)
	require.NoError(t, err)
	return issuer
}

func newRouter(t *testing.T, repo *stubRepo) chi.Router {
	t.Helper()
	issuer := newIssuer(t)
	svc := auth.NewService(repo, issuer)
	authn := auth.Authenticate(auth.NewVerifier(issuer), func(context.Context) auth.IdentityStore { return repo }, nil)
	h := auth.NewHandler(nil, func(context.Context) *auth.Service { return svc }, authn)
	r := chi.NewRouter()
	r.Route("/v1/auth", h.MountRoutes)
	return r
}

func register(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, r http.Handler, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestRegisterLoginMe(t *testing.T) {
	repo := newStubRepo()
	r := newRouter(t, repo)

	rr := register(t, r, `{"username":"alice","email":"Alice@Example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"role":"user"`)
	assert.Contains(t, rr.Body.String(), `"email":"alice@example.com"`)
	assert.NotContains(t, rr.Body.String(), "correct-horse")

	rr = login(t, r, "alice", "correct-horse")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var token auth.Token
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &token))
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, int64(1800), token.ExpiresIn)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"username":"alice"`)
}

func TestRegisterConflicts(t *testing.T) {
	repo := newStubRepo()
	r := newRouter(t, repo)
	require.Equal(t, http.StatusCreated, register(t, r, `{"username":"alice","email":"a@example.com","password":"password1"}`).Code)

	rr := register(t, r, `{"username":"alice","email":"b@example.com","password":"password1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Username is already registered")

	rr = register(t, r, `{"username":"bob","email":"a@example.com","password":"password1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Email is already registered")
}

func TestRegisterMalformedBody(t *testing.T) {
	r := newRouter(t, newStubRepo())
	rr := register(t, r, `{"username":"al","email":"nope","password":"short"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubRepo()
	r := newRouter(t, repo)
	require.Equal(t, http.StatusCreated, register(t, r, `{"username":"alice","email":"a@example.com","password":"password1"}`).Code)

	for _, tc := range [][2]string{{"alice", "wrong-password"}, {"mallory", "password1"}} {
		rr := login(t, r, tc[0], tc[1])
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Incorrect username or password")
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	}
}

func TestMeRejectsMissingOrBadToken(t *testing.T) {
	r := newRouter(t, newStubRepo())
	for _, header := range []string{"", "Bearer", "Bearer not-a-jwt", "Basic dXNlcjpwYXNz"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
	}
}

func TestVerifier(t *testing.T) {
	repo := newStubRepo()
	stored, _ := repo.Create(context.Background(), users.User{Username: "alice", Role: "user"})
	issuer := newIssuer(t)
	verifier := auth.NewVerifier(issuer)

	valid, err := issuer.Issue(stored.ID)
	require.NoError(t, err)
	user, err := verifier.Verify(context.Background(), valid, repo)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)

	orphan, err := issuer.Issue(uuid.New())
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), orphan, repo)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	other, err := auth.NewTokenIssuer("other-secret", "HS256", time.Minute)
	require.NoError(t, err)
	forged, err := other.Issue(stored.ID)
	require.NoError(t, err)
	_, err = verifier.Verify(context.Background(), forged, repo)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = verifier.Verify(context.Background(), "", repo)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	boom := errors.New("db unavailable")
	repo.failGet = boom
	_, err = verifier.Verify(context.Background(), valid, repo)
	assert.ErrorIs(t, err, boom)
	assert.False(t, shared.Classified(err))
}
