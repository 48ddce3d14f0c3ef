package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-review/backend/internal/auth"
	"image-review/backend/internal/backend"
	"image-review/backend/internal/review"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Warn(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.Split(jwtToken, ".")[1])
}

type countingNotifier struct {
	calls int
}

func (n *countingNotifier) QueueEmpty(context.Context, string) error {
	n.calls++
	return nil
}

const testIssuer = "https://test-issuer.com"

func validToken(t *testing.T) string {
	t.Helper()
	header, _ := json.Marshal(map[string]any{"alg": "RS256", "typ": "JWT", "kid": "test-key"})
	payload, _ := json.Marshal(map[string]any{
		"iss": testIssuer,
		"aud": "review-api",
		"sub": "reviewer-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	})
	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
}

type testServer struct {
	e        *echo.Echo
	store    *backend.Memory
	notifier *countingNotifier
	token    string
}

func newTestServer(t *testing.T) *testServer {
	folders, err := review.NewFolders("/pending", "/approved", "/deleted", "/rework")
	require.NoError(t, err)

	store := backend.NewMemory("https://links.test")
	store.AddFolder("/pending")
	notifier := &countingNotifier{}
	logger := &NoOpLogger{}

	svc := review.NewService(review.Deps{
		Folders:  folders,
		Selector: review.NewSelector(store, folders),
		Resolver: review.NewLinkResolver(store, logger),
		Machine:  review.NewMachine(store, folders, logger),
		Notifier: notifier,
		Logger:   logger,
	})

	verifier := oidc.NewVerifier(testIssuer, &MockKeySet{}, &oidc.Config{ClientID: "review-api"})
	authz := auth.NewWithVerifier(verifier, "", logger)

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(logger)
	Register(e, NewHandler(svc, "TanjaX API", logger), echo.WrapMiddleware(authz.RequireAuth))

	return &testServer{e: e, store: store, notifier: notifier, token: validToken(t)}
}

func (s *testServer) do(method, target, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestReviewFlow_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	s.store.Put("id1", "/pending/a.jpg")

	rec := s.do(http.MethodGet, "/image", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"image_url":"https://links.test/pending/a.jpg?raw=1","id":"id1"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/move", `{"action":"approve","uniqueID":"id1"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "/approved/a.jpg")

	p, _ := s.store.Path("id1")
	assert.Equal(t, "/approved/a.jpg", p)

	rec = s.do(http.MethodGet, "/image", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No files found in pending folder"}`, rec.Body.String())
	assert.Equal(t, 1, s.notifier.calls)
}

func TestWelcomeAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"title":"TanjaX API"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	s.store.Put("id1", "/pending/a.jpg")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/image", "", false).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/move", `{"action":"approve","uniqueID":"id1"}`, false).Code)

	p, _ := s.store.Path("id1")
	assert.Equal(t, "/pending/a.jpg", p, "rejected request must not move anything")
}

func TestMove_BadRequests(t *testing.T) {
	s := newTestServer(t)
	s.store.Put("id1", "/pending/a.jpg")

	tests := []struct {
		name string
		body string
	}{
		{"invalid action", `{"action":"publish","uniqueID":"id1"}`},
		{"missing action", `{"uniqueID":"id1"}`},
		{"missing id", `{"action":"approve"}`},
		{"malformed json", `{"action":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/move", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	p, _ := s.store.Path("id1")
	assert.Equal(t, "/pending/a.jpg", p)
}

func TestMove_UnknownIDIsServerError(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/move", `{"action":"approve","uniqueID":"nonexistent"}`, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Item not found, it may have been moved already"}`, rec.Body.String())
}

func TestMove_CollisionIsServerError(t *testing.T) {
	s := newTestServer(t)
	s.store.Put("id1", "/pending/a.jpg")
	s.store.Put("id2", "/approved/a.jpg")

	rec := s.do(http.MethodPost, "/move", `{"action":"approve","uniqueID":"id1"}`, true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "same name")
}

func TestImage_BackendFailureHidesDetail(t *testing.T) {
	s := newTestServer(t)
	folders, _ := review.NewFolders("/missing", "/approved", "/deleted", "/rework")
	svc := review.NewService(review.Deps{
		Folders:  folders,
		Selector: review.NewSelector(s.store, folders),
		Resolver: review.NewLinkResolver(s.store, nil),
		Machine:  review.NewMachine(s.store, folders, nil),
	})
	e := echo.New()
	Register(e, NewHandler(svc, "t", &NoOpLogger{}), func(next echo.HandlerFunc) echo.HandlerFunc { return next })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/image", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Backend request failed"}`, rec.Body.String())
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/nope", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}

func TestClassify(t *testing.T) {
	tests := map[error]int{
		auth.ErrUnauthorized:         http.StatusUnauthorized,
		review.ErrInvalidAction:      http.StatusBadRequest,
		review.ErrMissingParameter:   http.StatusBadRequest,
		review.ErrEmptyQueue:         http.StatusNotFound,
		review.ErrAllReserved:        http.StatusNotFound,
		review.ErrItemNotFound:       http.StatusInternalServerError,
		review.ErrTransitionConflict: http.StatusInternalServerError,
		review.ErrLinkResolution:     http.StatusInternalServerError,
		review.ErrBackendUnavailable: http.StatusInternalServerError,
	}
	for err, want := range tests {
		got, msg := Classify(err)
		assert.Equal(t, want, got, err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestSpecHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	SpecHandler("TanjaX API")(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `title: "TanjaX API"`)
	assert.Contains(t, rec.Body.String(), "/move:")

	rec = httptest.NewRecorder()
	SwaggerHandler("TanjaX API")(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Contains(t, rec.Body.String(), "<title>TanjaX API</title>")
}

func TestReviewerOf_FallsBackToEmail(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/image", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{Email: "a@example.test"}))
	c := e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "a@example.test", reviewerOf(c))

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/image", nil), httptest.NewRecorder())
	assert.Empty(t, reviewerOf(c))
}
