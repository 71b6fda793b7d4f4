package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testTokens(now time.Time) TokenService {
	return TokenService{
		Secret:   []byte("test-secret"),
		Issuer:   "cardhub",
		Duration: time.Hour,
		Now:      func() time.Time { return now },
	}
}

func TestTokenService_SignParse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := testTokens(now)

	tok, exp, err := ts.Sign("admin", ScopeOwnershipWrite)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := ts.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, ScopeOwnershipWrite, claims.Scope)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := testTokens(now)
	tok, _, err := ts.Sign("admin", ScopeOwnershipWrite)
	require.NoError(t, err)

	later := testTokens(now.Add(2 * time.Hour))
	_, err = later.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other := testTokens(now)
	other.Secret = []byte("other")
	_, err = other.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	foreign := testTokens(now)
	foreign.Issuer = "someone-else"
	_, err = foreign.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	_, err = ts.Parse("not.a.token")
	assert.Error(t, err)
}

func protectedRouter(ts TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireScope(ts, ScopeOwnershipWrite))
	r.PUT("/ownership/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": MustGetClaims(c).Subject})
	})
	return r
}

func TestRequireScope(t *testing.T) {
	ts := testTokens(time.Now())
	r := protectedRouter(ts)

	good, _, err := ts.Sign("admin", ScopeOwnershipWrite)
	require.NoError(t, err)
	weak, _, err := ts.Sign("admin", "catalog:read")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong scope", "Bearer " + weak, http.StatusForbidden},
		{"ok", "Bearer " + good, http.StatusOK},
		{"lowercase scheme", "bearer " + good, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/ownership/a:1", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestMustGetClaims_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, MustGetClaims(c))
}

func TestTokenHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	ts := testTokens(time.Now())

	r := gin.New()
	NewHandler("admin", string(hash), ts).RegisterRoutes(r.Group("/auth"))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"username":"admin","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
		Scope string `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ScopeOwnershipWrite, resp.Scope)
	claims, err := ts.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)

	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"admin","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"root","password":"hunter2"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"username":"admin"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{`).Code)
}

func TestTokenHandler_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler("admin", "", testTokens(time.Now())).RegisterRoutes(r.Group("/auth"))

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"admin","password":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
