package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "classattend"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue(Identity{Subject: "c1:7", Role: RoleStudent, ClassID: "c1", RollNumber: "7"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.ExpiresAt, time.Minute)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, claims.Role)
	assert.Equal(t, "c1", claims.ClassID)
	assert.Equal(t, "7", claims.RollNumber)
	assert.Equal(t, "c1:7", claims.Subject)
}

func TestParseRejects(t *testing.T) {
	good, err := Issue(Identity{Subject: "t1", Role: RoleTeacher}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	expired, err := Issue(Identity{Subject: "t1", Role: RoleTeacher}, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "device",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testIssuer, Subject: "d"},
	}).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = Parse(good.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)
	_, err = Parse(good.AccessToken, testKey, "someone-else")
	assert.Error(t, err)
	_, err = Parse(expired.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
	_, err = Parse(unknownRole, testKey, testIssuer)
	assert.Error(t, err)

	_, err = Issue(Identity{Role: RoleTeacher}, testIssuer, testKey, time.Hour)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", Authenticate(testKey, testIssuer), RequireRole(RoleClassAdmin), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.ClassID)
	})

	admin, err := Issue(Identity{Subject: "c1", Role: RoleClassAdmin, ClassID: "c1"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	student, err := Issue(Identity{Subject: "c1:1", Role: RoleStudent, ClassID: "c1", RollNumber: "1"}, testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"admin", "bearer " + admin.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
