package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"useraccounts/internal/handlers"
	"useraccounts/internal/metrics"
	"useraccounts/internal/repositories"
	"useraccounts/internal/services"
)

const password = "Strong1!"

type APISuite struct {
	suite.Suite
	store  *repositories.MemoryStore
	router *gin.Engine
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	s.store = repositories.NewMemoryStore()
	hasher := services.NewBcryptHasher(bcrypt.MinCost)
	links := services.NewLinkSigner("test-secret", "useraccounts", "http://localhost:8000", services.DefaultLinkTTLs())
	notifier := services.NewNotifier("account_events")
	m := metrics.New(prometheus.NewRegistry())
	l := zap.NewNop()

	authService := services.NewAuthService(s.store, hasher, m, l)
	userService := services.NewUserService(s.store, hasher, services.DefaultPasswordPolicy(), links, notifier, m, l)
	resetService := services.NewPasswordResetService(s.store, hasher, services.DefaultPasswordPolicy(), links, notifier, m, l)

	s.router = SetupRoutes(gin.New(),
		authService,
		handlers.NewAuthHandler(authService, l),
		handlers.NewUserHandler(userService, true, l),
		handlers.NewPasswordHandler(resetService, true, l),
	)
}

func (s *APISuite) do(method, target, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (s *APISuite) tokenFrom(link any) string {
	str, ok := link.(string)
	s.Require().True(ok, "link missing: %v", link)
	u, err := url.Parse(str)
	s.Require().NoError(err)
	return u.Query().Get("token")
}

// register + activate + login, returns the auth header value
func (s *APISuite) signUp(email string) string {
	w, body := s.do(http.MethodPost, "/api/register/", "", map[string]string{"email": email, "password": password})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(http.MethodGet, "/api/activate/?token="+s.tokenFrom(body["activation_link"]), "", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w, body = s.do(http.MethodPost, "/api/auth/", "", map[string]string{"email": email, "password": password})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return "Token " + body["token"].(string)
}

func (s *APISuite) TestHealthz() {
	w, body := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("ok", body["status"])
}

func (s *APISuite) TestRegisterAndActivate() {
	w, body := s.do(http.MethodPost, "/api/register/", "", map[string]any{
		"email": " Ann@X.com ", "password": password, "first_name": "Ann", "is_active": true,
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("User created successfully.", body["detail"])

	user := body["user"].(map[string]any)
	s.Equal("ann@x.com", user["email"])
	s.Equal(false, user["is_active"])
	s.NotContains(user, "password_hash")
	s.NotContains(user, "password")

	link := body["activation_link"]
	w, body = s.do(http.MethodGet, "/api/activate/?token="+s.tokenFrom(link), "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("User activated successfully.", body["message"])

	w, body = s.do(http.MethodGet, "/api/activate/?uuid="+s.tokenFrom(link), "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("User is already active.", body["message"])

	w, _ = s.do(http.MethodPost, "/api/register/", "", map[string]string{"email": "ann@x.com", "password": password})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APISuite) TestRegisterValidation() {
	w, body := s.do(http.MethodPost, "/api/register/", "", map[string]string{"email": "not-an-email", "password": password})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(body["fields"], "email")

	w, _ = s.do(http.MethodPost, "/api/register/", "", map[string]string{"email": "b@x.com", "password": "12345678"})
	s.Equal(http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/register/", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestActivateErrors() {
	w, _ := s.do(http.MethodGet, "/api/activate/", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/activate/?token=garbage", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *APISuite) TestObtainToken() {
	auth := s.signUp("a@x.com")

	w, body := s.do(http.MethodPost, "/api/auth/", "", map[string]string{"email": "a@x.com", "password": password})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(auth, "Token "+body["token"].(string))
	s.Equal("a@x.com", body["email"])
	s.NotEmpty(body["user_uuid"])

	w, body = s.do(http.MethodPost, "/api/auth/", "", map[string]string{"email": "a@x.com", "password": "nope"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("unable to log in with provided credentials", body["error"])
}

func (s *APISuite) TestProtectedRoutesRequireToken() {
	for _, target := range []string{"/api/profile/", "/api/user-list/"} {
		w, _ := s.do(http.MethodGet, target, "", nil)
		s.Equal(http.StatusUnauthorized, w.Code, target)

		w, _ = s.do(http.MethodGet, target, "Token unknown", nil)
		s.Equal(http.StatusUnauthorized, w.Code, target)
	}
}

func (s *APISuite) TestProfileAndList() {
	auth := s.signUp("a@x.com")
	s.signUp("b@x.com")

	w, body := s.do(http.MethodGet, "/api/profile/", auth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("a@x.com", body["email"])
	s.Equal(true, body["is_active"])
	s.Equal(false, body["is_admin"])

	bearer := "Bearer " + auth[len("Token "):]
	w, _ = s.do(http.MethodGet, "/api/profile/", bearer, nil)
	s.Equal(http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/api/user-list/", nil), auth))
	s.Require().Equal(http.StatusOK, w.Code)
	var list []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Require().Len(list, 2)
	s.Equal("b@x.com", list[0]["email"])

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/api/user-list/?limit=1&offset=1", nil), auth))
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Require().Len(list, 1)
	s.Equal("a@x.com", list[0]["email"])

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/api/user-list/?offset=1", nil), auth))
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Require().Len(list, 1)
	s.Equal("a@x.com", list[0]["email"])

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/api/user-list/?email=B%40X", nil), auth))
	s.Require().Equal(http.StatusOK, w.Code)
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Require().Len(list, 1)
	s.Equal("b@x.com", list[0]["email"])

	w, _ = s.do(http.MethodGet, "/api/user-list/?limit=-1", auth, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *APISuite) TestEditProfile() {
	auth := s.signUp("a@x.com")

	w, body := s.do(http.MethodPut, "/api/edit-profile/", auth, map[string]string{"first_name": "Ann"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Ann", body["first_name"])

	w, _ = s.do(http.MethodPut, "/api/edit-profile/", auth, map[string]string{"first_name": "Ann"})
	s.Equal(http.StatusBadRequest, w.Code)

	long := "abcdefghijklmnopqrstuvwxyzabcde"
	w, body = s.do(http.MethodPut, "/api/edit-profile/", auth, map[string]string{"last_name": long})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(body["fields"], "last_name")
}

func (s *APISuite) TestPasswordReset() {
	s.signUp("a@x.com")

	w, body := s.do(http.MethodPut, "/api/reset-password/", "", map[string]string{"email": "ghost@x.com"})
	s.Equal(http.StatusNotFound, w.Code)

	w, body = s.do(http.MethodPut, "/api/reset-password/", "", map[string]string{"email": "a@x.com"})
	s.Require().Equal(http.StatusOK, w.Code)
	token := s.tokenFrom(body["reset_link"])

	w, _ = s.do(http.MethodPut, "/api/new-password/?token="+token, "", map[string]string{"new_password": "Another2@"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPut, "/api/new-password/?token="+token, "", map[string]string{"new_password": "Third3#pw"})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/api/new-password/", "", map[string]string{"new_password": "Third3#pw"})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/auth/", "", map[string]string{"email": "a@x.com", "password": "Another2@"})
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestChangePassword() {
	auth := s.signUp("a@x.com")

	w, _ := s.do(http.MethodPut, "/api/change-password/", auth, map[string]string{"old_password": "wrong", "new_password": "Another2@"})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/api/change-password/", auth, map[string]string{"old_password": password, "new_password": password})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/api/change-password/", auth, map[string]string{"old_password": password, "new_password": "Another2@"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	// токен остаётся действительным после смены пароля
	w, _ = s.do(http.MethodGet, "/api/profile/", auth, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *APISuite) TestChangeAndVerifyEmail() {
	auth := s.signUp("a@x.com")
	s.signUp("taken@x.com")

	w, _ := s.do(http.MethodPut, "/api/change-email/", auth, map[string]string{"new_email": "A@x.com"})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/api/change-email/", auth, map[string]string{"new_email": "taken@x.com"})
	s.Equal(http.StatusBadRequest, w.Code)

	w, body := s.do(http.MethodPut, "/api/change-email/", auth, map[string]string{"new_email": "new@x.com"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	user := body["user"].(map[string]any)
	s.Equal("new@x.com", user["email"])
	s.Equal(false, user["is_email_verified"])
	token := s.tokenFrom(body["verification_link"])

	w, _ = s.do(http.MethodPut, "/api/verified-email/?token="+token, "", map[string]string{"email": "other@x.com"})
	s.Equal(http.StatusNotFound, w.Code)

	w, _ = s.do(http.MethodPut, "/api/verified-email/?token="+token, "", map[string]string{})
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPut, "/api/verified-email/?token="+token, "", map[string]string{"email": "new@x.com"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w, body = s.do(http.MethodGet, "/api/profile/", auth, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(true, body["is_email_verified"])
}

func authed(r *http.Request, header string) *http.Request {
	r.Header.Set("Authorization", header)
	return r
}
