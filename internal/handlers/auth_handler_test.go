package handlers

import (
	"bytes"
	"clinic-auth/internal/config"
	"clinic-auth/internal/models"
	"clinic-auth/internal/services"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// Stub services drive the handler through its login and validation branches.

type stubCredentialService struct {
	identity  *models.Identity
	twoFactor bool
	err       error
}

func (s *stubCredentialService) Verify(ctx context.Context, email, password string, ipAddress *string) (*models.Identity, bool, error) {
	return s.identity, s.twoFactor, s.err
}

type stubTwoFactorService struct {
	method    models.TwoFactorMethod
	verifyErr error
}

func (s *stubTwoFactorService) BeginTOTPSetup(ctx context.Context, identity *models.Identity) (*models.TOTPProvisioning, error) {
	return &models.TOTPProvisioning{Secret: "SECRET", URI: "otpauth://totp/x"}, nil
}
func (s *stubTwoFactorService) VerifyTOTPSetup(ctx context.Context, identityID, code string) error {
	return nil
}
func (s *stubTwoFactorService) BeginSMSSetup(ctx context.Context, identity *models.Identity) error {
	return nil
}
func (s *stubTwoFactorService) Disable(ctx context.Context, identityID string) error { return nil }
func (s *stubTwoFactorService) Status(ctx context.Context, identityID string) (*models.TwoFactorConfig, error) {
	return nil, nil
}
func (s *stubTwoFactorService) Challenge(ctx context.Context, identity *models.Identity) (models.TwoFactorMethod, error) {
	return s.method, nil
}
func (s *stubTwoFactorService) VerifyChallenge(ctx context.Context, identityID, code string) error {
	return s.verifyErr
}

type stubSessionService struct {
	rawToken    string
	session     *models.Session
	validateErr error
	revoked     []string
}

func (s *stubSessionService) Create(ctx context.Context, identity *models.Identity, ipAddress, deviceInfo *string) (string, *models.Session, error) {
	return s.rawToken, s.session, nil
}

func (s *stubSessionService) Validate(ctx context.Context, rawToken string) (*models.Session, error) {
	if s.validateErr != nil {
		return nil, s.validateErr
	}
	return s.session, nil
}

func (s *stubSessionService) Revoke(ctx context.Context, rawToken string) error {
	s.revoked = append(s.revoked, rawToken)
	return nil
}

func (s *stubSessionService) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	return nil
}

func (s *stubSessionService) ListSessions(ctx context.Context, identityID string, activeOnly bool) ([]*models.Session, error) {
	return []*models.Session{s.session}, nil
}

type stubPermissionService struct{}

func (stubPermissionService) EffectivePermissions(ctx context.Context, identityID string) ([]models.EffectivePermission, error) {
	return []models.EffectivePermission{{Code: "patient.records", CanRead: true, DataScope: models.ScopeOwn}}, nil
}
func (stubPermissionService) AccessibleMenus(ctx context.Context, identityID string) ([]string, error) {
	return []string{"patients"}, nil
}
func (stubPermissionService) RolesOf(ctx context.Context, identityID string) ([]*models.Role, error) {
	return []*models.Role{{ID: 1, Code: "counselor", Level: 30}}, nil
}
func (stubPermissionService) InvalidateRBACCache(ctx context.Context) {}

type stubIdentityService struct {
	identity *models.Identity
}

func (s *stubIdentityService) RegisterIdentity(ctx context.Context, email, password, phoneNumber string, departmentID *string) (*models.Identity, error) {
	return s.identity, nil
}
func (s *stubIdentityService) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	return s.identity, nil
}
func (s *stubIdentityService) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return s.identity, nil
}
func (s *stubIdentityService) ListIdentities(ctx context.Context, limit, offset int) ([]*models.Identity, error) {
	return []*models.Identity{s.identity}, nil
}
func (s *stubIdentityService) RecordLogin(ctx context.Context, id string) error { return nil }
func (s *stubIdentityService) Deactivate(ctx context.Context, id string) error  { return nil }
func (s *stubIdentityService) Reactivate(ctx context.Context, id string) error  { return nil }
func (s *stubIdentityService) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:   "test-secret",
		CookieName:  "clinic_session",
		SessionTTL:  24 * time.Hour,
		IdleTimeout: 30 * time.Minute,
	}
}

func activeSession(identityID string) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:             "sess-1",
		IdentityID:     identityID,
		Origin:         models.OriginExternal,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(24 * time.Hour),
		IsActive:       true,
	}
}

func newTestRouter(credential *stubCredentialService, twoFactor *stubTwoFactorService, session *stubSessionService, identity *stubIdentityService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewAuthHandler(credential, twoFactor, session, stubPermissionService{}, identity,
		services.NewJWTService("test-secret"), testAuthConfig())
	handler.RegisterRoutes(router, func(c *gin.Context) {
		c.Set(sessionContextKey, session.session)
		c.Next()
	})
	return router
}

func postLogin(t *testing.T, router *gin.Engine, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginSuccessSetsCookie(t *testing.T) {
	staff := &models.Identity{ID: "staff-1", Email: "doc@clinic.example", IsActive: true}
	session := &stubSessionService{rawToken: "raw-opaque-token", session: activeSession(staff.ID)}
	router := newTestRouter(
		&stubCredentialService{identity: staff},
		&stubTwoFactorService{},
		session,
		&stubIdentityService{identity: staff},
	)

	rec := postLogin(t, router, map[string]string{"email": staff.Email, "password": "correct-horse"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cookieFound := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "clinic_session" {
			cookieFound = true
			if cookie.Value != "raw-opaque-token" {
				t.Fatalf("cookie carries wrong token: %s", cookie.Value)
			}
			if !cookie.HttpOnly {
				t.Fatal("session cookie must be HttpOnly")
			}
		}
	}
	if !cookieFound {
		t.Fatal("expected a session cookie")
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Permissions []models.EffectivePermission `json:"permissions"`
			Menus       []string                     `json:"menus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || len(body.Data.Permissions) != 1 || len(body.Data.Menus) != 1 {
		t.Fatalf("unexpected profile payload: %s", rec.Body.String())
	}
}

func TestLoginRequiresTwoFactorWithoutCookie(t *testing.T) {
	staff := &models.Identity{ID: "staff-1", Email: "doc@clinic.example", IsActive: true}
	router := newTestRouter(
		&stubCredentialService{identity: staff, twoFactor: true},
		&stubTwoFactorService{method: models.TwoFactorSMS},
		&stubSessionService{session: activeSession(staff.ID)},
		&stubIdentityService{identity: staff},
	)

	rec := postLogin(t, router, map[string]string{"email": staff.Email, "password": "correct-horse"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("no cookie may be issued before the second factor verifies")
	}

	var body models.TwoFactorChallengeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.RequiresTwoFactor || body.TwoFactorMethod != models.TwoFactorSMS {
		t.Fatalf("unexpected challenge payload: %s", rec.Body.String())
	}
}

func TestLoginWithOTPCodeCompletes(t *testing.T) {
	staff := &models.Identity{ID: "staff-1", Email: "doc@clinic.example", IsActive: true}
	router := newTestRouter(
		&stubCredentialService{identity: staff, twoFactor: true},
		&stubTwoFactorService{method: models.TwoFactorSMS},
		&stubSessionService{rawToken: "raw-opaque-token", session: activeSession(staff.ID)},
		&stubIdentityService{identity: staff},
	)

	rec := postLogin(t, router, map[string]string{
		"email": staff.Email, "password": "correct-horse", "otp_code": "123456",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatal("expected a session cookie after the code verified")
	}
}

func TestLoginWithWrongOTPCode(t *testing.T) {
	staff := &models.Identity{ID: "staff-1", Email: "doc@clinic.example", IsActive: true}
	router := newTestRouter(
		&stubCredentialService{identity: staff, twoFactor: true},
		&stubTwoFactorService{method: models.TwoFactorSMS, verifyErr: services.ErrCodeMismatch},
		&stubSessionService{session: activeSession(staff.ID)},
		&stubIdentityService{identity: staff},
	)

	rec := postLogin(t, router, map[string]string{
		"email": staff.Email, "password": "correct-horse", "otp_code": "999999",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	router := newTestRouter(
		&stubCredentialService{err: services.ErrInvalidCredentials},
		&stubTwoFactorService{},
		&stubSessionService{},
		&stubIdentityService{},
	)

	rec := postLogin(t, router, map[string]string{"email": "doc@clinic.example", "password": "wrong"})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Success || body.Error.Code != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected error payload: %s", rec.Body.String())
	}
}

func TestValidateExpiredSessionClearsCookie(t *testing.T) {
	staff := &models.Identity{ID: "staff-1", Email: "doc@clinic.example", IsActive: true}
	router := newTestRouter(
		&stubCredentialService{identity: staff},
		&stubTwoFactorService{},
		&stubSessionService{validateErr: services.ErrSessionExpired},
		&stubIdentityService{identity: staff},
	)

	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.AddCookie(&http.Cookie{Name: "clinic_session", Value: "stale-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	cleared := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "clinic_session" && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expired session must clear the cookie")
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error.Code != "SESSION_EXPIRED" {
		t.Fatalf("expected SESSION_EXPIRED, got %s", rec.Body.String())
	}
}

func TestValidateIssuesIdentityHeaders(t *testing.T) {
	staff := &models.Identity{ID: "staff-1", Email: "doc@clinic.example", IsActive: true}
	router := newTestRouter(
		&stubCredentialService{identity: staff},
		&stubTwoFactorService{},
		&stubSessionService{session: activeSession(staff.ID)},
		&stubIdentityService{identity: staff},
	)

	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.AddCookie(&http.Cookie{Name: "clinic_session", Value: "live-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Identity-ID") != "staff-1" {
		t.Fatalf("missing identity header, got %q", rec.Header().Get("X-Identity-ID"))
	}
	if rec.Header().Get("X-Identity-Roles") != "counselor" {
		t.Fatalf("unexpected roles header: %q", rec.Header().Get("X-Identity-Roles"))
	}

	assertion := rec.Header().Get("X-Identity-Assertion")
	claims, err := services.NewJWTService("test-secret").VerifyAssertion(assertion)
	if err != nil {
		t.Fatalf("assertion does not verify: %v", err)
	}
	if claims.IdentityID != "staff-1" {
		t.Fatalf("assertion for wrong identity: %s", claims.IdentityID)
	}
}

func TestLogoutRevokesAndClearsCookie(t *testing.T) {
	staff := &models.Identity{ID: "staff-1", Email: "doc@clinic.example", IsActive: true}
	session := &stubSessionService{session: activeSession(staff.ID)}
	router := newTestRouter(
		&stubCredentialService{identity: staff},
		&stubTwoFactorService{},
		session,
		&stubIdentityService{identity: staff},
	)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "clinic_session", Value: "live-token"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(session.revoked) != 1 || session.revoked[0] != "live-token" {
		t.Fatalf("expected the cookie token to be revoked, got %v", session.revoked)
	}

	cleared := false
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "clinic_session" && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("logout must clear the cookie")
	}

	// Logout without any cookie still succeeds.
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cookieless logout should return 200, got %d", rec.Code)
	}
}
