package services

import (
	"clinic-auth/internal/models"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func newTwoFactorServiceForTest() (*TwoFactorService, *fakeTwoFactorRepo, *fakeCodeStore, *recordingDispatcher, *time.Time) {
	current := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	repo := newFakeTwoFactorRepo()
	// The code store and the service share the clock variable.
	codes := newFakeCodeStore(now)
	dispatcher := &recordingDispatcher{}
	svc := NewTwoFactorService(repo, codes, dispatcher, &recordingEmitter{}, "ClinicOffice", 5*time.Minute, 5)
	svc.now = now
	return svc, repo, codes, dispatcher, &current
}

func smsIdentity() *models.Identity {
	return &models.Identity{ID: "staff-1", Email: "staff@clinic.example", PhoneNumber: "01012341234", IsActive: true}
}

func TestTOTPSetupLifecycle(t *testing.T) {
	svc, repo, _, _, clock := newTwoFactorServiceForTest()
	ctx := context.Background()
	identity := smsIdentity()

	provisioning, err := svc.BeginTOTPSetup(ctx, identity)
	if err != nil {
		t.Fatalf("BeginTOTPSetup: %v", err)
	}
	if provisioning.Secret == "" || provisioning.URI == "" {
		t.Fatal("expected secret and otpauth URI")
	}

	// Pending setup is not yet enabled.
	cfg, _ := repo.GetConfig(ctx, identity.ID)
	if cfg == nil || cfg.Enabled {
		t.Fatal("config should exist but stay disabled until verified")
	}

	code, err := totp.GenerateCode(provisioning.Secret, *clock)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if err := svc.VerifyTOTPSetup(ctx, identity.ID, code); err != nil {
		t.Fatalf("VerifyTOTPSetup: %v", err)
	}

	cfg, _ = repo.GetConfig(ctx, identity.ID)
	if cfg == nil || !cfg.Enabled {
		t.Fatal("config should be enabled after verification")
	}
}

func TestTOTPSetupRejectsBadCode(t *testing.T) {
	svc, _, _, _, _ := newTwoFactorServiceForTest()
	ctx := context.Background()

	if _, err := svc.BeginTOTPSetup(ctx, smsIdentity()); err != nil {
		t.Fatalf("BeginTOTPSetup: %v", err)
	}
	if err := svc.VerifyTOTPSetup(ctx, "staff-1", "000000"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
}

func TestTOTPChallengeSkewWindow(t *testing.T) {
	svc, _, _, _, clock := newTwoFactorServiceForTest()
	ctx := context.Background()
	identity := smsIdentity()

	provisioning, err := svc.BeginTOTPSetup(ctx, identity)
	if err != nil {
		t.Fatalf("BeginTOTPSetup: %v", err)
	}
	setupCode, _ := totp.GenerateCode(provisioning.Secret, *clock)
	if err := svc.VerifyTOTPSetup(ctx, identity.ID, setupCode); err != nil {
		t.Fatalf("VerifyTOTPSetup: %v", err)
	}

	cases := []struct {
		name   string
		offset time.Duration
		wantOK bool
	}{
		{"current step", 0, true},
		{"previous step", -30 * time.Second, true},
		{"next step", 30 * time.Second, true},
		{"three steps behind", -90 * time.Second, false},
		{"three steps ahead", 90 * time.Second, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, err := totp.GenerateCode(provisioning.Secret, clock.Add(tc.offset))
			if err != nil {
				t.Fatalf("GenerateCode: %v", err)
			}
			err = svc.VerifyChallenge(ctx, identity.ID, code)
			if tc.wantOK && err != nil {
				t.Fatalf("expected code at offset %v to verify, got %v", tc.offset, err)
			}
			if !tc.wantOK && !errors.Is(err, ErrCodeMismatch) {
				t.Fatalf("expected ErrCodeMismatch at offset %v, got %v", tc.offset, err)
			}
		})
	}
}

func TestSMSChallengeRoundTrip(t *testing.T) {
	svc, _, _, dispatcher, _ := newTwoFactorServiceForTest()
	ctx := context.Background()
	identity := smsIdentity()

	if err := svc.BeginSMSSetup(ctx, identity); err != nil {
		t.Fatalf("BeginSMSSetup: %v", err)
	}

	method, err := svc.Challenge(ctx, identity)
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if method != models.TwoFactorSMS {
		t.Fatalf("expected sms method, got %s", method)
	}
	if dispatcher.sent != 1 || len(dispatcher.lastCode) != 6 {
		t.Fatalf("expected one 6-digit code dispatched, got %d sends, code %q", dispatcher.sent, dispatcher.lastCode)
	}
	if dispatcher.phone != identity.PhoneNumber {
		t.Fatalf("code dispatched to wrong number: %s", dispatcher.phone)
	}

	if err := svc.VerifyChallenge(ctx, identity.ID, dispatcher.lastCode); err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}

	// Single use: the same code is dead after one success.
	if err := svc.VerifyChallenge(ctx, identity.ID, dispatcher.lastCode); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired on reuse, got %v", err)
	}
}

func TestSMSCodeExpires(t *testing.T) {
	svc, _, _, dispatcher, clock := newTwoFactorServiceForTest()
	ctx := context.Background()
	identity := smsIdentity()

	if err := svc.BeginSMSSetup(ctx, identity); err != nil {
		t.Fatalf("BeginSMSSetup: %v", err)
	}
	if _, err := svc.Challenge(ctx, identity); err != nil {
		t.Fatalf("Challenge: %v", err)
	}

	*clock = clock.Add(5*time.Minute + time.Second)

	if err := svc.VerifyChallenge(ctx, identity.ID, dispatcher.lastCode); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
}

func TestSMSRetryCap(t *testing.T) {
	svc, _, _, dispatcher, _ := newTwoFactorServiceForTest()
	ctx := context.Background()
	identity := smsIdentity()

	if err := svc.BeginSMSSetup(ctx, identity); err != nil {
		t.Fatalf("BeginSMSSetup: %v", err)
	}
	if _, err := svc.Challenge(ctx, identity); err != nil {
		t.Fatalf("Challenge: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := svc.VerifyChallenge(ctx, identity.ID, "999999"); !errors.Is(err, ErrCodeMismatch) {
			t.Fatalf("attempt %d: expected ErrCodeMismatch, got %v", i+1, err)
		}
	}

	// The cap invalidates the code, so even the right one fails now.
	if err := svc.VerifyChallenge(ctx, identity.ID, dispatcher.lastCode); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if err := svc.VerifyChallenge(ctx, identity.ID, dispatcher.lastCode); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("expected cap to persist, got %v", err)
	}
}

func TestSMSSetupRequiresPhone(t *testing.T) {
	svc, _, _, _, _ := newTwoFactorServiceForTest()

	identity := &models.Identity{ID: "staff-2", Email: "nophone@clinic.example"}
	if err := svc.BeginSMSSetup(context.Background(), identity); !errors.Is(err, ErrPhoneRequired) {
		t.Fatalf("expected ErrPhoneRequired, got %v", err)
	}
}

func TestChallengeWithoutProvisioning(t *testing.T) {
	svc, _, _, _, _ := newTwoFactorServiceForTest()

	if _, err := svc.Challenge(context.Background(), smsIdentity()); !errors.Is(err, ErrTwoFactorNotProvisioned) {
		t.Fatalf("expected ErrTwoFactorNotProvisioned, got %v", err)
	}
}

func TestDisableRemovesConfig(t *testing.T) {
	svc, repo, _, _, _ := newTwoFactorServiceForTest()
	ctx := context.Background()
	identity := smsIdentity()

	if err := svc.BeginSMSSetup(ctx, identity); err != nil {
		t.Fatalf("BeginSMSSetup: %v", err)
	}
	if err := svc.Disable(ctx, identity.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}

	cfg, _ := repo.GetConfig(ctx, identity.ID)
	if cfg != nil {
		t.Fatal("config should be gone after disable")
	}
	status, err := svc.Status(ctx, identity.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != nil {
		t.Fatal("status should be nil when never provisioned")
	}
}
