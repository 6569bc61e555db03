package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/msu-life/auth-service/internal/domain"
	"github.com/msu-life/auth-service/internal/email"
	"github.com/msu-life/auth-service/internal/repository"
	"github.com/msu-life/auth-service/internal/session"
	"github.com/msu-life/auth-service/internal/usecase"
)

// ---- fakes ----

type fakeUserRepo struct {
	findByID      func(ctx context.Context, id string) (*domain.User, error)
	findByEmail   func(ctx context.Context, email string) (*domain.User, error)
	list          func(ctx context.Context) ([]domain.User, error)
	ensureUser    func(ctx context.Context, input repository.NewUser) (*domain.User, error)
	updateProfile func(ctx context.Context, id string, update repository.ProfileUpdate) (*domain.User, error)
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findByID(ctx, id)
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findByEmail(ctx, email)
}

func (r *fakeUserRepo) List(ctx context.Context) ([]domain.User, error) {
	return r.list(ctx)
}

func (r *fakeUserRepo) EnsureUser(ctx context.Context, input repository.NewUser) (*domain.User, error) {
	return r.ensureUser(ctx, input)
}

func (r *fakeUserRepo) UpdateProfile(ctx context.Context, id string, update repository.ProfileUpdate) (*domain.User, error) {
	return r.updateProfile(ctx, id, update)
}

type fakeCodeRepo struct {
	countRecent          func(ctx context.Context, email string, since time.Time) (int, error)
	create               func(ctx context.Context, email, codeHash string, expiresAt time.Time) error
	findValid            func(ctx context.Context, email, codeHash string, now time.Time) (*domain.OneTimeCode, error)
	consumeAndEnsureUser func(ctx context.Context, codeID string, input repository.NewUser) (*domain.User, error)
	deleteStale          func(ctx context.Context, expiredBefore time.Time) (int64, error)
}

func (r *fakeCodeRepo) CountRecent(ctx context.Context, email string, since time.Time) (int, error) {
	return r.countRecent(ctx, email, since)
}

func (r *fakeCodeRepo) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	return r.create(ctx, email, codeHash, expiresAt)
}

func (r *fakeCodeRepo) FindValid(ctx context.Context, email, codeHash string, now time.Time) (*domain.OneTimeCode, error) {
	return r.findValid(ctx, email, codeHash, now)
}

func (r *fakeCodeRepo) ConsumeAndEnsureUser(ctx context.Context, codeID string, input repository.NewUser) (*domain.User, error) {
	return r.consumeAndEnsureUser(ctx, codeID, input)
}

func (r *fakeCodeRepo) DeleteStale(ctx context.Context, expiredBefore time.Time) (int64, error) {
	return r.deleteStale(ctx, expiredBefore)
}

type fakeSender struct {
	sendCode func(ctx context.Context, to, code string, ttl time.Duration) error
}

func (s *fakeSender) SendCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return s.sendCode(ctx, to, code, ttl)
}

var _ email.Sender = (*fakeSender)(nil)

// ---- helpers ----

const (
	testPepper = "test-pepper-at-least-16-chars"
	testSecret = "session-test-secret-at-least-32!!"
	testEmail  = "jane.doe22@ndus.edu"
)

var testUser = &domain.User{
	ID:       "user-1",
	Email:    testEmail,
	Role:     domain.RoleStudent,
	IsActive: true,
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCodec() *session.Codec {
	return session.NewCodec([]byte(testSecret), time.Hour)
}

func testConfig() usecase.AuthConfig {
	return usecase.AuthConfig{
		AllowedDomain:   "ndus.edu",
		Pepper:          testPepper,
		CodeTTL:         10 * time.Minute,
		RateMax:         5,
		RateWindow:      10 * time.Minute,
		DebugReturnCode: true,
	}
}

func newUsecase(users *fakeUserRepo, codes *fakeCodeRepo, sender *fakeSender, cfg usecase.AuthConfig) *usecase.AuthUsecase {
	return usecase.NewAuthUsecase(users, codes, sender, testCodec(), testLogger(), cfg)
}

func quietCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{
		countRecent: func(_ context.Context, _ string, _ time.Time) (int, error) { return 0, nil },
		create:      func(_ context.Context, _, _ string, _ time.Time) error { return nil },
	}
}

func quietSender() *fakeSender {
	return &fakeSender{sendCode: func(_ context.Context, _, _ string, _ time.Duration) error { return nil }}
}

// ---- RequestCode ----

func TestRequestCode_WrongDomain_NoSideEffect(t *testing.T) {
	created := false
	codes := quietCodeRepo()
	codes.create = func(_ context.Context, _, _ string, _ time.Time) error {
		created = true
		return nil
	}

	_, err := newUsecase(&fakeUserRepo{}, codes, quietSender(), testConfig()).
		RequestCode(context.Background(), "jane.doe@gmail.com")
	if !errors.Is(err, domain.ErrDomainRejected) {
		t.Fatalf("want ErrDomainRejected, got %v", err)
	}
	if created {
		t.Error("code row was created for a rejected domain")
	}
}

func TestRequestCode_MalformedEmail(t *testing.T) {
	_, err := newUsecase(&fakeUserRepo{}, quietCodeRepo(), quietSender(), testConfig()).
		RequestCode(context.Background(), "not-an-email")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestRequestCode_RateLimited(t *testing.T) {
	codes := quietCodeRepo()
	codes.countRecent = func(_ context.Context, _ string, _ time.Time) (int, error) { return 5, nil }
	codes.create = func(_ context.Context, _, _ string, _ time.Time) error {
		t.Error("code row was created past the rate limit")
		return nil
	}

	_, err := newUsecase(&fakeUserRepo{}, codes, quietSender(), testConfig()).
		RequestCode(context.Background(), testEmail)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
}

func TestRequestCode_StoresHashOfEmailedCode(t *testing.T) {
	var storedHash string
	var storedExpiry time.Time
	var sentCode string

	codes := quietCodeRepo()
	codes.create = func(_ context.Context, _, codeHash string, expiresAt time.Time) error {
		storedHash = codeHash
		storedExpiry = expiresAt
		return nil
	}
	sender := &fakeSender{sendCode: func(_ context.Context, _, code string, _ time.Duration) error {
		sentCode = code
		return nil
	}}

	before := time.Now()
	issued, err := newUsecase(&fakeUserRepo{}, codes, sender, testConfig()).
		RequestCode(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !regexp.MustCompile(`^[0-9]{6}$`).MatchString(sentCode) {
		t.Fatalf("emailed code %q is not a 6-digit string", sentCode)
	}
	if want := usecase.HashCode(testEmail, sentCode, testPepper); storedHash != want {
		t.Errorf("stored hash %q != keyed hash of emailed code", storedHash)
	}
	if !storedExpiry.After(before) {
		t.Errorf("expiry %v is not in the future", storedExpiry)
	}
	if issued.Code != sentCode {
		t.Errorf("debug code %q != emailed code %q", issued.Code, sentCode)
	}
}

func TestRequestCode_NoDebug_CodeWithheld(t *testing.T) {
	cfg := testConfig()
	cfg.DebugReturnCode = false

	issued, err := newUsecase(&fakeUserRepo{}, quietCodeRepo(), quietSender(), cfg).
		RequestCode(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issued.Code != "" {
		t.Errorf("plaintext code %q leaked without debug config", issued.Code)
	}
}

func TestRequestCode_SendFailure_StillSucceeds(t *testing.T) {
	created := false
	codes := quietCodeRepo()
	codes.create = func(_ context.Context, _, _ string, _ time.Time) error {
		created = true
		return nil
	}
	sender := &fakeSender{sendCode: func(_ context.Context, _, _ string, _ time.Duration) error {
		return errors.New("resend unavailable")
	}}

	if _, err := newUsecase(&fakeUserRepo{}, codes, sender, testConfig()).
		RequestCode(context.Background(), testEmail); err != nil {
		t.Fatalf("delivery failure surfaced as an error: %v", err)
	}
	if !created {
		t.Error("code row was not stored")
	}
}

// ---- VerifyCode ----

func TestVerifyCode_BadShape(t *testing.T) {
	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		_, _, err := newUsecase(&fakeUserRepo{}, quietCodeRepo(), quietSender(), testConfig()).
			VerifyCode(context.Background(), testEmail, code)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("code %q: want ErrInvalidInput, got %v", code, err)
		}
	}
}

func TestVerifyCode_WrongDomain(t *testing.T) {
	_, _, err := newUsecase(&fakeUserRepo{}, quietCodeRepo(), quietSender(), testConfig()).
		VerifyCode(context.Background(), "jane@gmail.com", "123456")
	if !errors.Is(err, domain.ErrDomainRejected) {
		t.Fatalf("want ErrDomainRejected, got %v", err)
	}
}

func TestVerifyCode_NoMatchingCode(t *testing.T) {
	codes := quietCodeRepo()
	codes.findValid = func(_ context.Context, _, _ string, _ time.Time) (*domain.OneTimeCode, error) {
		return nil, domain.ErrCodeInvalid
	}

	_, _, err := newUsecase(&fakeUserRepo{}, codes, quietSender(), testConfig()).
		VerifyCode(context.Background(), testEmail, "123456")
	if !errors.Is(err, domain.ErrCodeInvalid) {
		t.Fatalf("want ErrCodeInvalid, got %v", err)
	}
}

func TestVerifyCode_LostConsumptionRace(t *testing.T) {
	codes := quietCodeRepo()
	codes.findValid = func(_ context.Context, _, _ string, _ time.Time) (*domain.OneTimeCode, error) {
		return &domain.OneTimeCode{ID: "code-1", Email: testEmail}, nil
	}
	codes.consumeAndEnsureUser = func(_ context.Context, _ string, _ repository.NewUser) (*domain.User, error) {
		return nil, domain.ErrCodeInvalid
	}

	_, _, err := newUsecase(&fakeUserRepo{}, codes, quietSender(), testConfig()).
		VerifyCode(context.Background(), testEmail, "123456")
	if !errors.Is(err, domain.ErrCodeInvalid) {
		t.Fatalf("want ErrCodeInvalid, got %v", err)
	}
}

func TestVerifyCode_Success_SignsSessionAndDerivesProfile(t *testing.T) {
	var capturedInput repository.NewUser
	var consumedID string

	codes := quietCodeRepo()
	codes.findValid = func(_ context.Context, email, codeHash string, _ time.Time) (*domain.OneTimeCode, error) {
		if email != testEmail {
			t.Errorf("lookup email = %q", email)
		}
		if want := usecase.HashCode(testEmail, "123456", testPepper); codeHash != want {
			t.Errorf("lookup hash = %q, want keyed hash of submitted code", codeHash)
		}
		return &domain.OneTimeCode{ID: "code-1", Email: email}, nil
	}
	codes.consumeAndEnsureUser = func(_ context.Context, codeID string, input repository.NewUser) (*domain.User, error) {
		consumedID = codeID
		capturedInput = input
		return testUser, nil
	}

	user, token, err := newUsecase(&fakeUserRepo{}, codes, quietSender(), testConfig()).
		VerifyCode(context.Background(), "Jane.Doe22@NDUS.EDU", "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != testUser.ID {
		t.Errorf("user id = %q", user.ID)
	}
	if consumedID != "code-1" {
		t.Errorf("consumed code id = %q", consumedID)
	}

	if capturedInput.FirstName == nil || *capturedInput.FirstName != "Jane" {
		t.Errorf("derived first name = %v, want Jane", capturedInput.FirstName)
	}
	if capturedInput.LastName == nil || *capturedInput.LastName != "Doe" {
		t.Errorf("derived last name = %v, want Doe", capturedInput.LastName)
	}
	if len(capturedInput.UsernameCandidates) == 0 || capturedInput.UsernameCandidates[0] != "jane_doe22" {
		t.Errorf("username candidates = %v", capturedInput.UsernameCandidates)
	}

	payload, ok := testCodec().Verify(token)
	if !ok {
		t.Fatal("issued session token does not verify")
	}
	if payload.UID != testUser.ID || payload.Email != testUser.Email || payload.Role != string(domain.RoleStudent) {
		t.Errorf("payload = %+v", payload)
	}
}

func TestVerifyCode_DemoBypass_SkipsStoredCodes(t *testing.T) {
	cfg := testConfig()
	cfg.DemoBypass = true

	codes := quietCodeRepo()
	codes.findValid = func(_ context.Context, _, _ string, _ time.Time) (*domain.OneTimeCode, error) {
		t.Error("stored codes consulted on bypass path")
		return nil, domain.ErrCodeInvalid
	}
	users := &fakeUserRepo{
		ensureUser: func(_ context.Context, input repository.NewUser) (*domain.User, error) {
			if input.Email != testEmail {
				t.Errorf("ensure email = %q", input.Email)
			}
			return testUser, nil
		},
	}

	user, token, err := newUsecase(users, codes, quietSender(), cfg).
		VerifyCode(context.Background(), testEmail, "000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != testUser.ID || token == "" {
		t.Errorf("user = %+v, token = %q", user, token)
	}
}

func TestVerifyCode_BypassDisabled_SentinelGoesThroughStore(t *testing.T) {
	consulted := false
	codes := quietCodeRepo()
	codes.findValid = func(_ context.Context, _, _ string, _ time.Time) (*domain.OneTimeCode, error) {
		consulted = true
		return nil, domain.ErrCodeInvalid
	}

	_, _, err := newUsecase(&fakeUserRepo{}, codes, quietSender(), testConfig()).
		VerifyCode(context.Background(), testEmail, "000000")
	if !errors.Is(err, domain.ErrCodeInvalid) {
		t.Fatalf("want ErrCodeInvalid, got %v", err)
	}
	if !consulted {
		t.Error("stored codes were not consulted with bypass disabled")
	}
}

// ---- UpdateProfile ----

func TestUpdateProfile_NormalizesUsername(t *testing.T) {
	var captured repository.ProfileUpdate
	users := &fakeUserRepo{
		updateProfile: func(_ context.Context, _ string, update repository.ProfileUpdate) (*domain.User, error) {
			captured = update
			return testUser, nil
		},
	}

	username := "Jane.Doe_22"
	_, err := newUsecase(users, quietCodeRepo(), quietSender(), testConfig()).
		UpdateProfile(context.Background(), testUser.ID, usecase.UpdateProfileInput{Username: &username})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Username == nil || *captured.Username != "janedoe_22" {
		t.Errorf("stored username = %v, want janedoe_22", captured.Username)
	}
}

func TestUpdateProfile_InvalidUsername(t *testing.T) {
	username := "a!"
	_, err := newUsecase(&fakeUserRepo{}, quietCodeRepo(), quietSender(), testConfig()).
		UpdateProfile(context.Background(), testUser.ID, usecase.UpdateProfileInput{Username: &username})
	if !errors.Is(err, domain.ErrUsernameInvalid) {
		t.Fatalf("want ErrUsernameInvalid, got %v", err)
	}
}

func TestUpdateProfile_TakenUsername(t *testing.T) {
	users := &fakeUserRepo{
		updateProfile: func(_ context.Context, _ string, _ repository.ProfileUpdate) (*domain.User, error) {
			return nil, domain.ErrUsernameTaken
		},
	}

	username := "jdoe22"
	_, err := newUsecase(users, quietCodeRepo(), quietSender(), testConfig()).
		UpdateProfile(context.Background(), testUser.ID, usecase.UpdateProfileInput{Username: &username})
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("want ErrUsernameTaken, got %v", err)
	}
}
