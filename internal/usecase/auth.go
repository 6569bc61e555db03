package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/msu-life/auth-service/internal/domain"
	"github.com/msu-life/auth-service/internal/email"
	"github.com/msu-life/auth-service/internal/identity"
	"github.com/msu-life/auth-service/internal/metrics"
	"github.com/msu-life/auth-service/internal/repository"
	"github.com/msu-life/auth-service/internal/session"
)

// bypassCode is the sentinel accepted when demo bypass is configured.
const bypassCode = "000000"

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// AuthConfig is the immutable configuration slice the auth flow needs.
type AuthConfig struct {
	AllowedDomain string
	Pepper        string
	CodeTTL       time.Duration
	RateMax       int
	RateWindow    time.Duration
	// DebugReturnCode makes RequestCode hand the plaintext code back to
	// the caller. Never enabled in production configuration.
	DebugReturnCode bool
	// DemoBypass accepts the sentinel code without a stored OTP row.
	DemoBypass bool
}

type AuthUsecase struct {
	users    repository.UserRepository
	codes    repository.CodeRepository
	sender   email.Sender
	sessions *session.Codec
	logger   *slog.Logger
	cfg      AuthConfig
	now      func() time.Time
}

func NewAuthUsecase(
	users repository.UserRepository,
	codes repository.CodeRepository,
	sender email.Sender,
	sessions *session.Codec,
	logger *slog.Logger,
	cfg AuthConfig,
) *AuthUsecase {
	return &AuthUsecase{
		users:    users,
		codes:    codes,
		sender:   sender,
		sessions: sessions,
		logger:   logger.With("component", "auth_usecase"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// IssuedCode is returned by RequestCode. Code is only populated under
// debug configuration.
type IssuedCode struct {
	Code      string
	ExpiresIn time.Duration
}

// RequestCode issues a one-time login code for the email: domain gate,
// rate limit, store the keyed hash, dispatch the plaintext out of band.
// Delivery failure is logged but does not undo the stored code; the
// user can simply request another.
func (u *AuthUsecase) RequestCode(ctx context.Context, emailAddr string) (*IssuedCode, error) {
	emailAddr, err := u.checkEmail(emailAddr)
	if err != nil {
		return nil, err
	}

	since := u.now().Add(-u.cfg.RateWindow)
	count, err := u.codes.CountRecent(ctx, emailAddr, since)
	if err != nil {
		return nil, fmt.Errorf("count recent codes: %w", err)
	}
	if count >= u.cfg.RateMax {
		metrics.CodesRequestedTotal.WithLabelValues("rate_limited").Inc()
		return nil, domain.ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	expiresAt := u.now().Add(u.cfg.CodeTTL)
	if err := u.codes.Create(ctx, emailAddr, HashCode(emailAddr, code, u.cfg.Pepper), expiresAt); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}
	metrics.CodesRequestedTotal.WithLabelValues("issued").Inc()

	if err := u.sender.SendCode(ctx, emailAddr, code, u.cfg.CodeTTL); err != nil {
		u.logger.ErrorContext(ctx, "send login code", "error", err)
	}

	issued := &IssuedCode{ExpiresIn: u.cfg.CodeTTL}
	if u.cfg.DebugReturnCode {
		issued.Code = code
	}
	return issued, nil
}

// VerifyCode checks a submitted code, consumes it exactly once,
// finds-or-creates the user and returns the user with a signed session
// token. Wrong, expired, used and lost-race codes are indistinguishable.
func (u *AuthUsecase) VerifyCode(ctx context.Context, emailAddr, code string) (*domain.User, string, error) {
	emailAddr, err := u.checkEmail(emailAddr)
	if err != nil {
		return nil, "", err
	}
	if !codePattern.MatchString(code) {
		return nil, "", domain.ErrInvalidInput
	}

	newUser := firstLoginDefaults(emailAddr)

	if u.cfg.DemoBypass && code == bypassCode {
		user, err := u.users.EnsureUser(ctx, newUser)
		if err != nil {
			return nil, "", fmt.Errorf("ensure user: %w", err)
		}
		metrics.CodesVerifiedTotal.WithLabelValues("bypass").Inc()
		return u.login(user)
	}

	record, err := u.codes.FindValid(ctx, emailAddr, HashCode(emailAddr, code, u.cfg.Pepper), u.now())
	if err != nil {
		metrics.CodesVerifiedTotal.WithLabelValues("rejected").Inc()
		return nil, "", err
	}

	user, err := u.codes.ConsumeAndEnsureUser(ctx, record.ID, newUser)
	if err != nil {
		metrics.CodesVerifiedTotal.WithLabelValues("rejected").Inc()
		return nil, "", err
	}

	metrics.CodesVerifiedTotal.WithLabelValues("ok").Inc()
	return u.login(user)
}

func (u *AuthUsecase) login(user *domain.User) (*domain.User, string, error) {
	token, err := u.sessions.Sign(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, "", fmt.Errorf("sign session: %w", err)
	}
	metrics.SessionsIssuedTotal.Inc()
	return user, token, nil
}

// UpdateProfileInput applies only its non-nil fields.
type UpdateProfileInput struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// UpdateProfile lets a user change their own profile. A supplied
// username is normalized and must be free.
func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*domain.User, error) {
	update := repository.ProfileUpdate{
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}

	if input.Username != nil {
		normalized := identity.NormalizeUsername(*input.Username)
		if normalized == "" {
			return nil, domain.ErrUsernameInvalid
		}
		update.Username = &normalized
	}

	user, err := u.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// checkEmail normalizes the address and enforces the campus domain.
func (u *AuthUsecase) checkEmail(emailAddr string) (string, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	local, host, found := strings.Cut(emailAddr, "@")
	if !found || local == "" || host == "" || strings.Contains(host, "@") {
		return "", domain.ErrInvalidInput
	}
	if host != strings.ToLower(u.cfg.AllowedDomain) {
		return "", domain.ErrDomainRejected
	}
	return emailAddr, nil
}

// firstLoginDefaults derives the profile a user record starts with.
func firstLoginDefaults(emailAddr string) repository.NewUser {
	names := identity.DeriveNames(emailAddr)
	return repository.NewUser{
		Email:              emailAddr,
		FirstName:          names.FirstName,
		LastName:           names.LastName,
		UsernameCandidates: identity.UsernameCandidates(identity.DeriveUsername(emailAddr)),
	}
}

// generateCode draws a uniform 6-digit decimal code, leading zeros kept.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// HashCode computes the stored digest of a code: SHA-256 over
// "email:code:pepper". The pepper never leaves the server.
func HashCode(email, code, pepper string) string {
	sum := sha256.Sum256([]byte(email + ":" + code + ":" + pepper))
	return fmt.Sprintf("%x", sum)
}
