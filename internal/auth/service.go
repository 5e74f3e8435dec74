package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Admin is the single configured administrator identity.
type Admin struct {
	Username string
	// Password is compared in constant time when PasswordHash is empty.
	Password string
	// PasswordHash is a bcrypt hash and takes precedence over Password.
	PasswordHash string
}

// AdminIdentity is the authenticated principal behind a session token.
type AdminIdentity struct {
	Username  string
	ExpiresAt time.Time
}

// LoginResult is either a direct token or a challenge handle.
type LoginResult struct {
	OTPRequired bool
	Token       string
	ChallengeID string
}

// LoginObserver receives login and challenge outcomes, e.g. for metrics.
type LoginObserver interface {
	LoginOutcome(outcome string)
	ChallengeOutcome(outcome string)
}

// Service orchestrates the two-phase admin login and authorizes tokens.
type Service struct {
	admin      Admin
	codec      *Codec
	challenges *Coordinator
	sessionTTL time.Duration
	observer   LoginObserver
	logger     *zap.Logger
}

// NewService builds the service. A nil coordinator means no out-of-band
// channel is configured and logins receive a token directly.
func NewService(admin Admin, codec *Codec, challenges *Coordinator, sessionTTL time.Duration, logger *zap.Logger) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 60 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		admin:      admin,
		codec:      codec,
		challenges: challenges,
		sessionTTL: sessionTTL,
		observer:   nopObserver{},
		logger:     logger,
	}
}

// WithObserver attaches an outcome observer.
func (s *Service) WithObserver(o LoginObserver) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// OTPEnabled reports whether logins go through a code challenge.
func (s *Service) OTPEnabled() bool { return s.challenges != nil }

// Login checks credentials and either issues a session token or begins a
// code challenge.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if !s.checkCredentials(username, password) {
		s.observer.LoginOutcome("invalid_credentials")
		s.logger.Warn("admin login rejected", zap.String("user", username))
		return LoginResult{}, ErrInvalidCredentials
	}

	if s.challenges == nil {
		s.logger.Warn("otp channel not configured, skipping otp verification", zap.String("user", username))
		token, err := s.issueSession(username)
		if err != nil {
			return LoginResult{}, err
		}
		s.observer.LoginOutcome("direct")
		return LoginResult{OTPRequired: false, Token: token}, nil
	}

	id, err := s.challenges.Begin(ctx, username)
	if err != nil {
		s.observer.LoginOutcome("delivery_failed")
		return LoginResult{}, err
	}
	s.observer.LoginOutcome("challenge")
	return LoginResult{OTPRequired: true, ChallengeID: id}, nil
}

// VerifyChallenge resolves a pending challenge and mints a session token.
func (s *Service) VerifyChallenge(ctx context.Context, challengeID, code string) (string, error) {
	if s.challenges == nil {
		return "", ErrOTPUnavailable
	}
	username, err := s.challenges.Resolve(ctx, challengeID, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidChallenge):
			s.observer.ChallengeOutcome("invalid_challenge")
		case errors.Is(err, ErrInvalidCode):
			s.observer.ChallengeOutcome("invalid_code")
		default:
			s.observer.ChallengeOutcome("error")
		}
		return "", err
	}
	s.observer.ChallengeOutcome("approved")
	s.logger.Info("admin otp verified", zap.String("user", username))
	return s.issueSession(username)
}

// Authorize turns a session token into an admin identity. Pending-challenge
// tokens parse fine but never authorize.
func (s *Service) Authorize(token string) (AdminIdentity, error) {
	if token == "" {
		return AdminIdentity{}, ErrUnauthenticated
	}
	claims, err := s.codec.Parse(token)
	if err != nil {
		return AdminIdentity{}, ErrUnauthenticated
	}
	if !claims.IsAdmin {
		return AdminIdentity{}, ErrUnauthorized
	}
	return AdminIdentity{Username: claims.Subject, ExpiresAt: claims.Expiry()}, nil
}

func (s *Service) issueSession(username string) (string, error) {
	return s.codec.Issue(Claims{Subject: username, IsAdmin: true}, s.sessionTTL)
}

func (s *Service) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	var passOK bool
	if s.admin.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	}
	return userOK && passOK && s.admin.Username != ""
}

type nopObserver struct{}

func (nopObserver) LoginOutcome(string)     {}
func (nopObserver) ChallengeOutcome(string) {}
