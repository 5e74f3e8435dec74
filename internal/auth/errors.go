package auth

import "errors"

var (
	ErrInvalidToken            = errors.New("invalid token")
	ErrInvalidCredentials      = errors.New("invalid username or password")
	ErrChallengeDeliveryFailed = errors.New("otp delivery failed")
	ErrInvalidChallenge        = errors.New("invalid session")
	ErrInvalidCode             = errors.New("invalid otp")
	ErrOTPUnavailable          = errors.New("otp verification not available")
	ErrUnauthenticated         = errors.New("not authenticated")
	ErrUnauthorized            = errors.New("not authorized")
)
