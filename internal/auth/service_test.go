package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type countingObserver struct {
	logins     map[string]int
	challenges map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{logins: map[string]int{}, challenges: map[string]int{}}
}

func (o *countingObserver) LoginOutcome(outcome string)     { o.logins[outcome]++ }
func (o *countingObserver) ChallengeOutcome(outcome string) { o.challenges[outcome]++ }

var testAdmin = Admin{Username: "admin", Password: "12345"}

func TestLoginWithoutChannelIssuesTokenDirectly(t *testing.T) {
	obs := newCountingObserver()
	svc := NewService(testAdmin, NewCodec("secret", "result-portal"), nil, time.Hour, nil).WithObserver(obs)

	res, err := svc.Login(context.Background(), "admin", "12345")
	require.NoError(t, err)
	assert.False(t, res.OTPRequired)
	assert.NotEmpty(t, res.Token)
	assert.Empty(t, res.ChallengeID)

	id, err := svc.Authorize(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Username)
	assert.Equal(t, 1, obs.logins["direct"])

	_, err = svc.VerifyChallenge(context.Background(), "whatever", "1")
	assert.ErrorIs(t, err, ErrOTPUnavailable)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := NewService(testAdmin, NewCodec("secret", ""), nil, time.Hour, nil)

	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"wrong", "12345"},
		{"", ""},
		{"ADMIN", "12345"},
	} {
		_, err := svc.Login(context.Background(), tc.user, tc.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "%s/%s", tc.user, tc.pass)
	}
}

func TestLoginWithPasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := Admin{Username: "admin", Password: "12345", PasswordHash: string(hash)}
	svc := NewService(admin, NewCodec("secret", ""), nil, time.Hour, nil)

	_, err = svc.Login(context.Background(), "admin", "12345")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestLoginWithChannelRequiresChallenge(t *testing.T) {
	codec := NewCodec("secret", "result-portal")
	n := &fakeNotifier{code: "123456"}
	coord := NewCoordinator(codec, NewMemoryChallengeStore(), n, CoordinatorConfig{Destination: "+15550001111"}, nil)
	obs := newCountingObserver()
	svc := NewService(testAdmin, codec, coord, time.Hour, nil).WithObserver(obs)
	require.True(t, svc.OTPEnabled())

	res, err := svc.Login(context.Background(), "admin", "12345")
	require.NoError(t, err)
	assert.True(t, res.OTPRequired)
	assert.Empty(t, res.Token)
	require.NotEmpty(t, res.ChallengeID)

	// the challenge id is itself a token but never authorizes writes
	_, err = svc.Authorize(res.ChallengeID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.VerifyChallenge(context.Background(), res.ChallengeID, "999999")
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = svc.VerifyChallenge(context.Background(), res.ChallengeID, "123456")
	assert.ErrorIs(t, err, ErrInvalidChallenge)

	res, err = svc.Login(context.Background(), "admin", "12345")
	require.NoError(t, err)
	token, err := svc.VerifyChallenge(context.Background(), res.ChallengeID, "123456")
	require.NoError(t, err)

	id, err := svc.Authorize(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Username)
	assert.Equal(t, 1, obs.challenges["invalid_code"])
	assert.Equal(t, 1, obs.challenges["invalid_challenge"])
	assert.Equal(t, 1, obs.challenges["approved"])
	assert.Equal(t, 2, obs.logins["challenge"])
}

func TestAuthorize(t *testing.T) {
	codec := NewCodec("secret", "result-portal")
	svc := NewService(testAdmin, codec, nil, time.Hour, nil)

	old := NewCodec("secret", "result-portal")
	old.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	expired, err := old.Issue(Claims{Subject: "admin", IsAdmin: true}, time.Hour)
	require.NoError(t, err)

	pending, err := codec.Issue(Claims{Subject: "admin", PendingOTP: true}, time.Hour)
	require.NoError(t, err)

	_, err = svc.Authorize("")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Authorize("garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Authorize(expired)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Authorize(pending)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRequireAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	codec := NewCodec("secret", "result-portal")
	svc := NewService(testAdmin, codec, nil, time.Hour, nil)

	r := gin.New()
	r.POST("/admin/save", RequireAdmin(svc), func(c *gin.Context) {
		id := c.MustGet(IdentityKey).(AdminIdentity)
		c.JSON(http.StatusOK, gin.H{"user": id.Username})
	})

	res, err := svc.Login(context.Background(), "admin", "12345")
	require.NoError(t, err)
	pending, err := codec.Issue(Claims{Subject: "admin", PendingOTP: true}, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"missing", "/admin/save", "", http.StatusUnauthorized},
		{"query token", "/admin/save?token=" + res.Token, "", http.StatusOK},
		{"bearer token", "/admin/save", "Bearer " + res.Token, http.StatusOK},
		{"pending token", "/admin/save?token=" + pending, "", http.StatusForbidden},
		{"bad token", "/admin/save?token=abc", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
