package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

const defaultBaseURL = "https://verify.twilio.com"

// VerifyClient sends and checks one-time codes through Twilio Verify.
type VerifyClient struct {
	ServiceSID string
	Channel    string

	api *verify.ApiService
}

// New creates a client. The timeout bounds each call so a slow provider
// cannot hold up the login path. A non-default baseURL redirects every
// request to that host.
func New(baseURL, accountSID, authToken, serviceSID string, timeout time.Duration) *VerifyClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if u, err := url.Parse(baseURL); err == nil && baseURL != "" && baseURL != defaultBaseURL {
		hc.Transport = rewriteHost{target: u, next: http.DefaultTransport}
	}
	base := &client.Client{
		Credentials: client.NewCredentials(accountSID, authToken),
		HTTPClient:  hc,
	}
	base.SetAccountSid(accountSID)
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Client: base})
	return &VerifyClient{
		ServiceSID: serviceSID,
		Channel:    "sms",
		api:        rest.VerifyV2,
	}
}

// SendCode starts a verification to destination.
func (c *VerifyClient) SendCode(ctx context.Context, destination string) error {
	if destination == "" {
		return fmt.Errorf("destination required")
	}
	params := &verify.CreateVerificationParams{}
	params.SetTo(destination)
	params.SetChannel(c.Channel)
	_, err := call(ctx, func() (*verify.VerifyV2Verification, error) {
		return c.api.CreateVerification(c.ServiceSID, params)
	})
	if err != nil {
		return fmt.Errorf("send verification: %w", err)
	}
	return nil
}

// CheckCode reports whether code is approved for destination. A rejected
// or already used code is not an error.
func (c *VerifyClient) CheckCode(ctx context.Context, destination, code string) (bool, error) {
	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(destination)
	params.SetCode(code)
	v, err := call(ctx, func() (*verify.VerifyV2VerificationCheck, error) {
		return c.api.CreateVerificationCheck(c.ServiceSID, params)
	})
	if err != nil {
		// Verify answers 404 once a verification is approved, expired or
		// has used up its attempts.
		var twErr *client.TwilioRestError
		if errors.As(err, &twErr) && twErr.Status == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("check verification: %w", err)
	}
	return v.Status != nil && *v.Status == "approved", nil
}

// call runs a blocking SDK request and gives up when ctx ends first. The
// request itself is still bounded by the HTTP client timeout.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// rewriteHost sends SDK requests to a different scheme and host, keeping
// the path and query.
type rewriteHost struct {
	target *url.URL
	next   http.RoundTripper
}

func (t rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.Host = t.target.Host
	return t.next.RoundTrip(out)
}
