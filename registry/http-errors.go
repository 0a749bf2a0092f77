package registry

import (
	"io"
	"net/http"
)

// how much of an error response body we are willing to hold on to
const errorBodyLimit = 64 * 1024

// wraps the given [net/http.RoundTripper] (or [net/http.DefaultTransport] if nil) in a [statusRoundTripper]
func StatusTransport(roundTripper http.RoundTripper) http.RoundTripper {
	if roundTripper == nil {
		roundTripper = http.DefaultTransport
	}
	return &statusRoundTripper{roundTripper: roundTripper}
}

// an implementation of [net/http.RoundTripper] that turns every error status (>= 400) into a [*RegistryError] carrying the response body verbatim, and every failure of the wrapped transport into a [*TransportError]
//
// it must sit above any authentication layer (so 401 challenges are already handled by the time we see a response) and below ociclient, whose own error values do not carry the raw body
//
// redirects (3xx) pass through untouched so [net/http.Client] can follow them (blob downloads commonly redirect to object storage)
type statusRoundTripper struct {
	roundTripper http.RoundTripper
}

func (d *statusRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := d.roundTripper.RoundTrip(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if res.StatusCode < http.StatusBadRequest {
		return res, nil
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return nil, newRegistryError(res.StatusCode, body)
}
