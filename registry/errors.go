package registry

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"unicode/utf8"

	"cuelabs.dev/go/oci/ociregistry"
)

// a non-success HTTP status from a registry
type RegistryError struct {
	StatusCode int
	// the response body verbatim, if it was valid (non-empty) UTF-8 text
	Message string
}

func newRegistryError(statusCode int, body []byte) *RegistryError {
	regErr := &RegistryError{StatusCode: statusCode}
	if len(body) > 0 && utf8.Valid(body) {
		regErr.Message = string(body)
	}
	return regErr
}

func (e *RegistryError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("no error body (HTTP %d)", e.StatusCode)
	}
	return e.Message
}

// a failure to talk to a registry at all (DNS, TLS, connection reset, timeout, ...)
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// malformed manifest or image config JSON (or a document missing required fields)
type ParseError struct {
	What string // "manifest", "image config", ...
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed parsing %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// content we fetched by digest does not hash to that digest
type DigestMismatchError struct {
	Expected ociregistry.Digest
	Actual   ociregistry.Digest
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, but content hashes to %s", e.Expected, e.Actual)
}

// a registry answered successfully, but with a manifest we cannot republish faithfully
var ErrMissingMediaType = errors.New("registry did not report a Content-Type for manifest")

// normalizes an error coming back out of an [ociregistry.Interface] into our taxonomy ([*RegistryError], [*TransportError]) where possible
//
// our own transport (see [statusRoundTripper]) already produces those types, but other implementations (or ociclient itself) might not
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var (
		regErr       *RegistryError
		transportErr *TransportError
	)
	if errors.As(err, &regErr) || errors.As(err, &transportErr) {
		return err
	}

	var httpErr ociregistry.HTTPError
	if errors.As(err, &httpErr) {
		if withBody, ok := httpErr.(interface{ ResponseBody() []byte }); ok {
			return newRegistryError(httpErr.StatusCode(), withBody.ResponseBody())
		}
		return &RegistryError{StatusCode: httpErr.StatusCode(), Message: httpErr.Error()}
	}

	var (
		urlErr *url.Error
		netErr net.Error
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &TransportError{Err: err}
	}

	return err
}
