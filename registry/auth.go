package registry

import (
	"context"
	"fmt"
	"net/http"

	"cuelabs.dev/go/oci/ociregistry/ociauth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type AuthMode string

const (
	// docker config.json (and any credential helpers it names), negotiating tokens per registry challenge
	AuthDocker AuthMode = "docker"
	// Google application default credentials, sent as a bearer token on every request
	AuthGoogle AuthMode = "google"
	AuthNone   AuthMode = "none"
)

var AuthModes = []AuthMode{AuthDocker, AuthGoogle, AuthNone}

// the scope requested for [AuthGoogle] tokens
const googleScope = "https://www.googleapis.com/auth/cloud-platform"

// wraps the given [net/http.RoundTripper] (or [net/http.DefaultTransport] if nil) with the requested authentication (ctx is only used to look up default credentials for [AuthGoogle])
func AuthTransport(ctx context.Context, mode AuthMode, roundTripper http.RoundTripper) (http.RoundTripper, error) {
	if roundTripper == nil {
		roundTripper = http.DefaultTransport
	}

	switch mode {
	case AuthDocker, "":
		config, err := ociauth.Load(nil)
		if err != nil {
			return nil, fmt.Errorf("cannot load auth configuration: %w", err)
		}
		return ociauth.NewStdTransport(ociauth.StdTransportParams{
			Config:    config,
			Transport: roundTripper,
		}), nil

	case AuthGoogle:
		tokenSource, err := google.DefaultTokenSource(ctx, googleScope)
		if err != nil {
			return nil, fmt.Errorf("cannot find default credentials: %w", err)
		}
		return &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, tokenSource),
			Base:   roundTripper,
		}, nil

	case AuthNone:
		return roundTripper, nil

	default:
		return nil, fmt.Errorf("unknown auth mode %q (expected one of %v)", mode, AuthModes)
	}
}
