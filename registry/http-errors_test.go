package registry_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docker-library/registry-publish/registry"
)

func TestStatusErrors(t *testing.T) {
	t.Parallel()

	for _, x := range []struct {
		name       string
		status     int
		body       []byte
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "text body",
			status:     http.StatusNotFound,
			body:       []byte(`{"errors":[{"code":"MANIFEST_UNKNOWN","message":"manifest unknown"}]}`),
			wantStatus: http.StatusNotFound,
			wantMsg:    `{"errors":[{"code":"MANIFEST_UNKNOWN","message":"manifest unknown"}]}`,
		},
		{
			name:       "binary body",
			status:     http.StatusInternalServerError,
			body:       []byte{0xff, 0xfe, 0x00, 0x81},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "no error body (HTTP 500)",
		},
		{
			name:       "empty body",
			status:     http.StatusForbidden,
			wantStatus: http.StatusForbidden,
			wantMsg:    "no error body (HTTP 403)",
		},
	} {
		t.Run(x.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(x.status)
				w.Write(x.body)
			}))
			defer srv.Close()

			client := &http.Client{Transport: registry.StatusTransport(nil)}
			_, err := client.Get(srv.URL + "/v2/repo/svc/manifests/v1")

			var regErr *registry.RegistryError
			if !errors.As(err, &regErr) {
				t.Fatalf("expected *registry.RegistryError, got %T: %v", err, err)
			}
			if regErr.StatusCode != x.wantStatus {
				t.Errorf("expected status %d, got %d", x.wantStatus, regErr.StatusCode)
			}
			if regErr.Error() != x.wantMsg {
				t.Errorf("expected message %q, got %q", x.wantMsg, regErr.Error())
			}
		})
	}
}

func TestStatusSuccessPassesThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "registry-publish-test" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		io.WriteString(w, "hello")
	}))
	defer srv.Close()

	client := &http.Client{Transport: registry.StatusTransport(registry.UserAgentTransport(nil, "registry-publish-test"))}
	res, err := client.Get(srv.URL)
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if string(b) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", b)
	}
}

func TestStatusTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing is listening anymore

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = (&http.Client{Transport: registry.StatusTransport(nil)}).Do(req)

	var transportErr *registry.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *registry.TransportError, got %T: %v", err, err)
	}
	if !strings.HasPrefix(transportErr.Error(), "transport error: ") {
		t.Errorf("unexpected message: %q", transportErr.Error())
	}
}
