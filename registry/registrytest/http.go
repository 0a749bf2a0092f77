package registrytest

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cuelabs.dev/go/oci/ociregistry"

	"github.com/docker-library/registry-publish/registry"
)

// serves the registry over the (subset of the) distribution HTTP API that registry-publish uses, so tests can run the real ociclient stack against it via [net/http/httptest]
//
// manifests stored without a media type are served without any Content-Type header, and tampered blobs are served as-is (with the digest they were requested by)
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path, ok := strings.CutPrefix(req.URL.Path, "/v2/")
	if !ok {
		http.NotFound(w, req)
		return
	}
	if path == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var kind string
	repo, ref, ok := cutLast(path, "/manifests/")
	if ok {
		kind = "manifest"
	} else if repo, ref, ok = cutLast(path, "/blobs/"); ok {
		kind = "blob"
	} else {
		http.NotFound(w, req)
		return
	}

	ctx := req.Context()
	switch {
	case kind == "manifest" && (req.Method == http.MethodGet || req.Method == http.MethodHead):
		var (
			br  ociregistry.BlobReader
			err error
		)
		if ociregistry.Digest(ref).Validate() == nil {
			br, err = r.GetManifest(ctx, repo, ociregistry.Digest(ref))
		} else {
			br, err = r.GetTag(ctx, repo, ref)
		}
		serveBlobReader(w, req, br, err)

	case kind == "blob" && (req.Method == http.MethodGet || req.Method == http.MethodHead):
		br, err := r.GetBlob(ctx, repo, ociregistry.Digest(ref))
		serveBlobReader(w, req, br, err)

	case kind == "manifest" && req.Method == http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			serveError(w, err)
			return
		}
		tag := ref
		if ociregistry.Digest(ref).Validate() == nil {
			tag = ""
		}
		desc, err := r.PushManifest(ctx, repo, tag, body, req.Header.Get("Content-Type"))
		if err != nil {
			serveError(w, err)
			return
		}
		w.Header().Set("Docker-Content-Digest", desc.Digest.String())
		w.Header().Set("Location", "/v2/"+repo+"/manifests/"+desc.Digest.String())
		w.WriteHeader(http.StatusCreated)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// like [strings.Cut], but splitting around the *last* sep (repository names can contain anything)
func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func serveError(w http.ResponseWriter, err error) {
	var regErr *registry.RegistryError
	if errors.As(err, &regErr) {
		w.Header()["Content-Type"] = nil // the body is whatever bytes the test chose, do not let net/http sniff a type for it
		w.WriteHeader(regErr.StatusCode)
		io.WriteString(w, regErr.Message)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func serveBlobReader(w http.ResponseWriter, req *http.Request, br ociregistry.BlobReader, err error) {
	if err != nil {
		serveError(w, err)
		return
	}
	defer br.Close()

	data, err := io.ReadAll(br)
	if err != nil {
		serveError(w, err)
		return
	}
	desc := br.Descriptor()

	if desc.MediaType != "" {
		w.Header().Set("Content-Type", desc.MediaType)
	} else {
		w.Header()["Content-Type"] = nil
	}
	w.Header().Set("Docker-Content-Digest", desc.Digest.String())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if req.Method != http.MethodHead {
		w.Write(data)
	}
}
