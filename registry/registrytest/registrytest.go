// Package registrytest provides an in-memory [ociregistry.Interface] for tests that need to observe (and tamper with) exactly what crosses the wire.
//
// Unlike ocimem, it does not validate manifests on push (real registries differ wildly there) and it lets tests serve content that does not match its digest.
package registrytest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"cuelabs.dev/go/oci/ociregistry"
	"cuelabs.dev/go/oci/ociregistry/ocimem"
	godigest "github.com/opencontainers/go-digest"

	"github.com/docker-library/registry-publish/registry"
)

type Request struct {
	Method string // "GET" or "PUT"
	Kind   string // "manifest" or "blob"
	Repo   string
	Ref    string // tag or digest
}

func (r Request) String() string {
	return r.Method + " " + r.Repo + "/" + r.Kind + "s/" + r.Ref
}

type stored struct {
	mediaType string
	data      []byte
}

type Registry struct {
	*ociregistry.Funcs

	// if set, called before every request is served; a non-nil error fails that request
	OnRequest func(Request) error

	mu        sync.Mutex
	manifests map[string]stored             // "repo@digest" => manifest
	tags      map[string]ociregistry.Digest // "repo:tag" => digest
	blobs     map[string][]byte             // "repo@digest" => blob (possibly *not* matching digest, see TamperBlob)
	requests  []Request
}

func New() *Registry {
	return &Registry{
		manifests: map[string]stored{},
		tags:      map[string]ociregistry.Digest{},
		blobs:     map[string][]byte{},
	}
}

func digestKey(repo string, digest ociregistry.Digest) string {
	return repo + "@" + digest.String()
}

func tagKey(repo, tag string) string {
	return repo + ":" + tag
}

func notFound(what string) error {
	return &registry.RegistryError{StatusCode: http.StatusNotFound, Message: what + " unknown"}
}

// stores a blob and returns its digest
func (r *Registry) AddBlob(repo string, data []byte) ociregistry.Digest {
	digest := godigest.FromBytes(data)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[digestKey(repo, digest)] = append([]byte(nil), data...)
	return digest
}

// replaces the content served for an existing blob digest without changing the digest
func (r *Registry) TamperBlob(repo string, digest ociregistry.Digest, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[digestKey(repo, digest)] = append([]byte(nil), data...)
}

// stores a manifest (under its digest, and under tag if non-empty) and returns its digest
func (r *Registry) AddManifest(repo, tag string, data []byte, mediaType string) ociregistry.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addManifest(repo, tag, data, mediaType)
}

func (r *Registry) addManifest(repo, tag string, data []byte, mediaType string) ociregistry.Digest {
	digest := godigest.FromBytes(data)
	r.manifests[digestKey(repo, digest)] = stored{
		mediaType: mediaType,
		data:      append([]byte(nil), data...),
	}
	if tag != "" {
		r.tags[tagKey(repo, tag)] = digest
	}
	return digest
}

// returns the bytes and media type stored at repo:tag or repo@digest (whichever ref looks like)
func (r *Registry) Manifest(repo, ref string) ([]byte, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	digest := ociregistry.Digest(ref)
	if digest.Validate() != nil {
		var ok bool
		digest, ok = r.tags[tagKey(repo, ref)]
		if !ok {
			return nil, "", false
		}
	}
	m, ok := r.manifests[digestKey(repo, digest)]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), m.data...), m.mediaType, true
}

// every request served (or refused) so far, in order
func (r *Registry) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}

func (r *Registry) request(req Request) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	hook := r.OnRequest
	r.mu.Unlock()
	if hook != nil {
		return hook(req)
	}
	return nil
}

func (r *Registry) GetBlob(ctx context.Context, repo string, digest ociregistry.Digest) (ociregistry.BlobReader, error) {
	if err := r.request(Request{Method: "GET", Kind: "blob", Repo: repo, Ref: digest.String()}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	data, ok := r.blobs[digestKey(repo, digest)]
	r.mu.Unlock()
	if !ok {
		return nil, notFound("blob")
	}
	return ocimem.NewBytesReader(data, ociregistry.Descriptor{
		MediaType: "application/octet-stream",
		Digest:    digest,
		Size:      int64(len(data)),
	}), nil
}

func (r *Registry) GetManifest(ctx context.Context, repo string, digest ociregistry.Digest) (ociregistry.BlobReader, error) {
	if err := r.request(Request{Method: "GET", Kind: "manifest", Repo: repo, Ref: digest.String()}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	m, ok := r.manifests[digestKey(repo, digest)]
	r.mu.Unlock()
	if !ok {
		return nil, notFound("manifest")
	}
	return ocimem.NewBytesReader(m.data, ociregistry.Descriptor{
		MediaType: m.mediaType,
		Digest:    digest,
		Size:      int64(len(m.data)),
	}), nil
}

func (r *Registry) GetTag(ctx context.Context, repo string, tag string) (ociregistry.BlobReader, error) {
	if err := r.request(Request{Method: "GET", Kind: "manifest", Repo: repo, Ref: tag}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	digest, ok := r.tags[tagKey(repo, tag)]
	m := r.manifests[digestKey(repo, digest)]
	r.mu.Unlock()
	if !ok {
		return nil, notFound("manifest")
	}
	return ocimem.NewBytesReader(m.data, ociregistry.Descriptor{
		MediaType: m.mediaType,
		Digest:    digest,
		Size:      int64(len(m.data)),
	}), nil
}

func (r *Registry) PushManifest(ctx context.Context, repo string, tag string, contents []byte, mediaType string) (ociregistry.Descriptor, error) {
	ref := tag
	if ref == "" {
		ref = godigest.FromBytes(contents).String()
	}
	if err := r.request(Request{Method: "PUT", Kind: "manifest", Repo: repo, Ref: ref}); err != nil {
		return ociregistry.Descriptor{}, err
	}
	r.mu.Lock()
	digest := r.addManifest(repo, tag, contents, mediaType)
	r.mu.Unlock()
	return ociregistry.Descriptor{
		MediaType: mediaType,
		Digest:    digest,
		Size:      int64(len(contents)),
	}, nil
}

// maps registry hosts to registries (an implementation of the "Client(host)" lookup the publisher needs)
type Hosts map[string]ociregistry.Interface

func (h Hosts) Client(host string) (ociregistry.Interface, error) {
	client, ok := h[host]
	if !ok {
		return nil, fmt.Errorf("unknown registry host %q", host)
	}
	return client, nil
}
