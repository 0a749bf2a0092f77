package registry

import (
	"bytes"
	"context"
	"io"
	"sync"

	"cuelabs.dev/go/oci/ociregistry"
	"cuelabs.dev/go/oci/ociregistry/ocimem"
)

// https://github.com/opencontainers/distribution-spec/pull/293#issuecomment-1452780554
const manifestSizeLimit = 4 * 1024 * 1024

// this implements a transparent in-memory cache on top of digest-addressed objects less than 4MiB in size from the given registry -- it (currently) assumes a short lifecycle, not a long-running program, so use with care!
//
// tags are mutable (and we push tags ourselves), so tag lookups always go upstream; only GetBlob and GetManifest (both by digest) are cached, and everything else passes straight through
//
// cached bytes are served exactly as they were received, so callers still have to verify them (see [FetchBlob])
func RegistryCache(r ociregistry.Interface) ociregistry.Interface {
	return &registryCache{
		Interface: r,
		has:       map[string]bool{},
		data:      map[ociregistry.Digest]ociregistry.Descriptor{},
	}
}

type registryCache struct {
	// the upstream registry; embedded so every method we don't override passes through
	ociregistry.Interface

	// a map of "repo@digest" to *sync.Mutex to ensure we don't double up on upstream lookups
	refMutexes sync.Map

	mu   sync.Mutex
	has  map[string]bool                               // "repo/name@digest" => true (whether a given repo has the given digest)
	data map[ociregistry.Digest]ociregistry.Descriptor // digest => mediaType+size+data
}

func cacheKeyDigest(repo string, digest ociregistry.Digest) string {
	return repo + "@" + digest.String()
}

func (rc *registryCache) refMutex(ref string) *sync.Mutex {
	refMu, _ := rc.refMutexes.LoadOrStore(ref, &sync.Mutex{})
	return refMu.(*sync.Mutex)
}

// a helper that implements GetBlob and GetManifest generically (since they're the same function signature and it doesn't really help *us* to treat those object types differently here)
func (rc *registryCache) getBlob(ctx context.Context, repo string, digest ociregistry.Digest, f func(ctx context.Context, repo string, digest ociregistry.Digest) (ociregistry.BlobReader, error)) (ociregistry.BlobReader, error) {
	digestKey := cacheKeyDigest(repo, digest)

	refMu := rc.refMutex(digestKey)
	refMu.Lock()
	defer refMu.Unlock()

	rc.mu.Lock()
	desc, ok := rc.data[digest]
	haveValidCache := ok && desc.Data != nil && rc.has[digestKey]
	rc.mu.Unlock()

	if haveValidCache {
		return ocimem.NewBytesReader(desc.Data, desc), nil
	}

	r, err := f(ctx, repo, digest)
	if err != nil {
		return nil, err
	}
	// defer r.Close() happens later when we know we aren't making Close the caller's responsibility

	desc = r.Descriptor()
	if desc.Digest != digest || desc.Size > manifestSizeLimit {
		// either too big to keep around, or a naughty registry answering with something else entirely (which we refuse to remember under either digest)
		return r, nil
	}
	defer r.Close()

	desc.Data, err = io.ReadAll(r)
	if err != nil {
		// not cached, but the caller still gets every byte we saw followed by the same error (so it can tell a failed verification from a broken connection; see [readVerified])
		return &failedBlobReader{
			Reader: io.MultiReader(bytes.NewReader(desc.Data), errReader{err}),
			desc:   r.Descriptor(),
		}, nil
	}
	if err := r.Close(); err != nil {
		return nil, err
	}

	rc.mu.Lock()
	rc.has[digestKey] = true
	rc.data[digest] = desc
	rc.mu.Unlock()

	return ocimem.NewBytesReader(desc.Data, desc), nil
}

func (rc *registryCache) GetBlob(ctx context.Context, repo string, digest ociregistry.Digest) (ociregistry.BlobReader, error) {
	return rc.getBlob(ctx, repo, digest, rc.Interface.GetBlob)
}

func (rc *registryCache) GetManifest(ctx context.Context, repo string, digest ociregistry.Digest) (ociregistry.BlobReader, error) {
	return rc.getBlob(ctx, repo, digest, rc.Interface.GetManifest)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

// replays a read that failed part way (or at the very end) through an upstream [ociregistry.BlobReader]
type failedBlobReader struct {
	io.Reader
	desc ociregistry.Descriptor
}

func (r *failedBlobReader) Close() error {
	return nil
}

func (r *failedBlobReader) Descriptor() ociregistry.Descriptor {
	return r.desc
}
