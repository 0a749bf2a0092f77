package registry

import (
	"context"
	"fmt"
	"io"

	"cuelabs.dev/go/oci/ociregistry"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// what ociclient reports for a response without a Content-Type header
const undeclaredMediaType = "application/octet-stream"

// a manifest exactly as the registry served it
type Manifest struct {
	// the MediaType the registry declared (Content-Type), *not* re-derived from the document; empty if it declared none
	MediaType string

	// always recomputed from Data, never taken from the registry
	Digest ociregistry.Digest

	Data []byte
}

func (m Manifest) Descriptor() ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: m.MediaType,
		Digest:    m.Digest,
		Size:      int64(len(m.Data)),
	}
}

// fetches the manifest at the given [Reference] (by digest if it has one, otherwise by tag, defaulting to "latest")
//
// if the reference has a digest, the returned bytes are guaranteed to match it
func FetchManifest(ctx context.Context, client ociregistry.Interface, ref Reference) (Manifest, error) {
	var (
		m   Manifest
		r   ociregistry.BlobReader
		err error
	)
	if ref.Digest != "" {
		r, err = client.GetManifest(ctx, ref.Repository, ref.Digest)
	} else {
		tag := ref.Tag
		if tag == "" {
			tag = "latest"
		}
		r, err = client.GetTag(ctx, ref.Repository, tag)
	}
	if err != nil {
		return m, fmt.Errorf("%s: failed GET: %w", ref, classifyError(err))
	}
	defer r.Close()

	if ref.Digest != "" {
		m.Data, err = readVerified(r, ref.Digest)
	} else {
		m.Data, err = io.ReadAll(r)
	}
	if err != nil {
		return m, fmt.Errorf("%s: failed reading manifest: %w", ref, classifyError(err))
	}

	m.MediaType = r.Descriptor().MediaType
	if m.MediaType == undeclaredMediaType {
		// ociclient fills this in when the response had no Content-Type at all; no manifest is ever really this type
		m.MediaType = ""
	}
	m.Digest = Digest(m.Data)

	return m, nil
}

// fetches the blob at the given [Reference] (which must have a digest) and verifies the content against that digest (returning [*DigestMismatchError] if it does not match)
func FetchBlob(ctx context.Context, client ociregistry.Interface, ref Reference) ([]byte, error) {
	if ref.Digest == "" {
		return nil, fmt.Errorf("%s: missing digest (cannot fetch blob without digest)", ref)
	}
	if ref.Tag != "" {
		return nil, fmt.Errorf("%s: blobs cannot have tags", ref)
	}

	r, err := client.GetBlob(ctx, ref.Repository, ref.Digest)
	if err != nil {
		return nil, fmt.Errorf("%s: failed GET: %w", ref, classifyError(err))
	}
	defer r.Close()

	data, err := readVerified(r, ref.Digest)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, classifyError(err))
	}
	return data, nil
}
