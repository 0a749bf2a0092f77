package registry

import (
	"context"
	"fmt"

	"cuelabs.dev/go/oci/ociregistry"
)

// this pushes the given manifest (index or image) bytes verbatim to the provided name (tag, or digest if the reference has no tag) with the given mediaType (Content-Type)
//
// the returned descriptor is calculated from the bytes we sent; if the registry reports a different digest, that's an error
func PushManifest(ctx context.Context, client ociregistry.Interface, ref Reference, manifest []byte, mediaType string) (ociregistry.Descriptor, error) {
	desc := ociregistry.Descriptor{
		MediaType: mediaType,
		Digest:    Digest(manifest),
		Size:      int64(len(manifest)),
	}
	if ref.Digest != "" && ref.Digest != desc.Digest {
		return desc, fmt.Errorf("%s: %w", ref, &DigestMismatchError{Expected: ref.Digest, Actual: desc.Digest})
	}
	if mediaType == "" {
		return desc, fmt.Errorf("%s: %w", ref, ErrMissingMediaType)
	}

	// an empty tag means ociclient pushes by digest
	rDesc, err := client.PushManifest(ctx, ref.Repository, ref.Tag, manifest, mediaType)
	if err != nil {
		return desc, fmt.Errorf("%s: PushManifest failed: %w", ref, classifyError(err))
	}
	if rDesc.Digest != "" && rDesc.Digest != desc.Digest {
		return desc, fmt.Errorf("%s: pushed digest from registry (%s) does not match expected digest (%s)", ref, rDesc.Digest, desc.Digest)
	}
	return desc, nil
}

// this copies a manifest's bytes, unchanged, into the repository of dstRef, addressed by the manifest's own digest (never by tag), so that an index pushed to that repository can reference it
//
// pushing the same bytes to the same digest again is a no-op as far as the registry is concerned, so this is safe to repeat
func ReplicateManifest(ctx context.Context, client ociregistry.Interface, dstRef Reference, m Manifest, mediaType string) (ociregistry.Descriptor, error) {
	dstRef.Tag = ""
	dstRef.Digest = m.Digest
	return PushManifest(ctx, client, dstRef, m.Data, mediaType)
}
