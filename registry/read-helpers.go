package registry

import (
	"io"

	"cuelabs.dev/go/oci/ociregistry"
)

// reads everything from the given [ociregistry.BlobReader], verifying that the content matches the *expected* digest (which is the digest whoever referenced this content declared, not whatever [ociregistry.BlobReader.Descriptor] claims)
//
// returns a [*DigestMismatchError] if the content does not hash to the expected digest, including when a lower layer (ociclient verifies too) already failed the read at the very end of a fully delivered body
func readVerified(r ociregistry.BlobReader, expected ociregistry.Digest) ([]byte, error) {
	// prevent go-digest panics later
	if err := expected.Validate(); err != nil {
		return nil, &ParseError{What: "digest", Err: err}
	}

	// copy all read data into the digest verifier so we can validate afterwards
	verifier := expected.Verifier()
	data, err := io.ReadAll(io.TeeReader(r, verifier))
	if err != nil {
		// the whole declared body arrived and *then* the read failed, so the only thing left to fail is verification
		if size := r.Descriptor().Size; size > 0 && int64(len(data)) == size {
			if actual := expected.Algorithm().FromBytes(data); actual != expected {
				return nil, &DigestMismatchError{Expected: expected, Actual: actual}
			}
		}
		return nil, err
	}

	if !verifier.Verified() {
		return nil, &DigestMismatchError{
			Expected: expected,
			Actual:   expected.Algorithm().FromBytes(data),
		}
	}

	return data, nil
}
