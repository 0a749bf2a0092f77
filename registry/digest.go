package registry

import (
	"cuelabs.dev/go/oci/ociregistry"
	godigest "github.com/opencontainers/go-digest"
)

// returns the canonical content digest ("sha256:<hex>") of exactly the given bytes
func Digest(data []byte) ociregistry.Digest {
	return godigest.FromBytes(data)
}
