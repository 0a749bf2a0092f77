package registry

import (
	"encoding/json"
	"slices"

	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// returns the index entry for a single-platform image manifest
//
// the entry MediaType is always [ocispec.MediaTypeImageManifest] (regardless of what the registry claimed for the manifest), since every entry we produce ends up in an [ocispec.MediaTypeImageIndex]
func IndexEntry(m Manifest, platform ocispec.Platform) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageManifest,
		Digest:    m.Digest,
		Size:      int64(len(m.Data)),
		Platform:  &platform,
	}
}

// returns a fresh [ocispec.Index] (schemaVersion 2, [ocispec.MediaTypeImageIndex]) with exactly the given entries, in exactly the given order (no sorting, no de-duplication)
func AssembleIndex(entries []ocispec.Descriptor) ocispec.Index {
	return ocispec.Index{
		Versioned: specs.Versioned{
			SchemaVersion: 2,
		},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: slices.Clone(entries), // the index must not change if the caller reuses their slice
	}
}

// the exact bytes we push for an index (and thus the bytes its digest is calculated from)
func MarshalIndex(index ocispec.Index) ([]byte, error) {
	return json.Marshal(index)
}
