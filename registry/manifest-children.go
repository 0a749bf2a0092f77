package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type ManifestChildren struct {
	// *technically* this should be two separate structs chosen based on mediaType (https://github.com/opencontainers/distribution-spec/security/advisories/GHSA-mc8v-mgrf-8f4m), but we only ever care about the config reference of an image manifest and whether we were (wrongly) handed an index instead

	// intentional subset of https://github.com/opencontainers/image-spec/blob/v1.1.0/specs-go/v1/index.go#L21 to minimize parsing
	Manifests []ocispec.Descriptor `json:"manifests"`

	// intentional subset of https://github.com/opencontainers/image-spec/blob/v1.1.0/specs-go/v1/manifest.go#L20 to minimize parsing
	Config *ocispec.Descriptor  `json:"config"` // have to turn this into a pointer so we can recognize when it's not set easier / more correctly
	Layers []ocispec.Descriptor `json:"layers"`
}

// opportunistically parse a given manifest for any *potential* child objects; will return JSON parsing errors for non-JSON
func ParseManifestChildren(manifest []byte) (ManifestChildren, error) {
	var manifestChildren ManifestChildren
	err := json.Unmarshal(manifest, &manifestChildren)
	return manifestChildren, err
}

// returns the config descriptor of an image manifest (as a [*ParseError] if the document is not JSON, is an index, or has no usable config reference)
func ParseManifestConfig(manifest []byte) (ocispec.Descriptor, error) {
	children, err := ParseManifestChildren(manifest)
	if err != nil {
		return ocispec.Descriptor{}, &ParseError{What: "manifest", Err: err}
	}
	if children.Config == nil {
		if len(children.Manifests) > 0 {
			return ocispec.Descriptor{}, &ParseError{What: "manifest", Err: errors.New("expected an image manifest, got an index (nested indexes are not supported)")}
		}
		return ocispec.Descriptor{}, &ParseError{What: "manifest", Err: errors.New("missing 'config'")}
	}
	if err := children.Config.Digest.Validate(); err != nil {
		return ocispec.Descriptor{}, &ParseError{What: "manifest", Err: fmt.Errorf("invalid config digest %q: %w", children.Config.Digest, err)}
	}
	return *children.Config, nil
}
