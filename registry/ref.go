package registry

import (
	"fmt"

	// thanks, go-digest...
	_ "crypto/sha256"
	_ "crypto/sha512"

	"cuelabs.dev/go/oci/ociregistry"
	"cuelabs.dev/go/oci/ociregistry/ociref"
)

// a fully resolved registry coordinate; Repository is the full path below "/v2/" (so "repo/name" for Artifact Registry style hosts)
type Reference ociref.Reference

func (ref Reference) String() string {
	return ociref.Reference(ref).String()
}

// like [Reference.String], but for refs which do not (yet) have a digest and we want to show one we already know about
func (ref Reference) StringWithKnownDigest(digest ociregistry.Digest) string {
	if ref.Digest == "" {
		ref.Digest = digest
	}
	return ref.String()
}

// whether both references point at the same repository on the same registry (tag and digest are ignored)
func (ref Reference) SameRepository(other Reference) bool {
	return ref.Host == other.Host && ref.Repository == other.Repository
}

// parse a ref like `us-docker.pkg.dev/project/repo/name:tag` into a [Reference] (a host is required, since there is no sane default registry for us)
//
// See also [ociref.ParseRelative]
func ParseRef(img string) (Reference, error) {
	ref, err := ociref.ParseRelative(img)
	if err != nil {
		return Reference{}, err
	}
	if ref.Host == "" {
		return Reference{}, fmt.Errorf("%s: missing registry host", img)
	}
	return Reference(ref), nil
}
