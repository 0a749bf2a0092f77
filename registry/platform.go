package registry

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/docker-library/bashbrew/architecture"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// parses an image config blob ([ocispec.Image]) for the platform it was built for
//
// "architecture" and "os" are mandatory; there is no default substitution (a missing value is an error, not a wildcard)
func ResolvePlatform(config []byte) (ocispec.Platform, error) {
	// intentional subset of https://github.com/opencontainers/image-spec/blob/v1.1.0/specs-go/v1/config.go to minimize parsing (and to not choke on "created" formats)
	var image struct {
		Architecture string `json:"architecture"`
		OS           string `json:"os"`
		Variant      string `json:"variant,omitempty"`
	}
	if err := json.Unmarshal(config, &image); err != nil {
		return ocispec.Platform{}, &ParseError{What: "image config", Err: err}
	}
	if image.Architecture == "" {
		return ocispec.Platform{}, &ParseError{What: "image config", Err: errors.New("missing 'architecture'")}
	}
	if image.OS == "" {
		return ocispec.Platform{}, &ParseError{What: "image config", Err: errors.New("missing 'os'")}
	}
	return ocispec.Platform{
		Architecture: image.Architecture,
		OS:           image.OS,
		Variant:      image.Variant,
	}, nil
}

// returns the bashbrew architecture name ("amd64", "arm64v8", "windows-amd64", ...) matching the given platform, or the empty string if there isn't one
//
// this is only a label for humans; it never influences what gets published
func BashbrewArch(platform ocispec.Platform) string {
	imagePlatform := architecture.OCIPlatform(architecture.Normalize(platform))

	// sorted so the answer is stable if more than one name ever matches
	arches := make([]string, 0, len(architecture.SupportedArches))
	for bashbrewArch := range architecture.SupportedArches {
		arches = append(arches, bashbrewArch)
	}
	sort.Strings(arches)

	for _, bashbrewArch := range arches {
		if imagePlatform.Is(architecture.SupportedArches[bashbrewArch]) {
			return bashbrewArch
		}
	}
	return ""
}
