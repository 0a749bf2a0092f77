package publish

import (
	"errors"
	"fmt"

	"github.com/docker-library/registry-publish/registry"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// one source of an item as it was actually resolved
type Entry struct {
	Source registry.Reference

	// for an index item, exactly the entry in the published index; for a retag, the descriptor of the source manifest
	Descriptor ocispec.Descriptor

	// bashbrew architecture name of Descriptor.Platform (empty for retags and unknown platforms)
	Arch string
}

// the result of one (region, item) unit
type Outcome struct {
	Region string
	Host   string

	// position of Item within [Job.Items]
	Index int
	Item  Item
	Kind  Kind

	// every target successfully pushed, with Digest set to the digest of what was pushed (may be non-empty even if Err is set, since there is no rollback)
	Pushed []registry.Reference

	// one per source, in source order (only populated once every source succeeded)
	Entries []Entry

	Err error
}

func (o Outcome) Failed() bool {
	return o.Err != nil
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: item %d (%s)", o.Region, o.Index, o.Item)
}

// joins the errors of every failed outcome (each annotated with its region and item), or returns nil if every unit succeeded
func Failures(outcomes []Outcome) error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o, o.Err))
		}
	}
	return errors.Join(errs...)
}
