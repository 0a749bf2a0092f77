package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/docker-library/registry-publish/registry"

	"cuelabs.dev/go/oci/ociregistry"
	"github.com/charmbracelet/log"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"
)

// the registry host used for a region when [Publisher.HostTemplate] is empty ("REGION" is replaced by the region name)
const DefaultHostTemplate = "REGION-docker.pkg.dev"

// anything that can hand out a registry client per host ([*registry.Clients] in real life, a map of fakes in tests)
type ClientSource interface {
	Client(host string) (ociregistry.Interface, error)
}

type Publisher struct {
	Clients ClientSource

	// see [DefaultHostTemplate]
	HostTemplate string

	// nil means [log.Default]
	Logger *log.Logger
}

func (p *Publisher) Host(region string) string {
	tmpl := p.HostTemplate
	if tmpl == "" {
		tmpl = DefaultHostTemplate
	}
	return strings.ReplaceAll(tmpl, "REGION", region)
}

func (p *Publisher) logger() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.Default()
}

// runs every (region, item) unit of the job concurrently, delivering exactly one [Outcome] per unit as each completes
//
// the channel is closed once every unit (and every source task within it) has finished; failures never cancel sibling units, and only cancellation of ctx aborts in-flight requests
func (p *Publisher) Publish(ctx context.Context, job Job, regions []string) <-chan Outcome {
	outcomes := make(chan Outcome, len(regions)*len(job.Items))

	var wg sync.WaitGroup
	for _, region := range regions {
		host := p.Host(region)
		for i, item := range job.Items {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome := Outcome{
					Region: region,
					Host:   host,
					Index:  i,
					Item:   item,
					Kind:   item.Kind(),
				}
				outcome.Err = p.runUnit(ctx, job, &outcome)
				outcomes <- outcome
			}()
		}
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}

// converts a panic in the current goroutine into an error (so one bad unit is reported like any other failure instead of taking the whole process down)
func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

func (p *Publisher) runUnit(ctx context.Context, job Job, outcome *Outcome) (err error) {
	defer guard(&err)

	logger := p.logger().With("region", outcome.Region, "item", outcome.Index)

	if err := outcome.Item.Validate(); err != nil {
		return err
	}
	targets, err := job.resolveTargets(outcome.Item, outcome.Host)
	if err != nil {
		return err
	}

	client, err := p.Clients.Client(outcome.Host)
	if err != nil {
		return fmt.Errorf("%s: failed to create registry client: %w", outcome.Host, err)
	}

	switch outcome.Kind {
	case KindRetag:
		return p.retag(ctx, logger, client, job, outcome, targets)
	case KindIndex:
		return p.index(ctx, logger, client, job, outcome, targets)
	default:
		// Validate already rejected items without sources, so this is a coding error
		panic("unknown kind: " + string(outcome.Kind))
	}
}

// pushes the bytes at every target in turn (one failed target does not stop the others), recording each success in outcome.Pushed
func (p *Publisher) pushAll(ctx context.Context, logger *log.Logger, client ociregistry.Interface, outcome *Outcome, targets []registry.Reference, data []byte, mediaType string) error {
	var errs []error
	for _, target := range targets {
		logger.Debug("pushing manifest", "ref", target, "mediaType", mediaType, "size", len(data))
		desc, err := registry.PushManifest(ctx, client, target, data, mediaType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		target.Digest = desc.Digest
		outcome.Pushed = append(outcome.Pushed, target)
	}
	return errors.Join(errs...)
}

func (p *Publisher) retag(ctx context.Context, logger *log.Logger, client ociregistry.Interface, job Job, outcome *Outcome, targets []registry.Reference) error {
	src, err := outcome.Item.Sources[0].Resolve(outcome.Host, job.Repo)
	if err != nil {
		return err
	}

	logger.Debug("fetching manifest", "ref", src)
	m, err := registry.FetchManifest(ctx, client, src)
	if err != nil {
		return err
	}
	outcome.Entries = []Entry{{
		Source:     src,
		Descriptor: m.Descriptor(),
	}}

	// the content type is propagated as-is (never guessed), so a response without one fails every target via PushManifest
	return p.pushAll(ctx, logger, client, outcome, targets, m.Data, m.MediaType)
}

func (p *Publisher) index(ctx context.Context, logger *log.Logger, client ociregistry.Interface, job Job, outcome *Outcome, targets []registry.Reference) error {
	sources := outcome.Item.Sources
	entries := make([]Entry, len(sources))
	errs := make([]error, len(sources))

	// no errgroup.WithContext: a failing source does not cancel its siblings
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() (err error) {
			defer func() { errs[i] = err }()
			defer guard(&err) // runs first, so a panic lands in errs too
			entries[i], err = p.indexSource(ctx, logger, client, job, outcome.Host, src, targets)
			return err
		})
	}
	_ = g.Wait() // only the first error; we want all of them
	if err := errors.Join(errs...); err != nil {
		return err
	}
	outcome.Entries = entries

	descs := make([]ocispec.Descriptor, len(entries))
	for i, entry := range entries {
		descs[i] = entry.Descriptor
	}
	data, err := registry.MarshalIndex(registry.AssembleIndex(descs))
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	return p.pushAll(ctx, logger, client, outcome, targets, data, ocispec.MediaTypeImageIndex)
}

// the per-source pipeline of an index item: fetch, verify config, resolve platform, replicate, entry (strictly in that order)
func (p *Publisher) indexSource(ctx context.Context, logger *log.Logger, client ociregistry.Interface, job Job, host string, src Coordinate, targets []registry.Reference) (Entry, error) {
	ref, err := src.Resolve(host, job.Repo)
	if err != nil {
		return Entry{}, err
	}

	logger.Debug("fetching manifest", "ref", ref)
	m, err := registry.FetchManifest(ctx, client, ref)
	if err != nil {
		return Entry{}, err
	}

	configDesc, err := registry.ParseManifestConfig(m.Data)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", ref.StringWithKnownDigest(m.Digest), err)
	}
	configRef := registry.Reference{
		Host:       ref.Host,
		Repository: ref.Repository,
		Digest:     configDesc.Digest,
	}
	logger.Debug("fetching config blob", "ref", configRef)
	config, err := registry.FetchBlob(ctx, client, configRef)
	if err != nil {
		return Entry{}, err
	}
	platform, err := registry.ResolvePlatform(config)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", configRef, err)
	}

	// the index we are about to push may only reference digests which already exist in the repository it lives in
	replicated := map[string]bool{}
	for _, target := range targets {
		if target.SameRepository(ref) || replicated[target.Repository] {
			continue
		}
		logger.Debug("replicating manifest", "from", ref.StringWithKnownDigest(m.Digest), "to", target.Repository)
		if _, err := registry.ReplicateManifest(ctx, client, target, m, ocispec.MediaTypeImageManifest); err != nil {
			return Entry{}, err
		}
		replicated[target.Repository] = true
	}

	return Entry{
		Source:     ref,
		Descriptor: registry.IndexEntry(m, platform),
		Arch:       registry.BashbrewArch(platform),
	}, nil
}
