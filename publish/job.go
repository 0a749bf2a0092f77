package publish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docker-library/registry-publish/registry"
)

// the job is invalid in a way no registry request could fix (missing repository, empty name or tag, an item without sources or targets)
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// a (repo, name, tag) triple as it appears in a job, before it is bound to a registry host
type Coordinate struct {
	// optional; falls back to [Job.Repo] (see [Coordinate.Resolve])
	Repo string `json:"repo,omitempty" yaml:"repo,omitempty"`
	Name string `json:"name" yaml:"name"`
	Tag  string `json:"tag" yaml:"tag"`
}

func (c Coordinate) String() string {
	s := c.Name + ":" + c.Tag
	if c.Repo != "" {
		s = c.Repo + "/" + s
	}
	return s
}

// binds the coordinate to a registry host, using its own repo if it has one and defaultRepo otherwise (and failing with a [*ConfigurationError] if neither is set)
func (c Coordinate) Resolve(host, defaultRepo string) (registry.Reference, error) {
	repo := c.Repo
	if repo == "" {
		repo = defaultRepo
	}
	if repo == "" {
		return registry.Reference{}, configErrorf("%s: missing repo (and no job-level default repo)", c)
	}
	if c.Name == "" {
		return registry.Reference{}, configErrorf("%s: missing name", c)
	}
	if c.Tag == "" {
		return registry.Reference{}, configErrorf("%s: missing tag", c)
	}
	if host == "" {
		return registry.Reference{}, configErrorf("%s: missing registry host", c)
	}
	return registry.Reference{
		Host:       host,
		Repository: strings.Trim(repo, "/") + "/" + c.Name,
		Tag:        c.Tag,
	}, nil
}

type Kind string

const (
	// exactly one source, whose manifest is pushed verbatim under every target tag
	KindRetag Kind = "retag"
	// two or more sources, assembled into a fresh index pushed under every target tag
	KindIndex Kind = "index"
)

type Item struct {
	Sources []Coordinate `json:"sources" yaml:"sources"`
	Targets []Coordinate `json:"targets" yaml:"targets"`
}

// the empty string for an item with no sources (see [Item.Validate])
func (item Item) Kind() Kind {
	switch {
	case len(item.Sources) == 1:
		return KindRetag
	case len(item.Sources) > 1:
		return KindIndex
	default:
		return ""
	}
}

// checks the shape of the item (without resolving any coordinates)
func (item Item) Validate() error {
	var errs []error
	if len(item.Sources) == 0 {
		errs = append(errs, configErrorf("item has zero sources (need at least one)"))
	}
	if len(item.Targets) == 0 {
		errs = append(errs, configErrorf("item has zero targets (need at least one)"))
	}
	return errors.Join(errs...)
}

func (item Item) String() string {
	sources := make([]string, len(item.Sources))
	for i, c := range item.Sources {
		sources[i] = c.String()
	}
	targets := make([]string, len(item.Targets))
	for i, c := range item.Targets {
		targets[i] = c.String()
	}
	return "[" + strings.Join(sources, ", ") + "] -> [" + strings.Join(targets, ", ") + "]"
}

type Job struct {
	// the default repo for every coordinate which does not specify its own
	Repo  string `json:"repo,omitempty" yaml:"repo,omitempty"`
	Items []Item `json:"items" yaml:"items"`
}

// resolves every target of the item (all at once, since a bad target means there is nowhere to publish)
func (job Job) resolveTargets(item Item, host string) ([]registry.Reference, error) {
	targets := make([]registry.Reference, len(item.Targets))
	var errs []error
	for i, c := range item.Targets {
		ref, err := c.Resolve(host, job.Repo)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		targets[i] = ref
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return targets, nil
}
