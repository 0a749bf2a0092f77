package publish

import (
	"errors"

	"github.com/docker-library/registry-publish/registry"
)

// what one (region, item) unit would do, with every coordinate resolved but nothing fetched
type Plan struct {
	Region string
	Host   string
	Index  int
	Item   Item
	Kind   Kind

	// same length and order as the item's coordinates; a coordinate that failed to resolve is left as the zero value (and reported in Err)
	Sources []registry.Reference
	Targets []registry.Reference

	// every configuration problem of the unit, joined
	Err error
}

// resolves the job for every region without making a single network request (in the same order [Publisher.Publish] starts units)
func (p *Publisher) Plan(job Job, regions []string) []Plan {
	plans := make([]Plan, 0, len(regions)*len(job.Items))
	for _, region := range regions {
		host := p.Host(region)
		for i, item := range job.Items {
			plan := Plan{
				Region:  region,
				Host:    host,
				Index:   i,
				Item:    item,
				Kind:    item.Kind(),
				Sources: make([]registry.Reference, len(item.Sources)),
				Targets: make([]registry.Reference, len(item.Targets)),
			}
			errs := []error{item.Validate()}
			for j, c := range item.Sources {
				var err error
				plan.Sources[j], err = c.Resolve(host, job.Repo)
				errs = append(errs, err)
			}
			for j, c := range item.Targets {
				var err error
				plan.Targets[j], err = c.Resolve(host, job.Repo)
				errs = append(errs, err)
			}
			plan.Err = errors.Join(errs...)
			plans = append(plans, plan)
		}
	}
	return plans
}
