package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/docker-library/registry-publish/publish"
	"github.com/docker-library/registry-publish/registry"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const defaultUserAgent = "https://github.com/docker-library/registry-publish"

// returned (after the per-unit output and summary are already written) when at least one unit failed, so main knows to exit non-zero without printing anything else
var errUnitsFailed = errors.New("one or more units failed")

type options struct {
	regions      []string
	jobPath      string
	hostTemplate string
	auth         string
	userAgent    string
	rateLimit    float64
	rateBurst    int
	logLevel     string
	dryRun       bool
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "registry-publish --regions REGION [--regions REGION ...] [--job FILE]",
		Short: "Publish multi-platform indexes (or plain retags) to regional registries",
		Long: `registry-publish reads a job (JSON on stdin by default, or --job FILE; YAML for *.yaml/*.yml) and,
for every region, publishes each item: an item with one source is retagged verbatim, an item with
two or more sources becomes a fresh OCI image index of those sources.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.regions, "regions", "r", nil, "registry region to publish to (repeatable)")
	flags.StringVarP(&opts.jobPath, "job", "f", "-", `job file ("-" for stdin)`)
	flags.StringVar(&opts.hostTemplate, "host-template", envOr("REGISTRY_PUBLISH_HOST_TEMPLATE", publish.DefaultHostTemplate), `registry host for each region ("REGION" is replaced) [$REGISTRY_PUBLISH_HOST_TEMPLATE]`)
	flags.StringVar(&opts.auth, "auth", string(registry.AuthDocker), fmt.Sprintf("registry authentication %v", registry.AuthModes))
	flags.StringVar(&opts.userAgent, "user-agent", defaultUserAgent, "User-Agent for every registry request")
	flags.Float64Var(&opts.rateLimit, "rate-limit", 0, "maximum requests per second per registry host (0 for unlimited)")
	flags.IntVar(&opts.rateBurst, "rate-burst", 1, "requests allowed to exceed --rate-limit in a burst")
	flags.StringVar(&opts.logLevel, "log-level", envOr("REGISTRY_PUBLISH_LOG_LEVEL", "info"), "debug, info, warn, or error [$REGISTRY_PUBLISH_LOG_LEVEL]")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "resolve and print every unit without talking to any registry")
	_ = cmd.MarkFlagRequired("regions")

	return cmd
}

func openJob(path string, stdin io.Reader) (io.ReadCloser, jobFormat, error) {
	if path == "-" || path == "" {
		return io.NopCloser(stdin), formatJSON, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, formatForPath(path), nil
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "registry-publish",
	})
	level, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logger.SetLevel(level)

	r, format, err := openJob(opts.jobPath, stdin)
	if err != nil {
		return fmt.Errorf("failed to open job: %w", err)
	}
	job, err := readJob(r, format)
	r.Close()
	if err != nil {
		return err
	}
	logger.Debug("read job", "items", len(job.Items), "regions", opts.regions)

	publisher := &publish.Publisher{
		HostTemplate: opts.hostTemplate,
		Logger:       logger,
	}

	if opts.dryRun {
		var failed int
		plans := publisher.Plan(job, opts.regions)
		for _, plan := range plans {
			renderPlan(stdout, plan)
			if plan.Err != nil {
				failed++
			}
		}
		renderSummary(stdout, len(plans), failed)
		if failed > 0 {
			return errUnitsFailed
		}
		return nil
	}

	transport, err := registry.AuthTransport(ctx, registry.AuthMode(opts.auth), registry.UserAgentTransport(nil, opts.userAgent))
	if err != nil {
		return err
	}
	publisher.Clients = registry.NewClients(registry.ClientOptions{
		Transport: transport,
		RateLimit: opts.rateLimit,
		RateBurst: opts.rateBurst,
	})

	var outcomes []publish.Outcome
	for outcome := range publisher.Publish(ctx, job, opts.regions) {
		renderOutcome(stdout, outcome)
		outcomes = append(outcomes, outcome)
	}

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	renderSummary(stdout, len(outcomes), failed)
	if err := publish.Failures(outcomes); err != nil {
		// every error was already rendered with its unit above
		logger.Debug("publish failed", "err", err)
		return errUnitsFailed
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errUnitsFailed) {
			log.Error(err)
		}
		stop()
		os.Exit(1)
	}
}
