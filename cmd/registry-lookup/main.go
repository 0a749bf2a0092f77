package main

// a simple utility for debugging what registry-publish will see for a given source (the media type the registry declares, the digest we compute, and the platform we would put in an index)

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/docker-library/registry-publish/publish"
	"github.com/docker-library/registry-publish/registry"

	"cuelabs.dev/go/oci/ociregistry"
	"github.com/charmbracelet/log"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/cobra"
)

type lookupResult struct {
	Ref       string             `json:"ref"`
	MediaType string             `json:"mediaType"`
	Digest    ociregistry.Digest `json:"digest"`
	Size      int64              `json:"size"`

	// image manifests only
	Config   *ocispec.Descriptor `json:"config,omitempty"`
	Platform *ocispec.Platform   `json:"platform,omitempty"`
	Arch     string              `json:"bashbrewArch,omitempty"`

	// indexes only
	Manifests []ocispec.Descriptor `json:"manifests,omitempty"`
}

func lookup(ctx context.Context, clients publish.ClientSource, img string) (lookupResult, error) {
	ref, err := registry.ParseRef(img)
	if err != nil {
		return lookupResult{}, err
	}
	client, err := clients.Client(ref.Host)
	if err != nil {
		return lookupResult{}, err
	}

	m, err := registry.FetchManifest(ctx, client, ref)
	if err != nil {
		return lookupResult{}, err
	}
	res := lookupResult{
		Ref:       ref.StringWithKnownDigest(m.Digest),
		MediaType: m.MediaType,
		Digest:    m.Digest,
		Size:      int64(len(m.Data)),
	}

	children, err := registry.ParseManifestChildren(m.Data)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.Ref, &registry.ParseError{What: "manifest", Err: err})
	}
	if children.Config == nil {
		res.Manifests = children.Manifests
		return res, nil
	}

	configDesc, err := registry.ParseManifestConfig(m.Data)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.Ref, err)
	}
	res.Config = &configDesc
	config, err := registry.FetchBlob(ctx, client, registry.Reference{Host: ref.Host, Repository: ref.Repository, Digest: configDesc.Digest})
	if err != nil {
		return res, err
	}
	platform, err := registry.ResolvePlatform(config)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.Ref, err)
	}
	res.Platform = &platform
	res.Arch = registry.BashbrewArch(platform)

	return res, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		parallel  bool
		auth      string
		userAgent string
	)

	cmd := &cobra.Command{
		Use:           "registry-lookup [--parallel] REF [REF ...]",
		Short:         "Print what a registry serves for each reference (media type, digest, platform)",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, err := registry.AuthTransport(cmd.Context(), registry.AuthMode(auth), registry.UserAgentTransport(nil, userAgent))
			if err != nil {
				return err
			}
			clients := registry.NewClients(registry.ClientOptions{Transport: transport})

			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				failed bool
			)
			do := func(img string) {
				res, err := lookup(cmd.Context(), clients, img)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					log.Error("lookup failed", "ref", img, "err", err)
					failed = true
					return
				}
				if err := encode(cmd.OutOrStdout(), res); err != nil {
					log.Error("failed to write result", "ref", img, "err", err)
					failed = true
				}
			}

			for _, img := range args {
				if parallel {
					wg.Add(1)
					go func() {
						defer wg.Done()
						// TODO keep results in argument order (currently whichever finishes first prints first)
						do(img)
					}()
				} else {
					do(img)
				}
			}
			wg.Wait()

			if failed {
				return fmt.Errorf("one or more lookups failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&parallel, "parallel", false, "look up every reference concurrently")
	cmd.Flags().StringVar(&auth, "auth", string(registry.AuthDocker), fmt.Sprintf("registry authentication %v", registry.AuthModes))
	cmd.Flags().StringVar(&userAgent, "user-agent", "https://github.com/docker-library/registry-publish", "User-Agent for every registry request")

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		stop()
		os.Exit(1)
	}
}

func encode(w io.Writer, res lookupResult) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "\t")
	return e.Encode(res)
}
