package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/docker-library/registry-publish/publish"

	"gopkg.in/yaml.v3"
)

type jobFormat string

const (
	formatJSON jobFormat = "json"
	formatYAML jobFormat = "yaml"
)

// YAML for "*.yaml" / "*.yml", JSON for everything else (including stdin)
func formatForPath(path string) jobFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// decodes exactly one job document; anything structurally wrong with the document (syntax, unknown fields, trailing documents, no "items") fails the whole run, but per-item problems (missing repo, zero sources, ...) are left for [publish.Publisher] so they only fail their own unit
func readJob(r io.Reader, format jobFormat) (publish.Job, error) {
	var job publish.Job

	switch format {
	case formatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&job); err != nil {
			if errors.Is(err, io.EOF) {
				return job, fmt.Errorf("empty job input")
			}
			return job, fmt.Errorf("failed to parse job JSON: %w", err)
		}
		if dec.More() {
			return job, fmt.Errorf("trailing data after job JSON (exactly one job document expected)")
		}

	case formatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&job); err != nil {
			if errors.Is(err, io.EOF) {
				return job, fmt.Errorf("empty job input")
			}
			return job, fmt.Errorf("failed to parse job YAML: %w", err)
		}
		var extra any
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return job, fmt.Errorf("trailing data after job YAML (exactly one job document expected)")
		}

	default:
		panic("unknown job format: " + string(format))
	}

	if job.Items == nil {
		return job, fmt.Errorf("missing items entirely (input glitch?)")
	}

	return job, nil
}
