package publish_test

import (
	"testing"

	"github.com/docker-library/registry-publish/publish"
	"github.com/docker-library/registry-publish/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateResolve(t *testing.T) {
	t.Parallel()

	for _, x := range []struct {
		name        string
		coordinate  publish.Coordinate
		defaultRepo string
		expected    registry.Reference
	}{
		{
			name:        "own repo",
			coordinate:  publish.Coordinate{Repo: "proj/repo", Name: "svc", Tag: "v1"},
			defaultRepo: "proj/other",
			expected:    registry.Reference{Host: "us-docker.pkg.dev", Repository: "proj/repo/svc", Tag: "v1"},
		},
		{
			name:        "default repo",
			coordinate:  publish.Coordinate{Name: "svc", Tag: "v1"},
			defaultRepo: "proj/other",
			expected:    registry.Reference{Host: "us-docker.pkg.dev", Repository: "proj/other/svc", Tag: "v1"},
		},
		{
			name:       "trailing slash",
			coordinate: publish.Coordinate{Repo: "proj/repo/", Name: "svc", Tag: "v1"},
			expected:   registry.Reference{Host: "us-docker.pkg.dev", Repository: "proj/repo/svc", Tag: "v1"},
		},
	} {
		t.Run(x.name, func(t *testing.T) {
			ref, err := x.coordinate.Resolve("us-docker.pkg.dev", x.defaultRepo)
			require.NoError(t, err)
			assert.Equal(t, x.expected, ref)
		})
	}
}

func TestCoordinateResolveErrors(t *testing.T) {
	t.Parallel()

	for _, x := range []struct {
		name       string
		coordinate publish.Coordinate
		contains   string
	}{
		{"no repo anywhere", publish.Coordinate{Name: "svc", Tag: "v1"}, "missing repo"},
		{"no name", publish.Coordinate{Repo: "proj/repo", Tag: "v1"}, "missing name"},
		{"no tag", publish.Coordinate{Repo: "proj/repo", Name: "svc"}, "missing tag"},
	} {
		t.Run(x.name, func(t *testing.T) {
			_, err := x.coordinate.Resolve("us-docker.pkg.dev", "")
			var configErr *publish.ConfigurationError
			require.ErrorAs(t, err, &configErr)
			assert.Contains(t, err.Error(), x.contains)
		})
	}
}

func TestItemKindAndValidate(t *testing.T) {
	t.Parallel()

	c := publish.Coordinate{Repo: "proj/repo", Name: "svc", Tag: "v1"}

	assert.Equal(t, publish.KindRetag, publish.Item{Sources: []publish.Coordinate{c}}.Kind())
	assert.Equal(t, publish.KindIndex, publish.Item{Sources: []publish.Coordinate{c, c}}.Kind())
	assert.Equal(t, publish.Kind(""), publish.Item{}.Kind())

	assert.NoError(t, publish.Item{Sources: []publish.Coordinate{c}, Targets: []publish.Coordinate{c}}.Validate())

	err := publish.Item{}.Validate()
	var configErr *publish.ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, err.Error(), "zero sources")
	assert.Contains(t, err.Error(), "zero targets")
}

func TestCoordinateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "proj/repo/svc:v1", publish.Coordinate{Repo: "proj/repo", Name: "svc", Tag: "v1"}.String())
	assert.Equal(t, "svc:v1", publish.Coordinate{Name: "svc", Tag: "v1"}.String())
}
