package main

import (
	"context"
	"errors"
	"testing"

	"github.com/docker-library/registry-publish/registry"
	"github.com/docker-library/registry-publish/registry/registrytest"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const testHost = "registry.example"

func TestLookupImage(t *testing.T) {
	ctx := context.Background()
	fake := registrytest.New()
	configDigest := fake.AddBlob("proj/repo/svc", []byte(`{"architecture":"arm","os":"linux","variant":"v7"}`))
	manifest := []byte(`{"schemaVersion":2,"config":{"mediaType":"application/vnd.oci.image.config.v1+json","digest":"` + configDigest.String() + `","size":51},"layers":[]}`)
	manifestDigest := fake.AddManifest("proj/repo/svc", "v1", manifest, ocispec.MediaTypeImageManifest)

	res, err := lookup(ctx, registrytest.Hosts{testHost: fake}, testHost+"/proj/repo/svc:v1")
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if res.Digest != manifestDigest || res.Size != int64(len(manifest)) || res.MediaType != ocispec.MediaTypeImageManifest {
		t.Errorf("unexpected manifest info %#v", res)
	}
	if res.Ref != testHost+"/proj/repo/svc:v1@"+manifestDigest.String() {
		t.Errorf("unexpected ref %q", res.Ref)
	}
	if res.Config == nil || res.Config.Digest != configDigest {
		t.Errorf("unexpected config %#v", res.Config)
	}
	if res.Platform == nil || res.Platform.Architecture != "arm" || res.Platform.Variant != "v7" {
		t.Errorf("unexpected platform %#v", res.Platform)
	}
	if res.Arch != "arm32v7" {
		t.Errorf("expected bashbrew arch arm32v7, got %q", res.Arch)
	}
}

func TestLookupIndex(t *testing.T) {
	ctx := context.Background()
	fake := registrytest.New()
	child := registry.Digest([]byte("child"))
	index := []byte(`{"schemaVersion":2,"mediaType":"application/vnd.oci.image.index.v1+json","manifests":[{"mediaType":"application/vnd.oci.image.manifest.v1+json","digest":"` + child.String() + `","size":5}]}`)
	fake.AddManifest("proj/repo/svc", "v1", index, ocispec.MediaTypeImageIndex)

	res, err := lookup(ctx, registrytest.Hosts{testHost: fake}, testHost+"/proj/repo/svc:v1")
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if len(res.Manifests) != 1 || res.Manifests[0].Digest != child {
		t.Errorf("unexpected manifests %#v", res.Manifests)
	}
	if res.Config != nil || res.Platform != nil {
		t.Errorf("index should not report a config or platform: %#v", res)
	}
}

func TestLookupTamperedConfig(t *testing.T) {
	ctx := context.Background()
	fake := registrytest.New()
	configDigest := fake.AddBlob("proj/repo/svc", []byte(`{"architecture":"amd64","os":"linux"}`))
	fake.TamperBlob("proj/repo/svc", configDigest, []byte(`{"architecture":"riscv64","os":"linux"}`))
	fake.AddManifest("proj/repo/svc", "v1", []byte(`{"config":{"digest":"`+configDigest.String()+`"}}`), ocispec.MediaTypeImageManifest)

	_, err := lookup(ctx, registrytest.Hosts{testHost: fake}, testHost+"/proj/repo/svc:v1")
	var mismatch *registry.DigestMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *registry.DigestMismatchError, got %T: %v", err, err)
	}
}
