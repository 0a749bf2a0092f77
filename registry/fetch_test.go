package registry_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/docker-library/registry-publish/registry"
	"github.com/docker-library/registry-publish/registry/registrytest"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const dockerManifestV2 = "application/vnd.docker.distribution.manifest.v2+json"

func TestFetchManifestByTag(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := registrytest.New()
	data := []byte(`{"schemaVersion":2,"config":{"digest":"sha256:0000000000000000000000000000000000000000000000000000000000000000"}}`)
	digest := fake.AddManifest("p/repo/svc", "v1", data, dockerManifestV2)

	ref := registry.Reference{Host: "us-docker.pkg.dev", Repository: "p/repo/svc", Tag: "v1"}
	m, err := registry.FetchManifest(ctx, fake, ref)
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if m.Digest != digest {
		t.Errorf("expected digest %s, got %s", digest, m.Digest)
	}
	if m.MediaType != dockerManifestV2 {
		t.Errorf("expected media type %q, got %q", dockerManifestV2, m.MediaType)
	}
	if string(m.Data) != string(data) {
		t.Errorf("expected data %q, got %q", data, m.Data)
	}
	if desc := m.Descriptor(); desc.Size != int64(len(data)) || desc.Digest != digest {
		t.Errorf("unexpected descriptor %#v", desc)
	}
}

func TestFetchManifestDefaultsToLatest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := registrytest.New()
	fake.AddManifest("p/repo/svc", "latest", []byte(`{}`), ocispec.MediaTypeImageManifest)

	if _, err := registry.FetchManifest(ctx, fake, registry.Reference{Host: "x", Repository: "p/repo/svc"}); err != nil {
		t.Fatal("unexpected error", err)
	}
	reqs := fake.Requests()
	if len(reqs) != 1 || reqs[0].Ref != "latest" {
		t.Fatalf("expected a single GET of latest, got %v", reqs)
	}
}

func TestFetchManifestNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := registrytest.New()
	_, err := registry.FetchManifest(ctx, fake, registry.Reference{Host: "x", Repository: "p/repo/svc", Tag: "nope"})

	var regErr *registry.RegistryError
	if !errors.As(err, &regErr) {
		t.Fatalf("expected *registry.RegistryError, got %T: %v", err, err)
	}
	if regErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", regErr.StatusCode)
	}
}

func TestFetchBlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := registrytest.New()
	config := []byte(`{"architecture":"amd64","os":"linux"}`)
	digest := fake.AddBlob("p/repo/svc", config)

	ref := registry.Reference{Host: "x", Repository: "p/repo/svc", Digest: digest}
	data, err := registry.FetchBlob(ctx, fake, ref)
	if err != nil {
		t.Fatal("unexpected error", err)
	}
	if string(data) != string(config) {
		t.Fatalf("expected %q, got %q", config, data)
	}

	if _, err := registry.FetchBlob(ctx, fake, registry.Reference{Host: "x", Repository: "p/repo/svc"}); err == nil {
		t.Error("expected error fetching a blob without a digest")
	}
	ref.Tag = "v1"
	if _, err := registry.FetchBlob(ctx, fake, ref); err == nil {
		t.Error("expected error fetching a blob with a tag")
	}
}

func TestFetchBlobDigestMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := registrytest.New()
	digest := fake.AddBlob("p/repo/svc", []byte(`{"architecture":"amd64","os":"linux"}`))
	tampered := []byte(`{"architecture":"s390x","os":"linux"}`)
	fake.TamperBlob("p/repo/svc", digest, tampered)

	_, err := registry.FetchBlob(ctx, fake, registry.Reference{Host: "x", Repository: "p/repo/svc", Digest: digest})

	var mismatch *registry.DigestMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *registry.DigestMismatchError, got %T: %v", err, err)
	}
	if mismatch.Expected != digest {
		t.Errorf("expected Expected=%s, got %s", digest, mismatch.Expected)
	}
	if mismatch.Actual != registry.Digest(tampered) {
		t.Errorf("expected Actual=%s, got %s", registry.Digest(tampered), mismatch.Actual)
	}
}

func TestRegistryCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := registrytest.New()
	digest := fake.AddBlob("p/repo/svc", []byte(`{"architecture":"amd64","os":"linux"}`))
	fake.AddManifest("p/repo/svc", "v1", []byte(`{}`), ocispec.MediaTypeImageManifest)
	cached := registry.RegistryCache(fake)

	ref := registry.Reference{Host: "x", Repository: "p/repo/svc", Digest: digest}
	for i := 0; i < 3; i++ {
		if _, err := registry.FetchBlob(ctx, cached, ref); err != nil {
			t.Fatal("unexpected error", err)
		}
	}
	tagRef := registry.Reference{Host: "x", Repository: "p/repo/svc", Tag: "v1"}
	for i := 0; i < 2; i++ {
		if _, err := registry.FetchManifest(ctx, cached, tagRef); err != nil {
			t.Fatal("unexpected error", err)
		}
	}

	var blobGets, tagGets int
	for _, req := range fake.Requests() {
		switch {
		case req.Kind == "blob":
			blobGets++
		case req.Ref == "v1":
			tagGets++
		}
	}
	if blobGets != 1 {
		t.Errorf("expected exactly 1 upstream blob GET, got %d", blobGets)
	}
	if tagGets != 2 {
		t.Errorf("expected tag lookups to always go upstream (2), got %d", tagGets)
	}
}
