package cargo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const sampleCrate = `{
  "crate": {
    "id": "serde",
    "name": "serde",
    "description": "A serialization framework",
    "homepage": "https://serde.rs",
    "repository": "https://github.com/serde-rs/serde",
    "keywords": ["serde", "serialization"],
    "categories": ["encoding"],
    "downloads": 500000000,
    "max_version": "1.0.200"
  },
  "versions": [
    {
      "id": 1,
      "num": "1.0.200",
      "license": "MIT OR Apache-2.0",
      "checksum": "abc123",
      "yanked": false,
      "created_at": "2024-06-01T00:00:00.000Z",
      "downloads": 10000,
      "published_by": {"login": "dtolnay", "name": "David Tolnay"}
    }
  ]
}`

const sampleDownloads = `{
  "version_downloads": [
    {"date": "2024-06-01", "downloads": 100000},
    {"date": "2024-06-02", "downloads": 110000},
    {"date": "2024-06-03", "downloads": 90000}
  ]
}`

func TestFetchMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/crates/serde", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleCrate))
	})
	mux.HandleFunc("/api/v1/crates/serde/downloads", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleDownloads))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reg := New(srv.URL, core.DefaultClient())
	meta, err := reg.FetchMetadata(context.Background(), "serde", "")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if !meta.Exists {
		t.Fatal("expected package to exist")
	}
	if meta.LatestVersion != "1.0.200" {
		t.Errorf("LatestVersion = %q, want 1.0.200", meta.LatestVersion)
	}
	if meta.Licenses != "MIT OR Apache-2.0" {
		t.Errorf("Licenses = %q", meta.Licenses)
	}
	if meta.HasInstallScript != core.Unknown {
		t.Errorf("HasInstallScript = %v, want Unknown (cargo has no install-script signal)", meta.HasInstallScript)
	}
	if meta.WeeklyDownloads == nil || *meta.WeeklyDownloads != 300000 {
		t.Errorf("WeeklyDownloads = %v, want 300000", meta.WeeklyDownloads)
	}
	if len(meta.Publishers) != 1 || meta.Publishers[0] != "dtolnay" {
		t.Errorf("Publishers = %v", meta.Publishers)
	}
}

func TestFetchMetadata_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reg := New(srv.URL, core.DefaultClient())
	meta, err := reg.FetchMetadata(context.Background(), "nonexistent-crate", "")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if meta.Exists {
		t.Error("expected Exists = false for a 404")
	}
}

func TestSupportedChecks(t *testing.T) {
	reg := New("", core.DefaultClient())
	checks := reg.SupportedChecks()
	if checks["install-script"] {
		t.Error("cargo should not support the install-script check")
	}
	if !checks["popularity"] {
		t.Error("cargo should support the popularity check")
	}
}

func TestURLBuilder(t *testing.T) {
	reg := New("", core.DefaultClient())
	urls := reg.URLs()
	if urls.Documentation("serde", "1.0.200") != "https://docs.rs/serde/1.0.200" {
		t.Errorf("Documentation URL = %q", urls.Documentation("serde", "1.0.200"))
	}
}
