package pypi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

const samplePackage = `{
  "info": {
    "name": "requests",
    "summary": "Python HTTP for Humans.",
    "home_page": "https://requests.readthedocs.io",
    "license": "Apache-2.0",
    "version": "2.31.0",
    "classifiers": ["License :: OSI Approved :: Apache Software License"],
    "project_urls": {"Source": "https://github.com/psf/requests"},
    "maintainer": "Kenneth Reitz"
  },
  "releases": {
    "2.31.0": [{"upload_time": "2023-05-22T15:12:43", "digests": {"sha256": "abc"}, "yanked": false}]
  }
}`

const sampleStats = `{"data": {"last_week": 50000000}}`

func TestFetchMetadata(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/requests/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(samplePackage))
	})
	registrySrv := httptest.NewServer(mux)
	defer registrySrv.Close()

	statsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleStats))
	}))
	defer statsSrv.Close()

	reg := New(registrySrv.URL, core.DefaultClient())
	reg.statsURL = statsSrv.URL

	meta, err := reg.FetchMetadata(context.Background(), "requests", "")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}
	if !meta.Exists {
		t.Fatal("expected package to exist")
	}
	if meta.LatestVersion != "2.31.0" {
		t.Errorf("LatestVersion = %q", meta.LatestVersion)
	}
	if meta.Licenses != "Apache-2.0" {
		t.Errorf("Licenses = %q", meta.Licenses)
	}
	if meta.HasInstallScript != core.Unknown {
		t.Errorf("HasInstallScript = %v, want Unknown", meta.HasInstallScript)
	}
	if meta.WeeklyDownloads == nil || *meta.WeeklyDownloads != 50000000 {
		t.Errorf("WeeklyDownloads = %v", meta.WeeklyDownloads)
	}
	if meta.Repository != "https://github.com/psf/requests" {
		t.Errorf("Repository = %q", meta.Repository)
	}
}

func TestFetchMetadata_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	reg := New(srv.URL, core.DefaultClient())
	meta, err := reg.FetchMetadata(context.Background(), "nonexistent-pkg", "")
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
		t.Error("pypi should not support the install-script check")
	}
}

func TestNormalizeName(t *testing.T) {
	if normalizeName("Django_Rest.Framework") != "django-rest-framework" {
		t.Errorf("normalizeName = %q", normalizeName("Django_Rest.Framework"))
	}
}
