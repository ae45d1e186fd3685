package osv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

func TestFetchAdvisories(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/query" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Package.Ecosystem != "npm" || req.Package.Name != "left-pad" {
			t.Fatalf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(queryResponse{Vulns: []vuln{
			{
				ID:      "GHSA-aaaa",
				Summary: "prototype pollution",
				Severity: []vulnSeverity{
					{Type: "CVSS_V3", Score: "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"},
				},
			},
		}})
	}))
	defer server.Close()

	client := New(server.URL, core.DefaultClient())
	advisories, err := client.FetchAdvisories(context.Background(), "npm", "left-pad", "1.0.0")
	if err != nil {
		t.Fatalf("FetchAdvisories: %v", err)
	}
	if len(advisories) != 1 {
		t.Fatalf("advisories = %+v, want 1", advisories)
	}
	if advisories[0].ID != "GHSA-aaaa" || advisories[0].Severity != core.SeverityCritical {
		t.Errorf("advisory = %+v, want GHSA-aaaa/critical", advisories[0])
	}
}

func TestFetchAdvisories_NoVulns(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(queryResponse{})
	}))
	defer server.Close()

	client := New(server.URL, core.DefaultClient())
	advisories, err := client.FetchAdvisories(context.Background(), "npm", "left-pad", "1.0.0")
	if err != nil {
		t.Fatalf("FetchAdvisories: %v", err)
	}
	if len(advisories) != 0 {
		t.Fatalf("advisories = %+v, want none", advisories)
	}
}

func TestFetchAdvisories_UnknownRegistrySkipsQuery(t *testing.T) {
	client := New("http://unused.invalid", core.DefaultClient())
	advisories, err := client.FetchAdvisories(context.Background(), "hackage", "pkg", "1.0.0")
	if err != nil || advisories != nil {
		t.Fatalf("advisories = %+v, err = %v, want nil,nil", advisories, err)
	}
}

func TestScoreToSeverity(t *testing.T) {
	cases := []struct {
		score float64
		want  core.Severity
	}{
		{9.8, core.SeverityCritical},
		{7.5, core.SeverityHigh},
		{5.0, core.SeverityMedium},
		{2.0, core.SeverityLow},
	}
	for _, tc := range cases {
		if got := scoreToSeverity(tc.score); got != tc.want {
			t.Errorf("scoreToSeverity(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}
