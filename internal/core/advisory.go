package core

import "context"

// AdvisoryProvider fetches known vulnerabilities for a package/version,
// per §4.2. An empty slice is a valid, failure-free answer.
type AdvisoryProvider interface {
	FetchAdvisories(ctx context.Context, registry, name, version string) ([]Advisory, error)
}
