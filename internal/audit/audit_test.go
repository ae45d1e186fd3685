package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/git-pkgs/safe-pkgs/internal/core"
)

func TestAppend_WritesOneJSONLinePerEntry(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithWriter(&buf)

	w.Append(Entry{
		Timestamp: time.Now(),
		Registry:  "npm",
		Package:   "left-pad",
		Version:   "1.0.0",
		Decision:  core.Decision{Allow: true, Risk: core.RiskNone},
		Source:    "live",
		LatencyMS: 42,
	})
	w.Append(Entry{
		Timestamp: time.Now(),
		Registry:  "npm",
		Package:   "reqeusts",
		Decision:  core.Decision{Allow: false, Risk: core.RiskHigh},
		Source:    "cache",
	})

	lines := splitLines(buf.String())
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line not valid JSON: %v (%q)", err, line)
		}
	}
}

func TestAppend_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.Append(Entry{Registry: "npm", Package: "pkg", Decision: core.Decision{Allow: true}})
		}(i)
	}
	wg.Wait()

	lines := splitLines(buf.String())
	if len(lines) != 50 {
		t.Fatalf("got %d lines, want 50", len(lines))
	}
	for _, line := range lines {
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("interleaved/corrupt line: %v (%q)", err, line)
		}
	}
}

func splitLines(s string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			out = append(out, line)
		}
	}
	return out
}
