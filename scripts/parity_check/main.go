// Command parity_check replays read-only attendance requests against both the
// legacy Express deployment and this service, and reports response drift.
// Volatile envelope fields (timings, request ids) are stripped before
// comparison so only contract differences surface.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"
)

type probe struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

// defaultProbes covers the read surface of the ledger. Write endpoints are
// excluded on purpose: replaying them would mutate both deployments.
var defaultProbes = []probe{
	{Method: http.MethodGet, Path: "/api/v1/attendance?batch=batch-1", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/attendance/dates?batch=batch-1", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/attendance/day?batch=batch-1&date=2024-01-10", Critical: true},
	{Method: http.MethodGet, Path: "/api/v1/attendance/stats", Critical: false},
}

// Envelope fields that legitimately differ between runs and deployments.
var volatileFields = map[string]struct{}{
	"processing_time_ms": {},
	"request_id":         {},
	"created_at":         {},
	"updated_at":         {},
}

type outcome struct {
	Probe        probe
	LegacyStatus int
	PortStatus   int
	StatusMatch  bool
	BodyMatch    bool
	Err          error
}

func main() {
	var (
		portBase   string
		legacyBase string
		probesPath string
		token      string
		timeout    time.Duration
	)
	flag.StringVar(&portBase, "port-base", "http://localhost:8080", "base URL of this service")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "base URL of the legacy Express service")
	flag.StringVar(&probesPath, "probes", "", "optional JSON file overriding the built-in probe list")
	flag.StringVar(&token, "token", os.Getenv("PARITY_TOKEN"), "bearer token sent to both services")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	probes := defaultProbes
	if probesPath != "" {
		loaded, err := loadProbes(probesPath)
		if err != nil {
			log.Fatalf("failed to load probes: %v", err)
		}
		probes = loaded
	}

	client := &http.Client{Timeout: timeout}
	breaking := 0
	for _, p := range probes {
		out := compare(client, portBase, legacyBase, token, p)
		report(out)
		if p.Critical && (out.Err != nil || !out.StatusMatch || !out.BodyMatch) {
			breaking++
		}
	}

	fmt.Printf("breaking differences: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadProbes(path string) ([]probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var probes []probe
	if err := json.Unmarshal(data, &probes); err != nil {
		return nil, err
	}
	if len(probes) == 0 {
		return nil, fmt.Errorf("no probes defined in %s", path)
	}
	return probes, nil
}

func compare(client *http.Client, portBase, legacyBase, token string, p probe) outcome {
	out := outcome{Probe: p}

	portStatus, portBody, err := fetch(client, portBase, token, p)
	if err != nil {
		out.Err = fmt.Errorf("port request failed: %w", err)
		return out
	}
	legacyStatus, legacyBody, err := fetch(client, legacyBase, token, p)
	if err != nil {
		out.Err = fmt.Errorf("legacy request failed: %w", err)
		return out
	}

	out.PortStatus = portStatus
	out.LegacyStatus = legacyStatus
	out.StatusMatch = portStatus == legacyStatus
	out.BodyMatch = bodiesMatch(portBody, legacyBody)
	return out
}

func fetch(client *http.Client, base, token string, p probe) (int, []byte, error) {
	url := strings.TrimRight(base, "/") + p.Path
	req, err := http.NewRequest(p.Method, url, nil)
	if err != nil {
		return 0, nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func bodiesMatch(a, b []byte) bool {
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b))
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	scrub(&aj)
	scrub(&bj)
	return reflect.DeepEqual(aj, bj)
}

// scrub removes volatile fields and collapses integral floats so an int from
// one JSON encoder equals a float from the other.
func scrub(v *interface{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k := range volatileFields {
			delete(val, k)
		}
		for k, inner := range val {
			scrub(&inner)
			val[k] = inner
		}
	case []interface{}:
		for i, inner := range val {
			scrub(&inner)
			val[i] = inner
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func report(out outcome) {
	label := "OK"
	if out.Err != nil {
		label = "ERROR"
	} else if !out.StatusMatch || !out.BodyMatch {
		label = "DIFF"
	}
	fmt.Printf("[%s] %s %s\n", label, out.Probe.Method, out.Probe.Path)
	if out.Err != nil {
		fmt.Printf("  error: %v\n", out.Err)
		return
	}
	fmt.Printf("  port=%d legacy=%d status_match=%t body_match=%t critical=%t\n",
		out.PortStatus, out.LegacyStatus, out.StatusMatch, out.BodyMatch, out.Probe.Critical)
}
