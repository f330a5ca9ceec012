// Command validate fetches the live lake dataset and checks it for problems
// that would show up on the map: duplicate ids, unusable coordinates,
// unknown classifications and inconsistent triage fields.
//
// Usage:
//
//	go run ./cmd/validate -url https://glacier-backend-1.onrender.com
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/glacier-risk-map/internal/adapter/lakeapi"
	"github.com/couchcryptid/glacier-risk-map/internal/domain"
	"github.com/couchcryptid/glacier-risk-map/internal/store"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	url := flag.String("url", sharedcfg.EnvOrDefault("LAKE_API_URL", "https://glacier-backend-1.onrender.com"), "lake data service base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	if code := run(*url, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(url string, timeout time.Duration) int {
	fmt.Println("=== Glacier Lake Dataset Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := lakeapi.NewClient(url, timeout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: create client: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	lakes, err := client.FetchDataset(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: fetch dataset: %v\n", err)
		return 1
	}

	records := store.New()
	dupes := records.Replace(lakes, domain.Now())

	phases := []*phase{
		validateIdentity(lakes, dupes),
		validateCoordinates(lakes),
		validateClassification(lakes),
		validateRendering(records),
		validateTriageFields(lakes),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	stats := records.Stats()
	fmt.Println()
	fmt.Printf("Records: %d fetched, %d unique, %d HIGH risk\n", len(lakes), stats.Total, stats.HighRisk)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateIdentity(lakes []domain.Lake, dupes int) *phase {
	p := &phase{name: "Unique lake ids"}
	if dupes == 0 {
		return p
	}
	seen := make(map[domain.LakeID]int, len(lakes))
	for _, l := range lakes {
		seen[l.ID]++
	}
	for id, n := range seen {
		if n > 1 {
			p.errorf("id %s appears %d times; the last record is shown", id, n)
		}
	}
	return p
}

func validateCoordinates(lakes []domain.Lake) *phase {
	p := &phase{name: "Coordinates within range"}
	for _, l := range lakes {
		switch {
		case !l.HasPosition():
			p.errorf("id %s (%s): missing coordinates", l.ID, l.Name)
		case l.Latitude < -90 || l.Latitude > 90:
			p.errorf("id %s (%s): latitude %.4f out of range", l.ID, l.Name, l.Latitude)
		case l.Longitude < -180 || l.Longitude > 180:
			p.errorf("id %s (%s): longitude %.4f out of range", l.ID, l.Name, l.Longitude)
		}
	}
	return p
}

func validateClassification(lakes []domain.Lake) *phase {
	p := &phase{name: "Known risk levels and confidence"}
	for _, l := range lakes {
		if !l.RiskLevel.Known() {
			p.errorf("id %s (%s): unknown risk level %q renders as %s", l.ID, l.Name, l.RiskLevel, domain.FallbackColor)
		}
		if l.Confidence < 0 || l.Confidence > 1 {
			p.errorf("id %s (%s): confidence %.3f outside [0,1]", l.ID, l.Name, l.Confidence)
		}
	}
	return p
}

// validateRendering checks that the default filter renders every classified
// record and that the pulse layer candidates match the HIGH count.
func validateRendering(records *store.RecordStore) *phase {
	p := &phase{name: "Default view renders classified records"}
	all := records.All()
	rendered := domain.Apply(all, domain.DefaultFilter())
	fc := domain.NewFeatureCollection(rendered)
	known := 0
	for _, l := range all {
		if l.RiskLevel.Known() {
			known++
		}
	}
	if len(fc.Features) != known {
		p.errorf("default filter renders %d of %d classified records", len(fc.Features), known)
	}

	high := 0
	for _, f := range fc.Features {
		if f.Properties[domain.PropClassification] == string(domain.RiskHigh) {
			high++
		}
	}
	if st := records.Stats(); high != st.HighRisk {
		p.errorf("pulse layer would show %d lakes, stats report %d HIGH", high, st.HighRisk)
	}
	return p
}

func validateTriageFields(lakes []domain.Lake) *phase {
	p := &phase{name: "Triage fields consistent"}
	for _, l := range lakes {
		switch l.Status {
		case domain.StatusVerified:
			if l.VerifiedBy == nil || l.VerifiedAt == nil {
				p.errorf("id %s (%s): VERIFIED without verifier or time", l.ID, l.Name)
			}
		case domain.StatusRejected:
			if l.DeclinedBy == nil || l.DeclinedAt == nil {
				p.errorf("id %s (%s): REJECTED without decliner or time", l.ID, l.Name)
			}
		case domain.StatusPending, "":
		default:
			p.errorf("id %s (%s): unknown verification status %q", l.ID, l.Name, l.Status)
		}
	}
	return p
}
