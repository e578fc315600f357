package output

import (
	"fmt"
	"io"

	"github.com/vulnverified/pry/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

// WriteHeader prints the pry banner.
func WriteHeader(w io.Writer, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "pry %s — https://vulnverified.com\n\n", Version)
	} else {
		fmt.Fprintf(w, "\033[1mpry %s\033[0m — https://vulnverified.com\n\n", Version)
	}
}

// WriteSummary prints the post-run summary: found credentials first, then
// hostile-countermeasure warnings, then totals.
func WriteSummary(w io.Writer, result *engine.RunResult, noColor bool) {
	s := result.Summary

	fmt.Fprintln(w)
	if s.Found > 0 {
		for _, report := range result.Targets {
			if report.Found == nil {
				continue
			}
			if noColor {
				fmt.Fprintf(w, "+ %s  %s:%s\n", report.Target, report.Found.Username, report.Found.Password)
			} else {
				fmt.Fprintf(w, "\033[32m+\033[0m %s  \033[1m%s:%s\033[0m\n",
					report.Target, report.Found.Username, report.Found.Password)
			}
		}
		fmt.Fprintln(w)
	}

	for _, report := range result.Targets {
		if report.Phase != engine.PhaseBlocked {
			continue
		}
		if noColor {
			fmt.Fprintf(w, "! %s blocked further attempts after %d tries\n", report.Target, report.Attempts)
		} else {
			fmt.Fprintf(w, "\033[33m!\033[0m %s blocked further attempts after %d tries\n", report.Target, report.Attempts)
		}
	}

	if noColor {
		fmt.Fprintf(w, "Targets: %d (%d credentials found, %d blocked)\n", s.TargetCount, s.Found, s.Blocked)
		fmt.Fprintf(w, "Attempts: %d in %.1fs\n", s.Attempts, result.DurationSecs)
	} else {
		fmt.Fprintf(w, "\033[1mTargets:\033[0m %d (%d credentials found, %d blocked)\n", s.TargetCount, s.Found, s.Blocked)
		fmt.Fprintf(w, "\033[1mAttempts:\033[0m %d in %.1fs\n", s.Attempts, result.DurationSecs)
	}

	if result.Interrupted {
		fmt.Fprintln(w, "Run interrupted; results are partial.")
	}
}
