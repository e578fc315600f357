package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vulnverified/pry/internal/candidates"
	"github.com/vulnverified/pry/internal/engine"
	"github.com/vulnverified/pry/internal/output"
	"github.com/vulnverified/pry/internal/proto"
	"github.com/vulnverified/pry/internal/targets"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	output.Version = version

	var (
		protocol       string
		user           string
		userList       string
		wordlist       string
		comboList      string
		concurrency    int
		targetConc     int
		timeout        time.Duration
		retries        int
		rateLimit      float64
		proxyURL       string
		httpPath       string
		rdpDomain      string
		resolver       string
		noPreflight    bool
		keepGoing      bool
		mutate         bool
		rank           bool
		errorThreshold int
		challengeLimit int
		backoffBase    time.Duration
		backoffCap     time.Duration
		jsonOutput     bool
		recordPath     string
		noColor        bool
		silent         bool
		verbose        bool
	)

	rootCmd := &cobra.Command{
		Use:   "pry <target>...",
		Short: "Test credentials against network services",
		Long:  "Authorized credential testing for SSH, HTTP Basic, FTP, SMTP and RDP endpoints, with per-target throttle and lockout handling.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Respect NO_COLOR env var.
			if _, ok := os.LookupEnv("NO_COLOR"); ok {
				noColor = true
			}

			protocol = strings.ToLower(strings.TrimSpace(protocol))
			if !proto.Supported(protocol) {
				return fmt.Errorf("unsupported protocol %q", protocol)
			}

			ts, err := targets.ParseAll(args, protocol)
			if err != nil {
				return err
			}

			users, passwords, combos, err := loadCredentials(user, userList, wordlist, comboList)
			if err != nil {
				return err
			}
			if mutate {
				passwords = candidates.Expand(passwords)
			}
			if rank {
				passwords = candidates.Rank(passwords)
			}

			opts := proto.Options{
				ProxyURL:  proxyURL,
				UserAgent: fmt.Sprintf("pry/%s (+https://github.com/vulnverified/pry)", version),
				HTTPPath:  httpPath,
				RDPDomain: rdpDomain,
			}
			if err := proto.ValidateTransport(opts, []string{protocol}); err != nil {
				return err
			}
			adapters, err := proto.Adapters(opts)
			if err != nil {
				return err
			}

			cfg := engine.Config{
				Concurrency:       concurrency,
				TargetConcurrency: targetConc,
				Timeout:           timeout,
				MaxRetries:        retries,
				Rate:              rateLimit,
				Policy: engine.Policy{
					ErrorThreshold: errorThreshold,
					ChallengeLimit: challengeLimit,
					BackoffBase:    backoffBase,
					BackoffCap:     backoffCap,
					KeepGoing:      keepGoing,
				},
			}

			// Set up context with signal handling for clean Ctrl+C.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nInterrupted, letting in-flight attempts finish...")
				cancel()
			}()

			if !noPreflight {
				if err := targets.Preflight(ctx, targets.NewResolver(resolver), ts); err != nil {
					return err
				}
			}

			// Each target drains its own source so a throttled target never
			// starves the others of candidates.
			jobs := make([]engine.TargetJob, len(ts))
			for i, t := range ts {
				jobs[i] = engine.TargetJob{Target: t, Source: newSource(users, passwords, combos)}
			}

			showProgress := !jsonOutput && !silent
			progress := output.NewProgress(os.Stderr, verbose, !showProgress)

			var sink engine.Sink
			var recordFile *os.File
			if recordPath != "" {
				recordFile, err = os.Create(recordPath)
				if err != nil {
					return fmt.Errorf("open record file: %w", err)
				}
				defer recordFile.Close()
				sink = output.NewJSONLSink(recordFile)
			}

			if showProgress {
				output.WriteHeader(os.Stderr, noColor)
			}

			result, err := engine.Run(ctx, cfg, jobs, adapters, sink, progress)
			if err != nil {
				return err
			}

			if showProgress {
				progress.Complete()
			}

			if jsonOutput {
				return output.WriteJSON(os.Stdout, result)
			}
			output.WriteTable(os.Stdout, result, noColor)
			output.WriteSummary(os.Stdout, result, noColor)

			if result.Interrupted {
				os.Exit(130)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&protocol, "protocol", "P", "ssh", "Protocol to test (ssh, http, ftp, smtp, rdp)")
	rootCmd.Flags().StringVarP(&user, "user", "u", "", "Single username to test")
	rootCmd.Flags().StringVarP(&userList, "userlist", "U", "", "File with one username per line")
	rootCmd.Flags().StringVarP(&wordlist, "wordlist", "w", "", "File with one password per line")
	rootCmd.Flags().StringVarP(&comboList, "combo", "C", "", "File with user:pass lines (overrides user/wordlist)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 10, "Max concurrent attempts across all targets")
	rootCmd.Flags().IntVar(&targetConc, "target-concurrency", 1, "Max concurrent attempts per target")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Per-attempt timeout")
	rootCmd.Flags().IntVar(&retries, "retries", 2, "Retries per candidate after a connection error")
	rootCmd.Flags().Float64Var(&rateLimit, "rate", 0, "Global attempts per second (0 = unlimited)")
	rootCmd.Flags().StringVar(&proxyURL, "proxy", "", "Proxy URL (socks5://..., http://... for HTTP targets)")
	rootCmd.Flags().StringVar(&httpPath, "http-path", "/", "Request path for HTTP Basic auth")
	rootCmd.Flags().StringVar(&rdpDomain, "rdp-domain", "", "Windows domain for RDP logins")
	rootCmd.Flags().StringVar(&resolver, "resolver", "", "DNS server for the preflight check (default: system)")
	rootCmd.Flags().BoolVar(&noPreflight, "no-preflight", false, "Skip DNS resolution of targets before the run")
	rootCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Keep testing a target after a valid credential")
	rootCmd.Flags().BoolVar(&mutate, "mutate", false, "Expand the wordlist with common mutations")
	rootCmd.Flags().BoolVar(&rank, "rank", false, "Try likelier passwords first")
	rootCmd.Flags().IntVar(&errorThreshold, "error-threshold", 3, "Consecutive connection errors before backing off")
	rootCmd.Flags().IntVar(&challengeLimit, "challenge-limit", 3, "MFA challenges before giving up on a target")
	rootCmd.Flags().DurationVar(&backoffBase, "backoff", 2*time.Second, "Initial backoff while throttled")
	rootCmd.Flags().DurationVar(&backoffCap, "backoff-cap", 60*time.Second, "Backoff ceiling")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output structured JSON to stdout")
	rootCmd.Flags().StringVarP(&recordPath, "output", "o", "", "Stream attempt records to a JSONL file")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable terminal colors")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "Results only, no progress")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose per-attempt progress")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("pry {{.Version}}\n")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadCredentials resolves the user/wordlist/combo flags into credential
// material. Combo files take precedence and exclude the other flags.
func loadCredentials(user, userList, wordlist, comboList string) (users, passwords []string, combos []engine.Candidate, err error) {
	if comboList != "" {
		if user != "" || userList != "" || wordlist != "" {
			return nil, nil, nil, fmt.Errorf("--combo cannot be combined with --user, --userlist or --wordlist")
		}
		lines, err := candidates.Load(comboList)
		if err != nil {
			return nil, nil, nil, err
		}
		combos, err = candidates.Combos(lines)
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, combos, nil
	}

	switch {
	case user != "" && userList != "":
		return nil, nil, nil, fmt.Errorf("--user and --userlist are mutually exclusive")
	case user != "":
		users = []string{user}
	case userList != "":
		users, err = candidates.Load(userList)
		if err != nil {
			return nil, nil, nil, err
		}
	default:
		return nil, nil, nil, fmt.Errorf("a username is required (--user, --userlist or --combo)")
	}

	if wordlist == "" {
		return nil, nil, nil, fmt.Errorf("a password list is required (--wordlist or --combo)")
	}
	passwords, err = candidates.Load(wordlist)
	if err != nil {
		return nil, nil, nil, err
	}
	return users, passwords, nil, nil
}

// newSource builds a fresh candidate list. Sources are per target; each
// hands out every candidate exactly once.
func newSource(users, passwords []string, combos []engine.Candidate) *candidates.List {
	if combos != nil {
		items := make([]engine.Candidate, len(combos))
		copy(items, combos)
		return candidates.NewList(items)
	}
	return candidates.NewList(candidates.Pairs(users, passwords))
}
