// Command extractload loads a directory of TAB-delimited extract files into a
// relational store and prints a run summary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/donlluque/bbdd-txt-to-mysql/internal/config"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/decode"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/loader"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/metrics"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/metrics/datadog"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/router"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/schema"
	"github.com/donlluque/bbdd-txt-to-mysql/internal/storage"

	// register every backend; the config picks one.
	_ "github.com/donlluque/bbdd-txt-to-mysql/internal/storage/all"
)

const usage = "usage: extractload -config path/to/pipeline.json [-validate] [-v] [-metrics-backend none|datadog]"

// runner is the part of loader.Runner the CLI needs.
type runner interface {
	Run(ctx context.Context, dir string) (*loader.Summary, error)
}

// runSettings is what the CLI passes to newRunner besides the config.
type runSettings struct {
	RunID   string
	Verbose bool
	Logger  loader.Logger
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadEnv     func() error
	readFile    func(string) ([]byte, error)
	unmarshal   func([]byte, any) error
	newRunID    func() string
	initMetrics func(ctx context.Context, jobName, backendName, runID string) (func(), error)

	// newRunner returns the runner and a close func releasing its store.
	newRunner func(ctx context.Context, p config.Pipeline, s runSettings) (runner, func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadEnv:     loadDotEnv,
		readFile:    os.ReadFile,
		unmarshal:   json.Unmarshal,
		newRunID:    func() string { return uuid.NewString() },
		initMetrics: initMetrics,
		newRunner:   newRunner,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain is main without process globals. It returns the exit code:
// 0 success, 1 config, run or file errors, 2 usage errors.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	flags := flag.NewFlagSet("extractload", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		cfgPath     string
		backendName string
		validate    bool
		verbose     bool
	)
	flags.StringVar(&cfgPath, "config", "", "pipeline config JSON path")
	flags.StringVar(&backendName, "metrics-backend", "", "metrics backend (none, datadog); defaults to $METRICS_BACKEND")
	flags.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flags.BoolVar(&verbose, "v", false, "enable per-batch timing logs")
	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	if strings.TrimSpace(cfgPath) == "" {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	if err := deps.loadEnv(); err != nil {
		fmt.Fprintf(stderr, "load env: %v\n", err)
		return 1
	}

	raw, err := deps.readFile(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "read config: %v\n", err)
		return 1
	}
	var p config.Pipeline
	if err := deps.unmarshal(raw, &p); err != nil {
		fmt.Fprintf(stderr, "parse config: %v\n", err)
		return 1
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", cfgPath)
		return 1
	}
	if validate {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", cfgPath)
		return 0
	}
	p = p.WithDefaults()

	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	runID := deps.newRunID()

	cleanup, err := deps.initMetrics(ctx, p.Job, backendName, runID)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	logger := log.New(stderr, "", log.LstdFlags)
	r, closeRunner, err := deps.newRunner(ctx, p, runSettings{RunID: runID, Verbose: verbose, Logger: logger})
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}
	defer closeRunner()

	sum, err := r.Run(ctx, p.Source.Dir)
	if sum != nil {
		if _, werr := sum.WriteTo(stdout); werr != nil {
			fmt.Fprintf(stderr, "write summary: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}
	if sum.Failed() {
		return 1
	}
	return 0
}

// loadDotEnv loads .env from the working directory, overriding the
// environment. A missing file is not an error.
func loadDotEnv() error {
	err := godotenv.Overload()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// newRunner builds the store, engine and runner described by p.
func newRunner(ctx context.Context, p config.Pipeline, s runSettings) (runner, func(), error) {
	tablePolicy, err := loader.ParseTablePolicy(p.Load.TablePolicy)
	if err != nil {
		return nil, nil, err
	}
	writeMode, err := loader.ParseWriteMode(p.Load.WriteMode)
	if err != nil {
		return nil, nil, err
	}
	dec, err := decode.NewResolver(p.Load.Encodings)
	if err != nil {
		return nil, nil, err
	}

	policies := schema.DefaultPolicies()
	for table, cands := range p.Load.KeyPolicies {
		if table == config.DefaultKeyPolicy {
			policies.SetDefault(cands)
			continue
		}
		policies.Set(table, cands)
	}

	repo, err := storage.New(ctx, storage.Config{Kind: strings.ToLower(p.Storage.Kind), DSN: p.Storage.ExpandedDSN()})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", p.Storage.Kind, err)
	}

	eng := &loader.Engine{
		Repo:     repo,
		Decoder:  dec,
		Policies: policies,
		Stats:    loader.NewStats(),
		Locks:    &loader.TableLocks{},
		Logger:   s.Logger,
		Options: loader.Options{
			TablePolicy:         tablePolicy,
			WriteMode:           writeMode,
			BatchSize:           p.Runtime.BatchSize,
			FileTransaction:     p.Runtime.FileTransaction,
			AllowKeylessReplace: p.Load.AllowKeylessReplace,
			WriteCleaned:        p.Runtime.CleanedEnabled(),
			TextWidth:           p.Load.TextWidth,
			DebugTimings:        p.Runtime.DebugTimings || s.Verbose,
		},
	}
	r := &loader.Runner{
		Engine:  eng,
		Router:  router.New(p.Routes),
		Workers: p.Runtime.Workers,
		RunID:   s.RunID,
	}
	return r, repo.Close, nil
}

// metricsBackend is the part of a metrics backend main owns.
type metricsBackend interface {
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		if b == nil {
			metrics.SetBackend(nil)
			return
		}
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = log.Printf
)

// initMetrics wires the named metrics backend. The returned cleanup is never
// nil and flushes the backend.
func initMetrics(ctx context.Context, jobName, backendName, runID string) (func(), error) {
	switch strings.ToLower(strings.TrimSpace(backendName)) {
	case "", "none", "noop":
		return func() {}, nil

	case "datadog", "dd":
		tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		if runID != "" {
			tags = append(tags, "run_id:"+runID)
		}
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return func() {}, fmt.Errorf("datadog: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
			setMetricsBackend(nil)
		}, nil

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q", backendName)
	}
}
