// Package cmd is the filterengine command entry point.  It contains the
// configuration utilities, signal processing logic, and the request matching
// loop.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdguardTeam/filterengine"
	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/internal/metrics"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/osutil"
	"github.com/google/renameio/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Main is the entry point of the application.
func Main() {
	opts, isHelp, err := parseOptions(os.Args[1:])
	if isHelp {
		os.Exit(osutil.ExitCodeSuccess)
	} else if err != nil {
		os.Exit(osutil.ExitCodeFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	envs := errors.Must(parseEnvironment())
	envs.applyOptions(opts)
	errors.Check(envs.Validate())

	logConf := &slogutil.Config{
		// Don't use [slogutil.NewFormat] here, because the value is validated.
		Format:       slogutil.Format(envs.LogFormat),
		AddTimestamp: true,
		Level:        errors.Must(slogutil.VerbosityToLevel(envs.Verbosity)),
	}

	if opts.LogOutput != "" {
		logFile := &lumberjack.Logger{
			Filename:   opts.LogOutput,
			MaxSize:    100,
			MaxBackups: 3,
		}
		defer func() { _ = logFile.Close() }()

		logConf.Output = logFile
	}

	baseLogger := slogutil.New(logConf)
	mainLogger := baseLogger.With(slogutil.KeyPrefix, "main")

	conf := errors.Must(readConfig(envs.ConfPath))
	conf.addFilterPaths(opts.FilterLists)
	errors.Check(conf.Validate())

	in, closeIn, err := openRequests(opts.RequestsPath)
	errors.Check(err)
	defer closeIn()

	err = run(ctx, &runConfig{
		logger:      baseLogger,
		conf:        conf,
		in:          in,
		out:         os.Stdout,
		metricsAddr: envs.MetricsAddr,
	})
	if err != nil {
		mainLogger.ErrorContext(ctx, "running", slogutil.KeyError, err)

		os.Exit(osutil.ExitCodeFailure)
	}
}

// openRequests opens the requests input at path.  "-" means stdin.
func openRequests(path string) (r io.Reader, closeFunc func(), err error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}

	// #nosec G304 -- Trust the path explicitly given by the user.
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening requests: %w", err)
	}

	return f, func() { _ = f.Close() }, nil
}

// runConfig is the configuration for [run].
type runConfig struct {
	// logger is the base logger.  It must not be nil.
	logger *slog.Logger

	// conf is the validated configuration.  It must not be nil.
	conf *configuration

	// in is the source of the JSON-lines requests.  It must not be nil.
	in io.Reader

	// out is the destination of the JSON-lines results.  It must not be nil.
	out io.Writer

	// metricsAddr is the address for the Prometheus HTTP handler.  If empty,
	// the metrics are not served.
	metricsAddr string
}

// run loads the filter lists, builds the engines, optionally dumps the
// cosmetic results, and matches the requests from c.in.
func run(ctx context.Context, c *runConfig) (err error) {
	logger := c.logger.With(slogutil.KeyPrefix, "run")

	reg := prometheus.NewRegistry()
	err = reg.Register(collectors.NewGoCollector())
	if err != nil {
		return fmt.Errorf("registering go collector: %w", err)
	}

	mtrc, err := metrics.NewEngine(metrics.Namespace, reg)
	if err != nil {
		return fmt.Errorf("registering engine metrics: %w", err)
	}

	if c.metricsAddr != "" {
		var srv *metricsServer
		srv, err = newMetricsServer(c.logger, c.metricsAddr, reg)
		if err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer func() { err = errors.WithDeferred(err, srv.shutdown(ctx)) }()
	}

	lists, err := c.conf.openLists(c.logger)
	if err != nil {
		return fmt.Errorf("opening lists: %w", err)
	}

	storage, err := filterlist.NewRuleStorage(lists)
	if err != nil {
		for _, l := range lists {
			err = errors.WithDeferred(err, l.Close())
		}

		return fmt.Errorf("creating rule storage: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, storage.Close()) }()

	engine, err := filterengine.NewEngineWithConfig(ctx, &filterengine.EngineConfig{
		Logger:    c.logger.With(slogutil.KeyPrefix, "engine"),
		Metrics:   mtrc,
		Storage:   storage,
		ChunkSize: c.conf.ChunkSize,
	})
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	start := time.Now()
	dnsEngine := filterengine.NewDNSEngine(storage)
	logger.InfoContext(
		ctx,
		"dns engine built",
		"rules", dnsEngine.RulesCount,
		"elapsed", time.Since(start),
	)

	logMemoryUsage(ctx, logger)

	if dc := c.conf.CosmeticDump; dc != nil {
		err = dumpCosmetic(engine, dc)
		if err != nil {
			return fmt.Errorf("dumping cosmetic results: %w", err)
		}
	}

	m := newMatcher(engine, dnsEngine, c.conf.CacheSize)

	return m.processRequests(ctx, c.in, c.out)
}

// dumpCosmetic writes the cosmetic results for the hostnames from c into the
// file, replacing it atomically.
func dumpCosmetic(e *filterengine.Engine, c *cosmeticDumpConfig) (err error) {
	results := make(map[string]*filterengine.CosmeticResult, len(c.Hostnames))
	for _, h := range c.Hostnames {
		results[h] = e.GetCosmeticResult(h, rules.CosmeticOptionAll)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}

	return renameio.WriteFile(c.Path, data, 0o644)
}
