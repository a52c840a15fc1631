package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"complaintsetl/internal/config"
	"complaintsetl/internal/metrics"
	"complaintsetl/internal/metrics/datadog"
	csvparser "complaintsetl/internal/parser/csv"
	htmlparser "complaintsetl/internal/parser/html"
	"complaintsetl/internal/star"
	"complaintsetl/internal/storage"
	"complaintsetl/pkg/records"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "complaintsetl/internal/storage/all"
)

// main loads the pipeline config, optionally wires a metrics backend, and
// runs the star-schema build end to end.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/complaints.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(os.Stderr, iss)
	}
	if config.HasErrors(issues) {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Each run gets a stable id for correlating logs with metric tags.
	runID := uuid.NewString()

	// Decide metrics backend: flag → env → default (disabled).
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		extraTags = append(extraTags, "run:"+runID)

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: p.Job,
			Tags:    extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job=%v tags=%v", backendName, p.Job, extraTags)
			metrics.SetBackend(b)
			// Close() stops the periodic flush loop and flushes one final time.
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("run=%s source=%s kind=%s storage=%s", runID, p.Source.Path, p.Source.Kind, p.Storage.Kind)
	}

	if err := run(ctx, p, *verbose); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("run=%s completed in %s", runID, time.Since(start).Truncate(time.Millisecond))
	}
}

func run(ctx context.Context, p *config.Pipeline, verbose bool) error {
	ds, err := readSource(p.Source)
	if err != nil {
		return err
	}

	sink, err := storage.New(ctx, storage.Config{
		Kind:      p.Storage.Kind,
		DSN:       p.Storage.DSN,
		BatchSize: p.Runtime.BatchSize,
	})
	if err != nil {
		return err
	}
	defer sink.Close()

	var logger star.Logger
	if verbose {
		logger = log.Default()
	}

	sum, err := star.NewEngine(sink, p.Model, logger).Run(ctx, ds)
	if err != nil {
		return err
	}

	log.Printf("loaded staging=%d fact=%d aggregate=%d dimensions=%v",
		sum.StagingRows, sum.FactRows, sum.AggregateRows, sum.DimensionRows)
	return nil
}

func readSource(s config.Source) (*records.Dataset, error) {
	switch s.Kind {
	case "csv":
		return csvparser.ReadFile(s.Path, s.Options)
	case "html":
		return htmlparser.ReadFile(s.Path, s.Options)
	default:
		return nil, fmt.Errorf("unsupported source.kind=%s", s.Kind)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
