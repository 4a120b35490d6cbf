package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/crimson-sun/sawmill/internal/config"
	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/input"
	"github.com/crimson-sun/sawmill/internal/logging"
	"github.com/crimson-sun/sawmill/internal/output"
	"github.com/crimson-sun/sawmill/internal/output/async"
	"github.com/crimson-sun/sawmill/internal/output/file"
	"github.com/crimson-sun/sawmill/internal/output/multi"
	"github.com/crimson-sun/sawmill/internal/output/stdout"
	"github.com/crimson-sun/sawmill/internal/output/webhook"
	"github.com/crimson-sun/sawmill/internal/pipeline"

	// Register input formats.
	_ "github.com/crimson-sun/sawmill/internal/input/csvfile"
	_ "github.com/crimson-sun/sawmill/internal/input/jsonl"
	_ "github.com/crimson-sun/sawmill/internal/input/lines"
)

// run wires engine, source, and outputs from cfg and drives the pipeline
// until the input ends or a signal arrives.
func run(ctx context.Context, cfg config.Config) error {
	logging.Init(cfg.Output.Format == "stdout", logging.ParseLevel(cfg.LogLevel))

	ctor, err := input.Get(cfg.Input.Format)
	if err != nil {
		return err
	}

	eng, err := engine.Open(engineSettings(cfg.Engine))
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer eng.Close()

	out, err := buildOutput(cfg.Output)
	if err != nil {
		return err
	}

	p := pipeline.New(ctor(), eng, out,
		pipeline.WithBatchSize(cfg.Input.BatchSize),
		pipeline.WithFlushInterval(cfg.Input.FlushInterval),
	)
	defer p.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	inCfg := input.Config{
		Path:   cfg.Input.Path,
		Column: cfg.Input.Column,
		Follow: cfg.Input.Follow,
	}
	slog.Info("sawmill starting",
		"version", config.Version,
		"input", cfg.Input.Format,
		"path", cfg.Input.Path,
		"follow", cfg.Input.Follow,
		"output", cfg.Output.Format,
	)

	if cfg.Input.Follow {
		err = p.Stream(ctx, inCfg)
	} else {
		err = p.Run(ctx, inCfg)
	}
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

func engineSettings(e config.EngineConfig) engine.Settings {
	return engine.Settings{
		ModelDir:        e.ModelDir,
		ModelPath:       e.ModelPath,
		VocabPath:       e.VocabPath,
		LabelsPath:      e.LabelsPath,
		RemoteURL:       e.RemoteURL,
		RemoteToken:     e.RemoteToken,
		MaxSeqLen:       e.MaxSeqLen,
		Stride:          e.Stride,
		BatchSize:       e.BatchSize,
		Workers:         e.Workers,
		LowerCase:       e.LowerCase,
		ConfidenceMerge: e.ConfidenceMerge,
		InferTimeout:    e.InferTimeout,
	}
}

// buildOutput opens every configured destination. More than one is fanned
// out through multi; the webhook is decoupled from the pipeline by async.
func buildOutput(c config.OutputConfig) (output.Output, error) {
	verbosity, err := output.ParseVerbosity(c.Verbosity)
	if err != nil {
		return nil, err
	}

	var outs []output.Output
	closeAll := func() {
		for _, o := range outs {
			o.Close()
		}
	}
	for _, format := range c.Formats() {
		switch format {
		case "stdout":
			outs = append(outs, stdout.New(verbosity, c.Pretty))
		case "file":
			var opts []file.Option
			if c.MaxSize > 0 {
				opts = append(opts, file.WithMaxSize(c.MaxSize))
			}
			f, err := file.New(c.Path, verbosity, opts...)
			if err != nil {
				closeAll()
				return nil, err
			}
			outs = append(outs, f)
		case "webhook":
			outs = append(outs, async.New(webhook.New(c.WebhookURL, webhook.WithVerbosity(verbosity))))
		default:
			closeAll()
			return nil, fmt.Errorf("unknown output %q", format)
		}
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}
