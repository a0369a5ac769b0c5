// Command featurelab runs the feature engineering stages:
//
//	featurelab prepare  merge train/test, derive count features, cluster columns
//	featurelab woe      weight-of-evidence encode text columns, report IV
//	featurelab select   greedy forward feature selection
//	featurelab tune     TPE hyperparameter search for gradient boosting
//	featurelab all      every stage in order
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/YuminosukeSato/featurelab/internal/app"
	"github.com/YuminosukeSato/featurelab/internal/config"
	"github.com/YuminosukeSato/featurelab/pkg/errors"
	"github.com/YuminosukeSato/featurelab/pkg/log"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: featurelab [flags] <prepare|woe|select|tune|all>")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func main() {
	var (
		configPath = flag.String("config", "configs/featurelab.yaml", "YAML config file (empty for defaults)")
		envPath    = flag.String("env", ".env", "env file with FEATURELAB_* overrides")
		logLevel   = flag.String("log-level", "", "override log level (debug, info, warn, error)")
		features   = flag.String("features", "", "comma separated features for tune (default: all numeric)")
	)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := log.SetupLogger(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	logger := log.GetLoggerWithName("featurelab")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flag.Arg(0), splitList(*features)); err != nil {
		logger.Error("command failed", err, "command", flag.Arg(0))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, features []string) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	switch command {
	case "prepare":
		_, err = a.Prepare()
	case "woe":
		_, err = a.EncodeWOE()
	case "select":
		_, err = a.Select()
	case "tune":
		_, err = a.Tune(ctx, features, nil)
	case "all":
		err = runAll(ctx, a)
	default:
		return errors.Newf("unknown command %q", command)
	}
	return err
}

func runAll(ctx context.Context, a *app.App) error {
	if _, err := a.Prepare(); err != nil {
		return err
	}
	if _, err := a.EncodeWOE(); err != nil {
		return err
	}
	sel, err := a.Select()
	if err != nil {
		return err
	}
	_, err = a.Tune(ctx, sel.SelectedNames, nil)
	return err
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
