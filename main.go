package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ComedicChimera/olive"

	"headerbind/clangast"
	"headerbind/config"
	"headerbind/logging"
	"headerbind/pipeline"
)

// Version is the headerbind release.
const Version = "0.3.0"

func main() {
	cli := olive.NewCLI("headerbind", "headerbind generates language bindings from C headers", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the log level", false,
		[]string{logging.LevelSilent, logging.LevelError, logging.LevelWarn, logging.LevelVerbose, logging.LevelDebug})
	logLvlArg.SetDefaultValue(logging.LevelVerbose)

	genCmd := cli.AddSubcommand("gen", "generate bindings and shim headers", true)
	genCmd.AddPrimaryArg("config", "the path to the run configuration", true)
	genCmd.AddFlag("libclang", "lc", "parse headers in-process with libclang")

	irCmd := cli.AddSubcommand("ir", "only dump the parsed declarations as JSON", true)
	irCmd.AddPrimaryArg("config", "the path to the run configuration", true)
	irCmd.AddFlag("libclang", "lc", "parse headers in-process with libclang")

	cli.AddSubcommand("version", "print the headerbind version", false)

	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		os.Exit(1)
	}

	log := logging.NewLogger(logging.NewConsoleHandler(os.Stdout, result.Arguments["loglevel"].(string)))

	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "gen", "ir":
		if err := execRun(subResult, log, subcmdName == "ir"); err != nil {
			logging.PrintErrorMessage("Bindgen Error", err)
			os.Exit(1)
		}
	case "version":
		logging.PrintInfoMessage("headerbind version", Version)
	}
}

// execRun loads the configuration and runs the pipeline.  In IR mode only
// the declaration dumps are written.
func execRun(result *olive.ArgParseResult, log *logging.Logger, irOnly bool) error {
	cfgPath, _ := result.PrimaryArg()
	cfgPath, err := filepath.Abs(cfgPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if result.HasFlag("libclang") {
		if !clangast.LibclangAvailable {
			return fmt.Errorf("--libclang: %w", clangast.ErrLibclangUnavailable)
		}
		cfg.Clang.Libclang = true
	}

	ctx := context.Background()
	p := pipeline.New(cfg, log)
	if !irOnly {
		return p.Run(ctx)
	}

	units, _, err := p.Parse(ctx)
	if err != nil {
		return err
	}
	err = p.DumpIR(ctx, units)
	if errors.Is(err, pipeline.ErrNoIRDumpDir) {
		logging.PrintWarningMessage("IR", "output.ir_dump_dir is not set, nothing written")
		return nil
	}
	return err
}
