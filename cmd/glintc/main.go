// Command glintc compiles a single ECMAScript-surface source file to a
// standalone Wasm binary.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/glint-lang/glintc/internal/config"
	"github.com/glint-lang/glintc/pkg/compiler"
)

func main() {
	logger := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}

	root := newRootCommand(logger)
	if err := root.Execute(); err != nil {
		logger.WithError(err).Error("compile failed")
		os.Exit(1)
	}
}

func newRootCommand(logger *logrus.Logger) *cobra.Command {
	var (
		out     string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:           "glintc [flags] <input.js>",
		Short:         "Compile an ECMAScript-surface source file to Wasm",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			return runCompile(logger, args[0], out, cc.Flags())
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output .wasm path (default: input with .wasm extension)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log per-stage timings at debug level")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runCompile(logger *logrus.Logger, inputPath, outPath string, flags *pflag.FlagSet) error {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	if outPath == "" {
		outPath = defaultOutputPath(inputPath)
	}

	logger.WithFields(logrus.Fields{
		"input":      inputPath,
		"output":     outPath,
		"value-type": cfg.ValueType,
		"closures":   cfg.Closures,
		"opt-passes": cfg.OptPasses,
	}).Debug("starting compile")

	start := time.Now()
	bin, timings, err := compiler.Compile(inputPath, string(src), compiler.Options{
		ValueType:  cfg.ValType(),
		PageSize:   uint32(cfg.PageSize),
		Closures:   cfg.Closures,
		OptPasses:  cfg.OptPasses,
		TailCall:   cfg.TailCall,
		ModuleName: moduleName(inputPath),
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, bin, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	logger.WithFields(logrus.Fields{
		"parse":    timings.Parse,
		"analyze":  timings.Analyze,
		"generate": timings.Generate,
		"optimize": timings.Optimize,
		"assemble": timings.Assemble,
		"total":    timings.Total(),
		"wall":     time.Since(start),
		"bytes":    len(bin),
	}).Debug("compile finished")

	return nil
}

func defaultOutputPath(inputPath string) string {
	for i := len(inputPath) - 1; i >= 0 && inputPath[i] != '/'; i-- {
		if inputPath[i] == '.' {
			return inputPath[:i] + ".wasm"
		}
	}
	return inputPath + ".wasm"
}

func moduleName(inputPath string) string {
	start := 0
	for i := len(inputPath) - 1; i >= 0; i-- {
		if inputPath[i] == '/' {
			start = i + 1
			break
		}
	}
	name := inputPath[start:]
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}
