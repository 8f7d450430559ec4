// Command gbilc is the ahead-of-time compiler driver: the external
// collaborator named but explicitly excluded from the core in
// spec.md §1 ("the command-line argument parser, file I/O wrappers,
// dependency-injection wiring ... are shells around the core and
// contribute no design content"). It parses flags, wires a
// compiler.Driver, writes the resulting image in a single pass, and
// sets the process exit code — see spec.md §6.3.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/xyproto/gbilc/internal/compiler"
	"github.com/xyproto/gbilc/internal/compilerr"
)

// defaultTitle and defaultOutput match spec.md §6.3's driver defaults.
const (
	defaultTitle  = "HELLO WORLD"
	defaultOutput = "output.gb"
	// maxTitleLen is the driver-side truncation spec.md §6.3 calls for,
	// ahead of the header's own 16-byte (uppercased, padded) field.
	maxTitleLen = 15
)

// knownFlags backs the unknown-flag suggestion path; kept as a plain
// slice (not derived from the FlagSet) so the suggestion list stays
// stable even if a future flag is added without updating this file.
var knownFlags = []string{
	"output", "title", "cartridge-type", "strict", "verbose", "quiet",
}

func main() {
	var (
		outputPath    string
		title         string
		cartridgeType uint8
		strict        bool
		verbose       bool
		quiet         bool
	)

	rootCmd := &cobra.Command{
		Use:   "gbilc <input.dll>",
		Short: "Ahead-of-time compiler from managed bytecode to a bootable cartridge image",
		Long: "gbilc lowers a managed-bytecode assembly (IL, ECMA-335 stack machine) to a\n" +
			"bootable 8-bit handheld cartridge image: it decodes CLI metadata and method\n" +
			"bodies, lowers IL to LR35902 machine code, and assembles a valid cartridge\n" +
			"header with boot logo and checksums.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], outputPath, title, cartridgeType, strict, verbose, quiet)
		},
	}

	rootCmd.Flags().StringVarP(&outputPath, "output", "o", env.Str("GBILC_OUTPUT", defaultOutput), "output cartridge image path")
	rootCmd.Flags().StringVarP(&title, "title", "t", env.Str("GBILC_TITLE", defaultTitle), "cartridge title (truncated to 15 characters)")
	rootCmd.Flags().Uint8Var(&cartridgeType, "cartridge-type", 0x00, "cartridge type byte written to the header")
	rootCmd.Flags().BoolVar(&strict, "strict", env.Bool("GBILC_STRICT"), "treat an opcode with no lowering rule as a fatal error instead of a warning")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", env.Bool("GBILC_VERBOSE"), "print each compilation phase and emitted byte trace to stderr")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress warning output")

	rootCmd.SetFlagErrorFunc(flagErrorWithSuggestion)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the compiler version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gbilc 0.1.0")
		},
	}
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// flagErrorWithSuggestion intercepts pflag's "unknown flag: --X" error
// and, when a known flag is a close edit distance away, appends a
// "did you mean" hint — adapted from xyproto-vibe67's identifier-
// suggestion helper (engine_utils.go), retargeted at flag names.
func flagErrorWithSuggestion(cmd *cobra.Command, err error) error {
	const marker = "unknown flag: --"
	msg := err.Error()
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return err
	}
	attempted := strings.TrimSpace(msg[idx+len(marker):])
	if suggestion := suggestFlag(attempted, knownFlags); suggestion != "" {
		return fmt.Errorf("%s (did you mean --%s?)", err, suggestion)
	}
	return err
}

// run drives one compilation: build the Driver, compile, report
// warnings, and write the image in a single pass on success.
func run(inputPath, outputPath, title string, cartridgeType uint8, strict, verbose, quiet bool) error {
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}

	driver := compiler.New(compiler.Options{
		InputPath:     inputPath,
		OutputPath:    outputPath,
		Title:         title,
		CartridgeType: byte(cartridgeType),
		Strict:        strict,
		Verbose:       verbose,
	})

	result, err := driver.Compile()
	if err != nil {
		if cerr, ok := err.(*compilerr.Error); ok {
			return fmt.Errorf("%s", cerr.Format(stderrIsTerminal()))
		}
		return err
	}

	if !quiet && result.Warnings != nil {
		if report := result.Warnings.Report(stderrIsTerminal()); report != "" {
			fmt.Fprint(os.Stderr, report)
		}
	}

	if err := os.WriteFile(outputPath, result.Image, 0o644); err != nil {
		return fmt.Errorf("cannot write %q: %w", outputPath, err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", len(result.Image), outputPath)
	}
	return nil
}
