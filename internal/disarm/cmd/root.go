// Package cmd implements the disarm command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"disarm/disasm"
	_ "disarm/disasm/xarch"
	"disarm/internal/analysis"
	"disarm/internal/config"
	"disarm/internal/disarm/log"
	"disarm/internal/ui/colorize"
)

// app carries the settings shared by every subcommand once flags and the
// config file have been merged.
type app struct {
	cfg *config.Config

	configPath string
	debug      bool
	noColor    bool
	engine     string
	mode       disasm.Mode
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	in := &inputFlags{}

	rootCmd := &cobra.Command{
		Use:   "disarm [hex...]",
		Short: "Disassemble ARM32 and ARM64 machine code",
		Long: `Disarm decodes ARM32 and ARM64 machine code into annotated listings.
Code comes from hex arguments, standard input, a raw file, or a symbol or
section of an ELF binary.`,
		Example: `
# Decode hex bytes as ARM64
disarm fd7bbfa9 fd030091 c0035fd6

# Decode ARM32 starting at 0x8000
disarm -m arm32 -a 0x8000 10402de9 1080bde8

# Disassemble a symbol from a shared library with per-instruction detail
disarm --elf libfoo.so --symbol JNI_OnLoad --detail
  `,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.load(cmd, args, in)
			if err != nil {
				return err
			}
			defer src.Close()

			h, rs, err := a.decode(src)
			if err != nil {
				return err
			}
			defer h.Close()

			if a.cfg.Format == config.FormatJSON {
				return writeJSON(cmd.OutOrStdout(), h, rs, src, a.cfg.Detail)
			}
			return writeText(cmd.OutOrStdout(), h, rs, src, a.cfg.Detail)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP("cwd", "c", "", "Current working directory")
	pf.BoolVarP(&a.debug, "debug", "d", false, "Debug")
	pf.StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/disarm/config.yml)")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable syntax highlighting")
	pf.StringVar(&a.engine, "engine", "", "Decoding engine (default: first registered)")
	pf.VarP(newModeValue(&a.mode), "mode", "m", "Architecture: arm32 or arm64")

	in.register(rootCmd.Flags(), true)

	rootCmd.AddCommand(
		newNamesCmd(a),
		newStressCmd(a),
		newReportCmd(a),
		newViewCmd(a),
		newSchemaCmd(),
	)
	return rootCmd
}

// setup merges config file, environment and flags, then configures logging
// and colour.
func (a *app) setup(cmd *cobra.Command) error {
	if _, err := ResolveCwd(cmd); err != nil {
		return err
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "" && os.Getenv("DISARM_LOG_LEVEL") == "" {
		os.Setenv("DISARM_LOG_LEVEL", cfg.LogLevel)
	}
	log.Setup(a.debug)

	if cmd.Flags().Changed("mode") {
		cfg.Mode = a.mode
	}
	if a.noColor {
		cfg.Color = false
	}
	colorize.SetEnabled(cfg.Color && term.IsTerminal(os.Stdout.Fd()))
	a.cfg = cfg

	slog.Debug("configuration loaded", "mode", cfg.Mode, "format", cfg.Format, "color", cfg.Color)
	return nil
}

// decode opens a handle for the source's mode and decodes it.
func (a *app) decode(src *source) (*disasm.Handle, *disasm.ResultSet, error) {
	h, err := a.open(src.mode)
	if err != nil {
		return nil, nil, err
	}
	rs, err := h.Decode(src.code, src.addr, src.count)
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	if rs.Len() == 0 && len(src.code) > 0 {
		slog.Warn("no instructions decoded", "bytes", len(src.code), "mode", src.mode)
	}
	return h, rs, nil
}

func (a *app) open(mode disasm.Mode) (*disasm.Handle, error) {
	opts := []disasm.Option{disasm.WithEngine(a.engine)}
	if lg := log.Logger(); lg != nil {
		opts = append(opts, disasm.WithLogger(lg))
	}
	h, err := disasm.Open(mode, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s engine: %w", mode, err)
	}
	return h, nil
}

// image returns the source's ELF image as an analysis.Image, or nil.
func (s *source) image() analysis.Image {
	if s.img == nil {
		return nil
	}
	return s.img
}

var rootCmd = NewRootCmd()

// Execute runs the root command and exits non-zero on error. The log file,
// if any, is closed first since os.Exit skips deferred calls.
func Execute() {
	err := execute()
	if cerr := log.Close(); cerr != nil {
		fmt.Fprintln(os.Stderr, "close log:", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

func execute() error {
	// Bypass fang when output is being piped so its styling does not end
	// up in files.
	if !term.IsTerminal(os.Stdout.Fd()) {
		return rootCmd.Execute()
	}
	return fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	)
}

func ResolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		err := os.Chdir(cwd)
		if err != nil {
			return "", fmt.Errorf("failed to change directory: %v", err)
		}
		return cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %v", err)
	}
	return cwd, nil
}
