package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/resetaudio/internal/config"
	"github.com/roach88/resetaudio/internal/locate"
	"github.com/roach88/resetaudio/internal/memory"
	"github.com/roach88/resetaudio/internal/notify"
	"github.com/roach88/resetaudio/internal/sigscan"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Config     string // configuration file whose signatures override the built-in profile
	FirstMatch bool
}

// ScanHandle is one resolved address.
type ScanHandle struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// ScanResult is the output of a successful scan.
type ScanResult struct {
	Module    string       `json:"module"`
	ImageBase string       `json:"image_base"`
	Text      string       `json:"text"`
	Handles   []ScanHandle `json:"handles"`
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan <pe-file>",
		Short: "Resolve the plugin's signatures against a client executable",
		Long: `Map a client executable the way the loader would and resolve every
address the plugin needs at startup.

Use this after a client patch to find out whether the signature profile
still works before the plugin is loaded.

Exit codes:
  0 - Every signature resolved
  1 - A signature is missing, ambiguous or resolves outside the image
  2 - Command error (unreadable file, invalid configuration)

Examples:
  resetaudio scan ffxiv_dx11.exe
  resetaudio scan ffxiv_dx11.exe --config resetaudio.yaml
  resetaudio scan ffxiv_dx11.exe --first-match --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "configuration file with a signatures override")
	cmd.Flags().BoolVar(&opts.FirstMatch, "first-match", false, "accept the first match of a signature without checking it is unique")

	return cmd
}

func runScan(opts *ScanOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	profile := locate.DefaultProfile()
	if opts.Config != "" {
		cfg, err := config.NewFileStore(opts.Config).Load()
		if err != nil {
			_ = formatter.Error(configErrorCode(err), err.Error(), nil)
			return WrapExitError(ExitCommandError, "load config", err)
		}
		profile = cfg.Profile()
		formatter.VerboseLog("Using signatures from %s", opts.Config)
	}

	f, err := os.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open executable", err)
	}
	defer f.Close()

	mem, err := memory.LoadImage(f)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFile, err.Error(), path)
		return WrapExitError(ExitCommandError, "map executable", err)
	}
	rng, err := sigscan.TextRange(mem, mem.Base())
	if err != nil {
		_ = formatter.Error(ErrCodeReadFile, err.Error(), path)
		return WrapExitError(ExitCommandError, "find code section", err)
	}

	module := locate.Module{Name: filepath.Base(path), Base: mem.Base()}
	formatter.VerboseLog("Mapped %s at %s, scanning %s", module.Name, mem.Base(), rng)

	logger := slog.New(slog.DiscardHandler)
	if opts.Verbose {
		logger = slog.New(slog.NewTextHandler(formatter.ErrWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	locateOpts := []locate.Option{locate.WithLogger(logger), locate.WithModule(module)}
	if opts.FirstMatch {
		locateOpts = append(locateOpts, locate.WithFirstMatch())
	}

	h, err := locate.Locate(mem, rng, profile, locateOpts...)
	if err != nil {
		return outputScanFailure(formatter, module, err)
	}

	result := ScanResult{
		Module:    module.Name,
		ImageBase: mem.Base().String(),
		Text:      rng.String(),
		Handles:   scanHandles(module, h),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ All signatures resolved in %s\n", module.Name)
	for _, handle := range result.Handles {
		fmt.Fprintf(w, "  %-28s %s\n", handle.Name, handle.Address)
	}
	return nil
}

func scanHandles(m locate.Module, h *locate.Handles) []ScanHandle {
	out := []ScanHandle{
		{"notification_vtbl", m.FormatRVA(h.NotificationVtbl)},
		{"reset_flag", m.FormatRVA(h.ResetFlag)},
		{"exit_event", m.FormatRVA(h.ExitEventPtr)},
		{"main_audio_class", m.FormatRVA(h.MainAudioClassPtr)},
		{"construct", m.FormatRVA(h.Construct)},
		{"initialize", m.FormatRVA(h.Initialize)},
		{"cleanup", m.FormatRVA(h.Cleanup)},
		{"set_static_addr2", m.FormatRVA(h.SetStaticAddr2)},
	}
	for _, slot := range notify.CallbackSlots {
		out = append(out, ScanHandle{Name: notify.SlotName(slot), Address: m.FormatRVA(h.OriginalSlots[slot])})
	}
	return out
}

func outputScanFailure(formatter *OutputFormatter, module locate.Module, err error) error {
	code, target := ErrCodeGeneric, ""
	var re *locate.ResolveError
	if errors.As(err, &re) {
		code, target = string(re.Code), re.Target
	}

	if formatter.Format == "json" {
		_ = formatter.Failure(map[string]string{"module": module.Name, "target": target}, code, err.Error())
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s\n", module.Name)
		fmt.Fprintf(formatter.Writer, "  %s: %v\n", code, err)
	}
	return WrapExitError(ExitFailure, "resolve "+target, err)
}

func configErrorCode(err error) string {
	var verrs config.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Code
	}
	return ErrCodeReadFile
}
