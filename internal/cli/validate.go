package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/resetaudio/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a plugin configuration file",
		Long: `Validate a Reset Audio configuration file without loading the plugin.

Checks the YAML syntax, the configuration schema (value ranges, property key
format, signature patterns) and that no property key is listed twice.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read config", err)
	}
	formatter.VerboseLog("Read %d bytes from %s", len(data), path)

	errs := validateConfig(data)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", filepath.Base(path))
	return nil
}

// validateConfig runs the schema check and, when the file decodes, the
// checks that need the decoded list.
func validateConfig(data []byte) []config.ValidationError {
	cfg, err := config.Parse(data)
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			return verrs
		}
		return []config.ValidationError{{Message: err.Error(), Code: config.ErrCodeParse}}
	}
	return config.Validate(&cfg)
}

func outputValidationErrors(formatter *OutputFormatter, errs []config.ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.Failure(ValidationResult{Errors: errs}, errs[0].Code, errs[0].Message); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s %s\n", e.Code, e.Message)
		}
	}
	return exitErr
}
