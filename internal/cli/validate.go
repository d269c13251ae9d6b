package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/svcrt/internal/abi"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions

	// Application selects the descriptor the documents below are checked
	// against.
	Application string
	Parameters  string
	Query       string
	Response    string
}

// DescriptorInfo describes one compiled descriptor.
type DescriptorInfo struct {
	Name          string `json:"name"`
	HasParameters bool   `json:"has_parameters"`
}

// ValidationIssue is one descriptor or document problem.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool              `json:"valid"`
	Descriptors []DescriptorInfo  `json:"descriptors,omitempty"`
	Errors      []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <abi-dir>",
		Short: "Validate application ABI descriptors",
		Long: `Compile the CUE application descriptors in a directory.

Each descriptor declares the query and response schema of one application
and, optionally, its parameters. With --app, JSON documents given by
--parameters, --query and --response are checked against that descriptor.

Examples:
  svcrt validate ./abi
  svcrt validate ./abi --app oracle --query '{"asset":"eth"}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Application, "app", "", "descriptor to check documents against")
	cmd.Flags().StringVar(&opts.Parameters, "parameters", "", "JSON parameters to check")
	cmd.Flags().StringVar(&opts.Query, "query", "", "JSON query to check")
	cmd.Flags().StringVar(&opts.Response, "response", "", "JSON response to check")

	return cmd
}

func runValidate(opts *ValidateOptions, abiDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(abiDir); os.IsNotExist(err) {
		return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("abi directory not found: %s", abiDir), nil)
	}

	descs, err := abi.LoadDir(abiDir)
	if err != nil {
		return outputValidationErrors(formatter, []ValidationIssue{compileIssue(err)})
	}

	infos := make([]DescriptorInfo, len(descs))
	byName := make(map[string]*abi.Descriptor, len(descs))
	for i, d := range descs {
		formatter.VerboseLog("Compiled descriptor: %s", d.Name)
		infos[i] = DescriptorInfo{Name: d.Name, HasParameters: d.HasParameters()}
		byName[d.Name] = d
	}

	issues, err := validateDocuments(opts, byName)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}
	if len(issues) > 0 {
		return outputValidationErrors(formatter, issues)
	}

	return outputValidateSuccess(formatter, infos)
}

// validateDocuments checks the documents given on the command line.
func validateDocuments(opts *ValidateOptions, descs map[string]*abi.Descriptor) ([]ValidationIssue, error) {
	if opts.Application == "" {
		if opts.Parameters != "" || opts.Query != "" || opts.Response != "" {
			return nil, errors.New("--app is required to check documents")
		}
		return nil, nil
	}
	d, ok := descs[opts.Application]
	if !ok {
		return nil, fmt.Errorf("no descriptor for application %q", opts.Application)
	}

	checks := []struct {
		part     string
		doc      string
		validate func([]byte) error
	}{
		{"parameters", opts.Parameters, d.ValidateParameters},
		{"query", opts.Query, d.ValidateQuery},
		{"response", opts.Response, d.ValidateResponse},
	}

	var issues []ValidationIssue
	for _, c := range checks {
		if c.doc == "" {
			continue
		}
		if err := c.validate([]byte(c.doc)); err != nil {
			issues = append(issues, ValidationIssue{
				Code:    ErrCodeDocumentRejected,
				Field:   c.part,
				Message: err.Error(),
			})
		}
	}
	return issues, nil
}

// compileIssue converts a descriptor load error, keeping its position.
func compileIssue(err error) ValidationIssue {
	var cErr *abi.CompileError
	if errors.As(err, &cErr) {
		issue := ValidationIssue{
			Code:    ErrCodeInvalidDescriptor,
			Field:   cErr.Field,
			Message: cErr.Message,
		}
		if cErr.Pos.IsValid() {
			issue.Line = cErr.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, infos []DescriptorInfo) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Descriptors: infos})
	}

	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "  %s\n", info.Name)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d descriptor(s) valid\n", len(infos))
	return nil
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", issue.Code, issue.Field, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
