package common

import (
	"fmt"
	"slices"
	"strings"

	"vacalyser/internal/errors"
	"vacalyser/internal/parse"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateKind checks an artifact or suggestion kind given on the command line
func ValidateKind(kind string, kinds []string) error {
	if slices.Contains(kinds, kind) {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeUnknownArtifact,
		fmt.Sprintf("unknown kind '%s'. Supported kinds: %s", kind, strings.Join(kinds, ", ")), nil)
}

// ValidateJobTitle rejects titles the suggestion prompts cannot take
func ValidateJobTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.NewValidationError(errors.ErrCodeMissingField, "a job title is required (--role)", nil)
	}
	if !parse.ValidJobTitle(title) {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("job title '%s' may only contain letters, digits and spaces", title), nil)
	}
	return nil
}
