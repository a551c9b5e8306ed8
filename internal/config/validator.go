package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/utkarsh5026/pkgiter/batch"
	"github.com/utkarsh5026/pkgiter/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config key (e.g., "batch_concurrency")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateStrategy()...)
	errs = append(errs, c.validateLogging()...)
	return errs
}

func (c *Config) validateStrategy() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidStrategies(), c.Strategy) {
		errs = append(errs, ValidationError{
			Field:   "strategy",
			Value:   c.Strategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
		})
	}
	if c.Concurrency < 1 {
		errs = append(errs, ValidationError{
			Field:   "concurrency",
			Value:   c.Concurrency,
			Message: "must be at least 1",
		})
	}
	if c.BatchConcurrency < 1 {
		errs = append(errs, ValidationError{
			Field:   "batch_concurrency",
			Value:   c.BatchConcurrency,
			Message: "must be at least 1",
		})
	}
	if _, err := batch.ParsePolicy(c.FailurePolicy); err != nil {
		errs = append(errs, ValidationError{
			Field:   "failure_policy",
			Value:   c.FailurePolicy,
			Message: "must be stop or skip-dependents",
		})
	}
	if strings.ContainsAny(c.Built, `/\`) {
		errs = append(errs, ValidationError{
			Field:   "built",
			Value:   c.Built,
			Message: "must not contain path separators",
		})
	}
	if c.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "rate_limit",
			Value:   c.RateLimit,
			Message: "must not be negative",
		})
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "rate_burst",
			Value:   c.RateBurst,
			Message: "must be at least 1 when rate_limit is set",
		})
	}
	if strings.TrimSpace(c.NPMClient) == "" {
		errs = append(errs, ValidationError{
			Field:   "npm_client",
			Value:   c.NPMClient,
			Message: "must not be empty",
		})
	}

	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of: debug, info, warn, error",
		})
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: "must be text or json",
		})
	}

	return errs
}
