package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/datar-psa/mtdetect/table"
)

var (
	// ErrNoExpectedValue is returned when an expected value is required but not provided
	ErrNoExpectedValue = errors.New("expected value is required for this scorer")
	// ErrLLMGenerationFailed is returned when LLM generation fails
	ErrLLMGenerationFailed = errors.New("LLM generation failed")
	// ErrConfiguration marks unknown metrics and invalid or missing metric configuration
	ErrConfiguration = errors.New("configuration error")
	// ErrMissingColumn marks an input table without a required column
	ErrMissingColumn = table.ErrMissingColumn
	// ErrMetricUnavailable marks a metric whose model or optional dependency is not present
	ErrMetricUnavailable = errors.New("metric unavailable")
	// ErrComputation marks a metric that failed while scoring
	ErrComputation = errors.New("metric computation failed")
)

// MissingColumnError is returned when an input table lacks a required column.
type MissingColumnError = table.MissingColumnError

// ConfigurationError describes an unknown metric name or an invalid metric configuration.
type ConfigurationError struct {
	// Metrics lists the offending metric names
	Metrics []string
	// Key is the configuration key at fault, if any
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if len(e.Metrics) > 0 {
		fmt.Fprintf(&b, " for %s", strings.Join(e.Metrics, ", "))
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " (key %q)", e.Key)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// NewConfigurationError builds a ConfigurationError for one metric.
func NewConfigurationError(metric, key, reason string) *ConfigurationError {
	return &ConfigurationError{Metrics: []string{metric}, Key: key, Reason: reason}
}

// MetricUnavailableError reports that a metric cannot run in this environment.
type MetricUnavailableError struct {
	Metric string
	Err    error
}

func (e *MetricUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("metric %s unavailable", e.Metric)
	}
	return fmt.Sprintf("metric %s unavailable: %v", e.Metric, e.Err)
}

func (e *MetricUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMetricUnavailable}
	}
	return []error{ErrMetricUnavailable, e.Err}
}

// ComputationError reports a metric that failed while scoring a dataset.
type ComputationError struct {
	Metric string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("metric %s: computation failed: %v", e.Metric, e.Err)
}

func (e *ComputationError) Unwrap() []error {
	return []error{ErrComputation, e.Err}
}
