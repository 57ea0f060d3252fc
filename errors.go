package mtdetect

import "github.com/datar-psa/mtdetect/api"

var (
	// ErrNoExpectedValue is returned when an expected value is required but not provided
	ErrNoExpectedValue = api.ErrNoExpectedValue
	// ErrLLMGenerationFailed is returned when LLM generation fails
	ErrLLMGenerationFailed = api.ErrLLMGenerationFailed
	ErrConfiguration       = api.ErrConfiguration
	ErrMissingColumn       = api.ErrMissingColumn
	ErrMetricUnavailable   = api.ErrMetricUnavailable
	ErrComputation         = api.ErrComputation
)

type (
	ConfigurationError     = api.ConfigurationError
	MetricUnavailableError = api.MetricUnavailableError
	ComputationError       = api.ComputationError
	MissingColumnError     = api.MissingColumnError
)
