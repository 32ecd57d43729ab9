package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError describes a single failed configuration check.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for field %q: %s", e.Field, e.Message)
}

// Validator accumulates configuration checks so callers can report every
// problem at once instead of failing on the first.
type Validator struct {
	errors []ValidationError
}

// NewValidator returns an empty validator.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) fail(field, format string, args ...any) *Validator {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
	return v
}

// RequireNonEmpty checks that a string field is set.
func (v *Validator) RequireNonEmpty(field, value string) *Validator {
	if value == "" {
		return v.fail(field, "value cannot be empty")
	}
	return v
}

// RequirePositive checks that an integer field is greater than zero.
func (v *Validator) RequirePositive(field string, value int) *Validator {
	if value <= 0 {
		return v.fail(field, "value must be positive, got %d", value)
	}
	return v
}

// ValidateRange checks that an integer field lies in [min, max].
func (v *Validator) ValidateRange(field string, value, min, max int) *Validator {
	if value < min || value > max {
		return v.fail(field, "value must be between %d and %d, got %d", min, max, value)
	}
	return v
}

// ValidateFloatRange checks that a float field lies in [min, max].
func (v *Validator) ValidateFloatRange(field string, value, min, max float64) *Validator {
	if value < min || value > max {
		return v.fail(field, "value must be between %.2f and %.2f, got %.2f", min, max, value)
	}
	return v
}

// ValidatePort checks that a port number is in 1-65535.
func (v *Validator) ValidatePort(field string, port int) *Validator {
	return v.ValidateRange(field, port, 1, 65535)
}

// ValidateDBNumber checks a Redis database number (0-15).
func (v *Validator) ValidateDBNumber(field string, db int) *Validator {
	return v.ValidateRange(field, db, 0, 15)
}

// ValidateOneOf checks that a string value is one of the allowed options.
func (v *Validator) ValidateOneOf(field string, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if a == value {
			return v
		}
	}
	return v.fail(field, "value must be one of %v, got %q", allowed, value)
}

// ValidateMinLength checks that a string field has a minimum length.
func (v *Validator) ValidateMinLength(field string, value string, minLen int) *Validator {
	if len(value) < minLen {
		return v.fail(field, "value must be at least %d characters long, got %d", minLen, len(value))
	}
	return v
}

// HasErrors reports whether any check failed.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error folds every failed check into one error, or nil if all passed.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}

	var b strings.Builder
	b.WriteString("configuration validation failed:\n")
	for _, e := range v.errors {
		fmt.Fprintf(&b, "  - %s: %s\n", e.Field, e.Message)
	}
	return errors.New(b.String())
}

// Errors returns the individual failed checks.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ValidatePostgresConfig checks the settings for the Postgres thread store.
func ValidatePostgresConfig(host string, port int, user string, password string, dbName string, sslMode string) error {
	return NewValidator().
		RequireNonEmpty("host", host).
		ValidatePort("port", port).
		RequireNonEmpty("user", user).
		RequireNonEmpty("password", password).
		RequireNonEmpty("dbName", dbName).
		ValidateOneOf("sslMode", sslMode, "disable", "require", "verify-ca", "verify-full").
		Error()
}

// ValidateRedisConfig checks the settings for the Redis thread store.
func ValidateRedisConfig(addr string, db int, prefix string) error {
	return NewValidator().
		RequireNonEmpty("addr", addr).
		ValidateDBNumber("db", db).
		RequireNonEmpty("prefix", prefix).
		Error()
}

// ValidateMongoDBConfig checks the settings for the MongoDB thread store.
func ValidateMongoDBConfig(uri string, database string, collection string) error {
	return NewValidator().
		RequireNonEmpty("uri", uri).
		RequireNonEmpty("database", database).
		RequireNonEmpty("collection", collection).
		Error()
}

// ValidateOrchestratorConfig checks the routing and memory bounds of an
// orchestrator deployment.
func ValidateOrchestratorConfig(maxHops int, window int, maxMessages int) error {
	v := NewValidator().
		RequirePositive("maxHops", maxHops).
		RequirePositive("window", window).
		RequirePositive("maxMessages", maxMessages)
	if maxMessages > 0 && window > 0 && maxMessages < window {
		v.fail("maxMessages", "transcript cap %d cannot be below the turn window %d", maxMessages, window)
	}
	return v.Error()
}

// ValidateAgentSpec checks the configuration of a single role agent.
func ValidateAgentSpec(name string, systemPrompt string, maxIterations int, temperature float64) error {
	return NewValidator().
		RequireNonEmpty("name", name).
		RequireNonEmpty("systemPrompt", systemPrompt).
		RequirePositive("maxIterations", maxIterations).
		ValidateFloatRange("temperature", temperature, 0.0, 2.0).
		Error()
}

// ValidateLLMConfig checks an LLM provider's generation settings.
func ValidateLLMConfig(apiKey string, model string, temperature float64, maxTokens int) error {
	return NewValidator().
		RequireNonEmpty("apiKey", apiKey).
		RequireNonEmpty("model", model).
		ValidateFloatRange("temperature", temperature, 0.0, 2.0).
		RequirePositive("maxTokens", maxTokens).
		Error()
}

// ValidateRunnerConfig checks the concurrent runner settings.
func ValidateRunnerConfig(maxConcurrency int) error {
	return NewValidator().RequirePositive("maxConcurrency", maxConcurrency).Error()
}

// ValidateRateLimiterConfig checks the rate limiter settings.
func ValidateRateLimiterConfig(maxRequests int) error {
	return NewValidator().RequirePositive("maxRequests", maxRequests).Error()
}
