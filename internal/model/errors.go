package model

import "fmt"

// SecurityError represents a rejected input that violated the parser
// security policy (DOCTYPE, oversized file, exceeded parse budget).
// Security errors are always fatal and never carry partial results.
type SecurityError struct {
	Rule    string
	Message string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation [%s]: %s", e.Rule, e.Message)
}

// NewSecurityError creates a new security error.
func NewSecurityError(rule, message string) *SecurityError {
	return &SecurityError{Rule: rule, Message: message}
}

// ParseError represents a fatal structural parse failure with generator
// context. Recoverable anomalies are ParsingIssues, not errors.
type ParseError struct {
	Generator Generator
	Element   string
	Message   string
	Cause     error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Generator, e.Element, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Generator, e.Element, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error.
func NewParseError(generator Generator, element, message string, cause error) *ParseError {
	return &ParseError{
		Generator: generator,
		Element:   element,
		Message:   message,
		Cause:     cause,
	}
}

// ValidationError represents a rejected request (bad transition, malformed
// instruction) outside the distribution conservation rules.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Distribution rejection reasons.
const (
	DistributionReasonUnknownItem    = "unknown_line_item"
	DistributionReasonOverAllocation = "over_allocation"
	DistributionReasonNegativeValue  = "negative_value"
	DistributionReasonDuplicateSet   = "duplicate_instruction_set"
	DistributionReasonBadStatus      = "document_not_distributable"
	DistributionReasonEmptySet       = "empty_instruction_set"
)

// DistributionError rejects an allocation request with a precise reason.
// No partial distribution is ever committed alongside one.
type DistributionError struct {
	Reason  string
	Message string
}

func (e *DistributionError) Error() string {
	return fmt.Sprintf("distribution rejected [%s]: %s", e.Reason, e.Message)
}

// NewDistributionError creates a new distribution error.
func NewDistributionError(reason, message string) *DistributionError {
	return &DistributionError{Reason: reason, Message: message}
}
