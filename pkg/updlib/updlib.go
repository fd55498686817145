// Package updlib provides a public API for parsing Universal Transfer
// Document (УПД) XML files.
//
// It exposes the core types and the offline parsing pipeline: secure
// decoding, generator dialect detection, field extraction and arithmetic
// consistency checks. Persistence and distribution live behind the HTTP
// service and are not part of this package.
//
// Example usage:
//
//	parser := updlib.NewParser()
//	doc, err := parser.Parse(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(doc.Number, doc.AmountWithVAT)
package updlib

import (
	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/parser/upd"
	"github.com/stroydoc/upd-processor/internal/securexml"
)

// Re-export core types for public API
type (
	Document          = model.Document
	LineItem          = model.LineItem
	ParsingIssue      = model.ParsingIssue
	DistributionEntry = model.DistributionEntry
	Generator         = model.Generator
	Severity          = model.Severity
	DocumentStatus    = model.DocumentStatus
)

// Re-export generator constants
const (
	Generator1C      = model.Generator1C
	GeneratorSBIS    = model.GeneratorSBIS
	GeneratorDiadoc  = model.GeneratorDiadoc
	GeneratorAstral  = model.GeneratorAstral
	GeneratorUnknown = model.GeneratorUnknown
)

// Re-export severities
const (
	SeverityInfo    = model.SeverityInfo
	SeverityWarning = model.SeverityWarning
	SeverityError   = model.SeverityError
)

// Re-export document statuses
const (
	StatusNew         = model.StatusNew
	StatusDistributed = model.StatusDistributed
	StatusArchived    = model.StatusArchived
	StatusDuplicate   = model.StatusDuplicate
)

// Re-export error types
type (
	SecurityError     = model.SecurityError
	ParseError        = model.ParseError
	ValidationError   = model.ValidationError
	DistributionError = model.DistributionError
)

// Parser is the offline UPD parsing pipeline.
type Parser = upd.Parser

// Limits bound the resources a single parse may consume.
type Limits = securexml.Limits

// NewParser creates a parser with default security limits.
func NewParser() *Parser {
	return upd.NewParser()
}

// NewParserWithLimits creates a parser with custom security limits.
func NewParserWithLimits(limits Limits) *Parser {
	return upd.NewParserWithLimits(limits)
}

// DefaultLimits returns the default parse budgets.
func DefaultLimits() Limits {
	return securexml.DefaultLimits()
}
