package upd

import (
	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/securexml"
)

// Parser runs the full extraction pipeline for one document:
// secure read -> dialect detection -> field extraction -> consistency
// validation. A Parser is stateless and safe for concurrent use; each
// parse is an independent, budget-bounded computation.
type Parser struct {
	reader   *securexml.Reader
	detector *Detector
}

// NewParser creates a parser with default security limits.
func NewParser() *Parser {
	return NewParserWithLimits(securexml.DefaultLimits())
}

// NewParserWithLimits creates a parser with custom security limits.
func NewParserWithLimits(limits securexml.Limits) *Parser {
	return &Parser{
		reader:   securexml.NewReader(limits),
		detector: NewDetector(),
	}
}

// Detector exposes the dialect detector for fingerprint registration.
func (p *Parser) Detector() *Detector {
	return p.detector
}

// Parse turns raw bytes into a Document with its ordered issue list, or a
// fatal error (*model.SecurityError or *model.ParseError). Non-fatal
// anomalies never surface as errors; they are accumulated on the document.
func (p *Parser) Parse(data []byte) (*model.Document, error) {
	tree, err := p.reader.Parse(data)
	if err != nil {
		return nil, err
	}

	generator := p.detector.Detect(tree)

	extractor := NewExtractor(generator)
	doc, issues, err := extractor.Extract(tree)
	if err != nil {
		return nil, err
	}

	if tree.FallbackUsed {
		issue := model.NewIssue(model.SeverityWarning, "encoding",
			"declared encoding did not hold, decoded as "+tree.Encoding)
		issue.Generator = generator
		issues = append([]model.ParsingIssue{issue}, issues...)
	}

	issues = append(issues, ValidateConsistency(doc)...)

	for i := range issues {
		issues[i].Position = i
	}
	doc.Issues = issues
	return doc, nil
}
