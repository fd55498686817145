package upd

import (
	"strings"

	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/securexml"
)

// Fingerprint classifies the generator of a parsed UPD tree. Match runs
// against the whole decoded document; predicates must be cheap and must not
// mutate the tree.
type Fingerprint struct {
	Tag   model.Generator
	Match func(doc *securexml.Document) bool
}

// Detector identifies which vendor tool produced a document by evaluating
// fingerprints in priority order. First match wins; no match yields
// GeneratorUnknown and extraction falls back to the generic rule set.
type Detector struct {
	fingerprints []Fingerprint
}

// NewDetector creates a detector with the built-in fingerprints.
// Order matters: vendor markers are checked before structural heuristics.
func NewDetector() *Detector {
	return &Detector{
		fingerprints: []Fingerprint{
			{Tag: model.Generator1C, Match: programMarker("1с:", "1c:", "1с предприятие")},
			{Tag: model.GeneratorSBIS, Match: programMarker("сбис", "тензор", "sbis")},
			{Tag: model.GeneratorDiadoc, Match: programMarker("диадок", "контур", "diadoc", "kontur")},
			{Tag: model.GeneratorAstral, Match: programMarker("астрал", "astral", "калуга")},
			// СБИС omits ВерсПрог in some versions but prefixes the file ID
			// with the sender's EDO operator code 2BE.
			{Tag: model.GeneratorSBIS, Match: fileIDPrefix("ON_NSCHFDOPPR_2BE")},
			{Tag: model.GeneratorDiadoc, Match: fileIDPrefix("ON_NSCHFDOPPR_2BM")},
		},
	}
}

// Detect returns the generator tag for the document, or GeneratorUnknown.
func (d *Detector) Detect(doc *securexml.Document) model.Generator {
	if doc == nil || doc.Root == nil {
		return model.GeneratorUnknown
	}
	for _, f := range d.fingerprints {
		if f.Match(doc) {
			return f.Tag
		}
	}
	return model.GeneratorUnknown
}

// RegisterFingerprint adds a custom fingerprint ahead of the built-ins.
func (d *Detector) RegisterFingerprint(f Fingerprint) {
	d.fingerprints = append([]Fingerprint{f}, d.fingerprints...)
}

// programMarker matches on the ВерсПрог attribute of the file envelope,
// the one place most generators identify themselves.
func programMarker(markers ...string) func(*securexml.Document) bool {
	return func(doc *securexml.Document) bool {
		prog, ok := doc.Root.Attr("ВерсПрог")
		if !ok {
			return false
		}
		prog = strings.ToLower(prog)
		for _, m := range markers {
			if strings.Contains(prog, m) {
				return true
			}
		}
		return false
	}
}

func fileIDPrefix(prefix string) func(*securexml.Document) bool {
	return func(doc *securexml.Document) bool {
		id, ok := doc.Root.Attr("ИдФайл")
		return ok && strings.HasPrefix(id, prefix)
	}
}
