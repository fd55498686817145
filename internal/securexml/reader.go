package securexml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/stroydoc/upd-processor/internal/model"
)

// Limits bound the resources a single parse may consume. Every input file
// is treated as hostile; exceeding any limit is a fatal SecurityError,
// never a partial result.
type Limits struct {
	MaxFileSize int64         // raw input bytes
	MaxDepth    int           // element nesting
	MaxElements int           // total elements in the tree
	MaxAttrs    int           // attributes per element
	MaxTextSize int64         // cumulative character data, decoded bytes
	ParseBudget time.Duration // wall-clock budget for tokenizing
}

// DefaultLimits are sized for real UPD files, which rarely exceed a few
// hundred kilobytes.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize: 10 << 20, // 10 MiB
		MaxDepth:    64,
		MaxElements: 100000,
		MaxAttrs:    64,
		MaxTextSize: 20 << 20,
		ParseBudget: 5 * time.Second,
	}
}

// Reader parses raw bytes into a Document under the security policy:
// DOCTYPE declarations are rejected outright, so no custom entities can be
// defined and external resolution is impossible by construction; all
// remaining work is bounded by Limits.
type Reader struct {
	limits Limits
}

// NewReader creates a reader with the given limits.
func NewReader(limits Limits) *Reader {
	return &Reader{limits: limits}
}

// NewDefaultReader creates a reader with DefaultLimits.
func NewDefaultReader() *Reader {
	return NewReader(DefaultLimits())
}

var encodingDeclRe = regexp.MustCompile(`(?i)encoding\s*=\s*["']([A-Za-z0-9._-]+)["']`)

// Parse decodes and parses data. It returns the tree or a fatal error:
// *model.SecurityError for policy violations, *model.ParseError for
// undecodable bytes or malformed XML.
func (r *Reader) Parse(data []byte) (*Document, error) {
	if int64(len(data)) > r.limits.MaxFileSize {
		return nil, model.NewSecurityError("max_file_size",
			fmt.Sprintf("file size %d exceeds limit %d", len(data), r.limits.MaxFileSize))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, model.NewParseError(model.GeneratorUnknown, "file", "empty input", nil)
	}

	text, enc, fallback, err := r.decode(data)
	if err != nil {
		return nil, err
	}

	root, err := r.buildTree(text)
	if err != nil {
		return nil, err
	}

	return &Document{Root: root, Encoding: enc, FallbackUsed: fallback}, nil
}

// decode resolves the byte encoding. Declared encoding wins; if it does not
// hold, the Cyrillic fallback ladder (windows-1251, then KOI8-R) is tried
// and the fallback flagged for the caller.
func (r *Reader) decode(data []byte) (text string, enc string, fallback bool, err error) {
	// BOM handling first: a UTF-16 BOM overrides any declaration.
	if len(data) >= 2 && (data[0] == 0xFE && data[1] == 0xFF || data[0] == 0xFF && data[1] == 0xFE) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, derr := dec.Bytes(data)
		if derr != nil {
			return "", "", false, model.NewParseError(model.GeneratorUnknown, "encoding", "undecodable UTF-16 input", derr)
		}
		return string(out), "utf-16", false, nil
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	declared := "utf-8"
	if m := encodingDeclRe.FindSubmatch(data[:min(len(data), 256)]); m != nil {
		declared = strings.ToLower(string(m[1]))
	}

	if cm := charmapFor(declared); cm != nil {
		out, ok := decodeCharmap(cm, data)
		if ok {
			return out, declared, false, nil
		}
	} else if declared == "utf-8" || declared == "utf8" {
		if utf8.Valid(data) {
			return string(data), "utf-8", false, nil
		}
	}
	// Declared encoding failed or is unsupported: fallback ladder.
	for _, fb := range []struct {
		name string
		cm   *charmap.Charmap
	}{
		{"windows-1251", charmap.Windows1251},
		{"koi8-r", charmap.KOI8R},
	} {
		if fb.name == declared {
			continue
		}
		if out, ok := decodeCharmap(fb.cm, data); ok {
			return out, fb.name, true, nil
		}
	}
	if declared != "utf-8" && declared != "utf8" && utf8.Valid(data) {
		// Mislabeled but actually valid UTF-8.
		return string(data), "utf-8", true, nil
	}
	return "", "", false, model.NewParseError(model.GeneratorUnknown, "encoding",
		fmt.Sprintf("cannot decode input: declared %q, all fallbacks failed", declared), nil)
}

func charmapFor(name string) *charmap.Charmap {
	switch name {
	case "windows-1251", "cp1251", "win-1251":
		return charmap.Windows1251
	case "koi8-r":
		return charmap.KOI8R
	case "cp866", "ibm866":
		return charmap.CodePage866
	case "iso-8859-5":
		return charmap.ISO8859_5
	default:
		return nil
	}
}

// decodeCharmap decodes bytes with a single-byte charmap and reports
// whether the result is clean: single-byte decoders never error, so a
// replacement rune is the only signal that a byte had no mapping.
func decodeCharmap(cm *charmap.Charmap, data []byte) (string, bool) {
	out, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// buildTree tokenizes already-decoded UTF-8 text into a Node tree under the
// depth/element/text/time budgets.
func (r *Reader) buildTree(text string) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	// Input was decoded before tokenizing; whatever the prolog claims, the
	// bytes handed to the decoder are UTF-8.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	deadline := time.Now().Add(r.limits.ParseBudget)

	var root *Node
	var stack []*Node
	elements := 0
	var textSize int64
	tokens := 0

	for {
		tokens++
		if tokens%256 == 0 && time.Now().After(deadline) {
			return nil, model.NewSecurityError("parse_budget",
				fmt.Sprintf("parse exceeded time budget of %s", r.limits.ParseBudget))
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, model.NewParseError(model.GeneratorUnknown, "xml", "malformed XML", err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			if isDoctype(t) {
				return nil, model.NewSecurityError("doctype",
					"DOCTYPE declarations are not allowed")
			}
		case xml.StartElement:
			elements++
			if elements > r.limits.MaxElements {
				return nil, model.NewSecurityError("max_elements",
					fmt.Sprintf("element count exceeds limit %d", r.limits.MaxElements))
			}
			if len(stack) >= r.limits.MaxDepth {
				return nil, model.NewSecurityError("max_depth",
					fmt.Sprintf("nesting depth exceeds limit %d", r.limits.MaxDepth))
			}
			if len(t.Attr) > r.limits.MaxAttrs {
				return nil, model.NewSecurityError("max_attrs",
					fmt.Sprintf("attribute count exceeds limit %d", r.limits.MaxAttrs))
			}
			n := &Node{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, model.NewParseError(model.GeneratorUnknown, "xml", "multiple root elements", nil)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, model.NewParseError(model.GeneratorUnknown, "xml", "unbalanced end element", nil)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			textSize += int64(len(t))
			if textSize > r.limits.MaxTextSize {
				return nil, model.NewSecurityError("max_text_size",
					fmt.Sprintf("character data exceeds limit %d", r.limits.MaxTextSize))
			}
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, model.NewParseError(model.GeneratorUnknown, "xml", "no root element", nil)
	}
	if len(stack) != 0 {
		return nil, model.NewParseError(model.GeneratorUnknown, "xml", "unclosed elements", nil)
	}
	return root, nil
}

func isDoctype(d xml.Directive) bool {
	s := strings.TrimSpace(string(d))
	return len(s) >= 7 && strings.EqualFold(s[:7], "DOCTYPE")
}
