package upd

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	money "github.com/stroydoc/upd-processor/internal/decimal"
	"github.com/stroydoc/upd-processor/internal/model"
	"github.com/stroydoc/upd-processor/internal/securexml"
)

// Extractor walks a parsed tree with the rule set for a detected generator
// and produces a partially or fully populated Document plus the ordered
// issue list. It never fails on recoverable anomalies: a missing mandatory
// field is an error-severity issue and extraction continues, so the caller
// always sees the complete picture. The only fatal outcomes are a missing
// document envelope, zero extractable line items, and absent document
// totals.
type Extractor struct {
	rules     ruleSet
	generator model.Generator
	issues    []model.ParsingIssue
}

// NewExtractor creates an extractor for the given generator tag.
func NewExtractor(generator model.Generator) *Extractor {
	return &Extractor{
		rules:     rulesFor(generator),
		generator: generator,
	}
}

// Extract builds a Document from the tree. The returned issue slice is
// owned by the caller; the extractor must not be reused.
func (e *Extractor) Extract(doc *securexml.Document) (*model.Document, []model.ParsingIssue, error) {
	docNode := doc.Root.First("Документ")
	if docNode == nil {
		return nil, nil, model.NewParseError(e.generator, "Документ", "document envelope not found", nil)
	}

	result := &model.Document{
		Generator: e.generator,
		Status:    model.StatusNew,
	}
	if v, ok := doc.Root.Attr("ВерсФорм"); ok {
		result.FormatVersion = v
	}

	result.Number = e.stringField(docNode, fieldNumber, true)
	result.Date = e.dateField(docNode, fieldDate)
	result.SupplierINN = e.stringField(docNode, fieldSupplierINN, true)
	result.SupplierName = e.stringField(docNode, fieldSupplierName, false)
	result.BuyerINN = e.stringField(docNode, fieldBuyerINN, false)
	result.BuyerName = e.stringField(docNode, fieldBuyerName, false)

	var amountOK, totalOK bool
	result.Amount, amountOK = e.decimalField(docNode, fieldTotalAmount, e.rules.document, true)
	result.VATAmount, _ = e.decimalField(docNode, fieldTotalVAT, e.rules.document, false)
	result.AmountWithVAT, totalOK = e.decimalField(docNode, fieldTotalWithVAT, e.rules.document, true)

	items, err := e.extractItems(docNode)
	if err != nil {
		return nil, nil, err
	}
	result.Items = items

	// Without declared totals the consistency checks have nothing to hold
	// the line items against; the document is structurally unusable. The
	// check runs last so every other anomaly is still collected first.
	if !amountOK || !totalOK {
		return nil, nil, model.NewParseError(e.generator, "ВсегоОпл",
			"mandatory document totals missing", nil)
	}

	return result, e.issues, nil
}

func (e *Extractor) extractItems(docNode *securexml.Node) ([]model.LineItem, error) {
	table := docNode.First("ТаблСчФакт")
	if table == nil {
		return nil, model.NewParseError(e.generator, "ТаблСчФакт", "item table not found", nil)
	}

	var rows []*securexml.Node
	for _, c := range table.Children {
		if c.Name == "СведТов" {
			rows = append(rows, c)
		}
	}
	if len(rows) == 0 {
		// A document with no content is not actionable.
		return nil, model.NewParseError(e.generator, "СведТов", "no line items extracted", nil)
	}

	items := make([]model.LineItem, 0, len(rows))
	for i, row := range rows {
		items = append(items, e.extractItem(row, i+1))
	}
	return items, nil
}

func (e *Extractor) extractItem(row *securexml.Node, position int) model.LineItem {
	item := model.LineItem{Position: position}

	if v, _, ok := e.resolve(row, e.rules.item[fieldItemName]); ok {
		item.Name = v
	} else {
		e.addIssue(model.SeverityError, fieldItemName,
			fmt.Sprintf("line %d: product name missing", position))
	}
	if v, _, ok := e.resolve(row, e.rules.item[fieldItemUnit]); ok {
		item.Unit = v
	}
	if v, _, ok := e.resolve(row, e.rules.item[fieldItemCode]); ok {
		item.Code = v
	}

	item.Quantity = e.itemDecimal(row, fieldItemQuantity, position, true)
	item.UnitPrice = e.itemDecimal(row, fieldItemPrice, position, true)
	item.Amount = e.itemDecimal(row, fieldItemAmount, position, true)
	item.VATAmount = e.itemDecimal(row, fieldItemVATAmount, position, false)
	item.TotalWithVAT = e.itemDecimal(row, fieldItemTotal, position, true)

	if raw, _, ok := e.resolve(row, e.rules.item[fieldItemVATRate]); ok {
		item.VATRate = raw
		percent, perr := parseVATRate(raw)
		if perr != nil {
			e.addIssueRaw(model.SeverityWarning, fieldItemVATRate,
				fmt.Sprintf("line %d: unrecognized VAT rate", position), raw)
		} else {
			item.VATPercent = percent
		}
	} else {
		e.addIssue(model.SeverityWarning, fieldItemVATRate,
			fmt.Sprintf("line %d: VAT rate missing", position))
	}

	if !item.Quantity.IsPositive() {
		e.addIssue(model.SeverityWarning, fieldItemQuantity,
			fmt.Sprintf("line %d: quantity is not positive", position))
	}

	return item
}

// resolve tries the candidate locators in order against the context node
// and returns the first non-empty value along with the matched candidate
// index.
func (e *Extractor) resolve(ctx *securexml.Node, candidates []locator) (string, int, bool) {
	for i, loc := range candidates {
		var v string
		if loc.attr != "" {
			n := ctx
			if len(loc.path) > 0 {
				n = ctx.Find(loc.path...)
			}
			if n == nil {
				continue
			}
			v, _ = n.Attr(loc.attr)
		} else {
			n := ctx.Find(loc.path...)
			if n == nil {
				continue
			}
			v = n.Text()
		}
		v = strings.TrimSpace(v)
		if v != "" {
			return v, i, true
		}
	}
	return "", -1, false
}

func (e *Extractor) stringField(ctx *securexml.Node, field string, mandatory bool) string {
	v, idx, ok := e.resolve(ctx, e.rules.document[field])
	if !ok {
		if mandatory {
			e.addIssue(model.SeverityError, field, "mandatory field not found in any known location")
		}
		return ""
	}
	if idx > 0 {
		e.addIssue(model.SeverityInfo, field,
			fmt.Sprintf("resolved via fallback candidate %d", idx+1))
	}
	return v
}

func (e *Extractor) dateField(ctx *securexml.Node, field string) time.Time {
	raw, idx, ok := e.resolve(ctx, e.rules.document[field])
	if !ok {
		e.addIssue(model.SeverityError, field, "document date not found")
		return time.Time{}
	}
	if idx > 0 {
		e.addIssue(model.SeverityInfo, field,
			fmt.Sprintf("resolved via fallback candidate %d", idx+1))
	}
	t, err := parseDate(raw)
	if err != nil {
		e.addIssueRaw(model.SeverityError, field, "unparseable document date", raw)
		return time.Time{}
	}
	return t
}

func (e *Extractor) decimalField(ctx *securexml.Node, field string, rules map[string][]locator, mandatory bool) (decimal.Decimal, bool) {
	raw, idx, ok := e.resolve(ctx, rules[field])
	if !ok {
		if mandatory {
			e.addIssue(model.SeverityError, field, "mandatory amount not found in any known location")
		}
		return decimal.Zero, false
	}
	if idx > 0 {
		e.addIssue(model.SeverityInfo, field,
			fmt.Sprintf("resolved via fallback candidate %d", idx+1))
	}
	d, err := money.ParseRussian(raw)
	if err != nil {
		e.addIssueRaw(model.SeverityError, field, "unparseable amount", raw)
		return decimal.Zero, false
	}
	return d, true
}

func (e *Extractor) itemDecimal(row *securexml.Node, field string, position int, mandatory bool) decimal.Decimal {
	raw, _, ok := e.resolve(row, e.rules.item[field])
	if !ok {
		if mandatory {
			e.addIssue(model.SeverityError, field,
				fmt.Sprintf("line %d: mandatory value missing", position))
		}
		return decimal.Zero
	}
	d, err := money.ParseRussian(raw)
	if err != nil {
		e.addIssueRaw(model.SeverityError, field,
			fmt.Sprintf("line %d: unparseable value", position), raw)
		return decimal.Zero
	}
	return d
}

func (e *Extractor) addIssue(severity model.Severity, element, message string) {
	issue := model.NewIssue(severity, element, message)
	issue.Generator = e.generator
	e.issues = append(e.issues, issue)
}

func (e *Extractor) addIssueRaw(severity model.Severity, element, message, raw string) {
	issue := model.NewIssue(severity, element, message).WithRaw(raw)
	issue.Generator = e.generator
	e.issues = append(e.issues, issue)
}

// parseDate accepts the date forms seen across generators.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"02.01.2006", "2006-01-02", "02/01/2006", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", s)
}

// parseVATRate normalizes the VAT rate forms generators emit: "20%", "20",
// "10/110" (settlement rate) and the textual "без НДС" (no VAT).
func parseVATRate(s string) (decimal.Decimal, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return decimal.Zero, fmt.Errorf("empty VAT rate")
	}
	if strings.Contains(v, "без ндс") || strings.Contains(v, "без налога") {
		return decimal.Zero, nil
	}
	if i := strings.IndexByte(v, '/'); i > 0 {
		v = v[:i]
	}
	v = strings.TrimSuffix(strings.TrimSpace(v), "%")
	return money.ParseRussian(v)
}
