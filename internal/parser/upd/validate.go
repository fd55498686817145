package upd

import (
	"fmt"

	"github.com/shopspring/decimal"

	money "github.com/stroydoc/upd-processor/internal/decimal"
	"github.com/stroydoc/upd-processor/internal/model"
)

// ValidateConsistency cross-checks the arithmetic invariants of an
// extracted document and returns warning issues for every mismatch beyond
// the kopeck tolerance. It never recomputes or corrects values: a declared
// total that disagrees with price times quantity may be deliberate
// tampering, and flagging is the only safe response. Ingestion proceeds
// regardless; downstream consumers decide what to do with the flags.
func ValidateConsistency(doc *model.Document) []model.ParsingIssue {
	var issues []model.ParsingIssue
	add := func(element, message, raw string) {
		issue := model.NewIssue(model.SeverityWarning, element, message).WithRaw(raw)
		issue.Generator = doc.Generator
		issues = append(issues, issue)
	}

	var sumAmount, sumVAT, sumTotal decimal.Decimal
	for _, item := range doc.Items {
		expected := money.Mul(item.UnitPrice, item.Quantity)
		if !money.ApproxEqual(expected, item.Amount) {
			add(fieldItemAmount,
				fmt.Sprintf("line %d: price*quantity %s does not match line amount %s",
					item.Position, expected, item.Amount),
				item.Amount.String())
		}
		withVAT := item.Amount.Add(item.VATAmount)
		if !money.ApproxEqual(withVAT, item.TotalWithVAT) {
			add(fieldItemTotal,
				fmt.Sprintf("line %d: amount+VAT %s does not match line total %s",
					item.Position, withVAT, item.TotalWithVAT),
				item.TotalWithVAT.String())
		}
		if !item.VATPercent.IsZero() && !item.Amount.IsZero() {
			expectedVAT := money.VATFromRate(item.Amount, item.VATPercent)
			if !money.ApproxEqual(expectedVAT, item.VATAmount) {
				add(fieldItemVATAmount,
					fmt.Sprintf("line %d: VAT %s differs from %s%% of amount (%s)",
						item.Position, item.VATAmount, item.VATPercent, expectedVAT),
					item.VATAmount.String())
			}
		}
		sumAmount = sumAmount.Add(item.Amount)
		sumVAT = sumVAT.Add(item.VATAmount)
		sumTotal = sumTotal.Add(item.TotalWithVAT)
	}

	if !money.ApproxEqual(sumAmount, doc.Amount) {
		add(fieldTotalAmount,
			fmt.Sprintf("sum of line amounts %s does not match declared total %s", sumAmount, doc.Amount),
			doc.Amount.String())
	}
	if !money.ApproxEqual(sumVAT, doc.VATAmount) {
		add(fieldTotalVAT,
			fmt.Sprintf("sum of line VAT %s does not match declared VAT total %s", sumVAT, doc.VATAmount),
			doc.VATAmount.String())
	}
	if !money.ApproxEqual(sumTotal, doc.AmountWithVAT) {
		add(fieldTotalWithVAT,
			fmt.Sprintf("sum of line totals %s does not match declared total with VAT %s", sumTotal, doc.AmountWithVAT),
			doc.AmountWithVAT.String())
	}

	return issues
}
