package upd

import "github.com/stroydoc/upd-processor/internal/model"

// locator names one place a logical field may live: an element path
// relative to the context node, plus an optional attribute. An empty attr
// means the element's own text.
type locator struct {
	path []string
	attr string
}

func at(attr string, path ...string) locator { return locator{path: path, attr: attr} }
func text(path ...string) locator            { return locator{path: path} }

// Logical field names. These identify extraction targets, not XML names;
// the XML-level variance lives in the candidate lists.
const (
	fieldNumber        = "number"
	fieldDate          = "date"
	fieldVersion       = "format_version"
	fieldSupplierINN   = "supplier_inn"
	fieldSupplierName  = "supplier_name"
	fieldBuyerINN      = "buyer_inn"
	fieldBuyerName     = "buyer_name"
	fieldTotalAmount   = "total_amount"
	fieldTotalVAT      = "total_vat"
	fieldTotalWithVAT  = "total_with_vat"
	fieldItemName      = "item_name"
	fieldItemQuantity  = "item_quantity"
	fieldItemUnit      = "item_unit"
	fieldItemPrice     = "item_price"
	fieldItemAmount    = "item_amount"
	fieldItemVATRate   = "item_vat_rate"
	fieldItemVATAmount = "item_vat_amount"
	fieldItemTotal     = "item_total"
	fieldItemCode      = "item_code"
)

// ruleSet holds the ordered candidate lists per logical field, split by
// context: document-level rules resolve against the Документ node,
// item-level rules against each СведТов row.
type ruleSet struct {
	document map[string][]locator
	item     map[string][]locator
}

// merged returns base rules with the override's candidate lists substituted
// where present. Overrides replace the whole list for a field so a dialect
// can also reorder candidates.
func (r ruleSet) merged(o ruleSet) ruleSet {
	out := ruleSet{
		document: make(map[string][]locator, len(r.document)),
		item:     make(map[string][]locator, len(r.item)),
	}
	for k, v := range r.document {
		out.document[k] = v
	}
	for k, v := range r.item {
		out.item[k] = v
	}
	for k, v := range o.document {
		out.document[k] = v
	}
	for k, v := range o.item {
		out.item[k] = v
	}
	return out
}

// baseRules cover the official ФНС layout plus the fallbacks shared by
// most generators. Candidates are tried in order; the first present wins.
var baseRules = ruleSet{
	document: map[string][]locator{
		fieldNumber: {
			at("НомерСчФ", "СвСчФакт"),
			at("НомерДок", "СвСчФакт"),
			text("СвСчФакт", "НомерСчФ"),
		},
		fieldDate: {
			at("ДатаСчФ", "СвСчФакт"),
			at("ДатаДок", "СвСчФакт"),
			text("СвСчФакт", "ДатаСчФ"),
		},
		fieldSupplierINN: {
			at("ИННЮЛ", "СвСчФакт", "СвПрод", "ИдСв", "СвЮЛУч"),
			at("ИННФЛ", "СвСчФакт", "СвПрод", "ИдСв", "СвИП"),
			at("ИННЮЛ", "СвПрод", "ИдСв", "СвЮЛУч"),
		},
		fieldSupplierName: {
			at("НаимОрг", "СвСчФакт", "СвПрод", "ИдСв", "СвЮЛУч"),
			at("НаимОрг", "СвПрод", "ИдСв", "СвЮЛУч"),
			at("Фамилия", "СвСчФакт", "СвПрод", "ИдСв", "СвИП", "ФИО"),
		},
		fieldBuyerINN: {
			at("ИННЮЛ", "СвСчФакт", "СвПокуп", "ИдСв", "СвЮЛУч"),
			at("ИННФЛ", "СвСчФакт", "СвПокуп", "ИдСв", "СвИП"),
		},
		fieldBuyerName: {
			at("НаимОрг", "СвСчФакт", "СвПокуп", "ИдСв", "СвЮЛУч"),
		},
		fieldTotalAmount: {
			at("СтТовБезНДСВсего", "ТаблСчФакт", "ВсегоОпл"),
			text("ТаблСчФакт", "ВсегоОпл", "СтТовБезНДСВсего"),
		},
		fieldTotalVAT: {
			text("ТаблСчФакт", "ВсегоОпл", "СумНалВсего", "СумНал"),
			at("СумНалВсего", "ТаблСчФакт", "ВсегоОпл"),
			text("ТаблСчФакт", "ВсегоОпл", "СумНалВсего"),
		},
		fieldTotalWithVAT: {
			at("СтТовУчНалВсего", "ТаблСчФакт", "ВсегоОпл"),
			text("ТаблСчФакт", "ВсегоОпл", "СтТовУчНалВсего"),
		},
	},
	item: map[string][]locator{
		fieldItemName: {
			at("НаимТов"),
			text("НаимТов"),
		},
		fieldItemQuantity: {
			at("КолТов"),
			at("Количество"),
			text("КолТов"),
		},
		fieldItemUnit: {
			at("НаимЕдИзм"),
			at("ОКЕИ_Тов"),
			at("ОкеиТов"),
			text("ЕдИзм"),
		},
		fieldItemPrice: {
			at("ЦенаТов"),
			at("Цена"),
			text("ЦенаТов"),
		},
		fieldItemAmount: {
			at("СтТовБезНДС"),
			text("СтТовБезНДС"),
		},
		fieldItemVATRate: {
			at("НалСт"),
			text("НалСт"),
			at("СтавкаНДС"),
		},
		fieldItemVATAmount: {
			text("СумНал", "СумНал"),
			at("СумНал"),
			text("СумНал"),
		},
		fieldItemTotal: {
			at("СтТовУчНал"),
			text("СтТовУчНал"),
		},
		fieldItemCode: {
			at("КодТов"),
			at("АртикулТов"),
			text("ДопСведТов", "КодТов"),
		},
	},
}

// generatorRules carry the known per-vendor deviations from baseRules.
// An absent generator means the base rules apply unchanged.
var generatorRules = map[model.Generator]ruleSet{
	// СБИС emits quantity and unit under its legacy names first.
	model.GeneratorSBIS: {
		item: map[string][]locator{
			fieldItemQuantity: {
				at("Количество"),
				at("КолТов"),
				text("КолТов"),
			},
			fieldItemUnit: {
				at("ОКЕИ_Тов"),
				at("НаимЕдИзм"),
				text("ЕдИзм"),
			},
		},
	},
	// Диадок favours the УПД-2 ДОП naming for number and date.
	model.GeneratorDiadoc: {
		document: map[string][]locator{
			fieldNumber: {
				at("НомерДок", "СвСчФакт"),
				at("НомерСчФ", "СвСчФакт"),
			},
			fieldDate: {
				at("ДатаДок", "СвСчФакт"),
				at("ДатаСчФ", "СвСчФакт"),
			},
		},
	},
	// Астрал writes per-line VAT as an attribute, not the nested element.
	model.GeneratorAstral: {
		item: map[string][]locator{
			fieldItemVATAmount: {
				at("СумНал"),
				text("СумНал", "СумНал"),
				text("СумНал"),
			},
		},
	},
}

// rulesFor resolves the effective rule set for a generator.
func rulesFor(g model.Generator) ruleSet {
	if o, ok := generatorRules[g]; ok {
		return baseRules.merged(o)
	}
	return baseRules
}
