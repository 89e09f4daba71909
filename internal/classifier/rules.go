// Package classifier decides whether a chat message describes a transaction
// and extracts its type, amount and category.
package classifier

import (
	"regexp"
	"strings"

	"github.com/nanmax/wa-finance-bot-sub000/internal/core"
)

// amountPattern captures either a dot-grouped number ("5.000.000") or a plain
// run of digits. The grouped form is tried first so "1.500" is not cut at the dot.
const amountPattern = `(\d{1,3}(?:\.\d{3})+|\d+)`

// Rule is one entry of the ordered rule list: the transaction kind it
// produces, the fixed category it assigns and its matchers. Pattern reads a
// keyword followed by an amount. AmountFirst, when set, reads an amount
// followed by a keyword and is only consulted after every Pattern of the same
// kind has failed, so a quantity ahead of a keyword ("beli 2 kopi 30000")
// never wins over the amount after it.
type Rule struct {
	Kind        core.TransactionType
	Category    string
	Pattern     *regexp.Regexp
	AmountFirst *regexp.Regexp
}

// keywordRule matches its keywords anywhere in the message. Spaces inside a
// keyword match any whitespace run.
func keywordRule(kind core.TransactionType, category string, keywords ...string) Rule {
	alts := make([]string, len(keywords))
	for i, k := range keywords {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(k), " ", `\s+`)
	}
	kw := `\b(?:` + strings.Join(alts, "|") + `)\b`
	return Rule{
		Kind:     kind,
		Category: category,
		Pattern:     regexp.MustCompile(`(?i)` + kw + `.*?` + amountPattern),
		AmountFirst: regexp.MustCompile(`(?i)` + amountPattern + `.*?` + kw),
	}
}

// DefaultRules returns the rule list in evaluation order: all income rules,
// then all expense rules. Inside each kind, specific rules come before the
// catch-alls that would otherwise steal their matches:
//   - "Gaji" before "Pemasukan Lain", so "terima gaji 5.000.000" is a salary.
//   - "Tagihan Listrik", "Tagihan Air" and "Tempat Tinggal" before the generic
//     "Tagihan", so "bayar tagihan listrik 350.000" keeps its utility category.
//   - "Food & Beverage" before "Belanja", so "beli makan 20000" is food.
//   - "Pengeluaran Lain" is last and only fires on generic spending words.
func DefaultRules() []Rule {
	return []Rule{
		keywordRule(core.Income, "Gaji", "gaji", "gajian", "salary", "payroll", "upah"),
		keywordRule(core.Income, "Bonus", "bonus", "thr", "insentif", "komisi"),
		keywordRule(core.Income, "Freelance", "freelance", "proyek", "project", "honor", "fee"),
		keywordRule(core.Income, "Investasi", "dividen", "bunga", "investasi", "saham", "reksadana", "profit", "cuan"),
		keywordRule(core.Income, "Penjualan", "jual", "jualan", "penjualan", "terjual", "omzet", "omset"),
		keywordRule(core.Income, "Hadiah", "hadiah", "kado", "angpao", "angpau"),
		keywordRule(core.Income, "Pemasukan Lain", "terima", "diterima", "dapat", "dapet", "masuk", "pemasukan", "income"),

		keywordRule(core.Expense, "Tagihan Listrik", "tagihan listrik", "token listrik", "listrik", "pln"),
		keywordRule(core.Expense, "Tagihan Air", "tagihan air", "pdam"),
		keywordRule(core.Expense, "Internet & Pulsa", "internet", "wifi", "indihome", "pulsa", "paket data", "kuota"),
		keywordRule(core.Expense, "Food & Beverage", "makan", "makanan", "jajan", "jajanan", "minum", "minuman", "kopi", "ngopi",
			"snack", "sarapan", "lunch", "dinner", "gofood", "grabfood", "resto", "restoran", "warteg", "bakso", "nasi"),
		keywordRule(core.Expense, "Transportasi", "bensin", "bbm", "pertalite", "pertamax", "ojek", "ojol", "grab", "gojek",
			"taksi", "taxi", "parkir", "tol", "busway", "krl", "kereta", "tiket pesawat"),
		keywordRule(core.Expense, "Kesehatan", "obat", "dokter", "apotek", "rumah sakit", "klinik", "vitamin"),
		keywordRule(core.Expense, "Pendidikan", "sekolah", "kuliah", "kursus", "spp", "les", "buku"),
		keywordRule(core.Expense, "Hiburan", "nonton", "bioskop", "netflix", "spotify", "game", "liburan", "wisata"),
		keywordRule(core.Expense, "Tempat Tinggal", "sewa", "kos", "kost", "kontrakan", "cicilan rumah"),
		keywordRule(core.Expense, "Belanja", "belanja", "beli", "shopping", "shopee", "tokopedia", "indomaret", "alfamart", "baju"),
		keywordRule(core.Expense, "Tagihan", "bayar", "tagihan", "cicilan", "angsuran"),
		keywordRule(core.Expense, "Pengeluaran Lain", "keluar", "pengeluaran", "habis", "spend", "expense"),
	}
}

// PatternClassifier is the rule-based classifier. Income rules are tried top
// to bottom, then expense rules, and the first rule whose captured amount
// parses to a positive value wins. Within a kind, keyword-then-amount matches
// are tried for every rule before any amount-then-keyword match.
type PatternClassifier struct {
	income  []Rule
	expense []Rule
}

// NewPatternClassifier splits rules by kind, keeping their relative order.
func NewPatternClassifier(rules []Rule) *PatternClassifier {
	p := &PatternClassifier{}
	for _, r := range rules {
		switch r.Kind {
		case core.Income:
			p.income = append(p.income, r)
		case core.Expense:
			p.expense = append(p.expense, r)
		}
	}
	return p
}

// Classify returns nil when no rule yields a positive amount. A rule that
// matches with a zero or unparsable amount does not stop the scan.
func (p *PatternClassifier) Classify(message string) *core.ClassificationResult {
	if r := scan(p.income, message); r != nil {
		return r
	}
	return scan(p.expense, message)
}

func scan(rules []Rule, message string) *core.ClassificationResult {
	if r := scanWith(rules, message, func(r Rule) *regexp.Regexp { return r.Pattern }); r != nil {
		return r
	}
	return scanWith(rules, message, func(r Rule) *regexp.Regexp { return r.AmountFirst })
}

func scanWith(rules []Rule, message string, pick func(Rule) *regexp.Regexp) *core.ClassificationResult {
	for _, rule := range rules {
		re := pick(rule)
		if re == nil {
			continue
		}
		m := re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		amount := core.ParseAmount(firstGroup(m))
		if amount <= 0 {
			continue
		}
		return &core.ClassificationResult{
			IsFinancial: true,
			Type:        rule.Kind,
			Amount:      amount,
			Description: message,
			Category:    rule.Category,
		}
	}
	return nil
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
