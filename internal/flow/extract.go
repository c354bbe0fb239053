package flow

import (
	"cmp"
	"encoding/json"
	"regexp"
	"slices"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Item is a labeled amount in millions.
type Item struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Breakdown is what extraction finds in the text. TotalRevenue is only used
// when no individual revenue sources were found.
type Breakdown struct {
	Revenues        []Item
	Costs           []Item
	TotalRevenue    float64
	GrossProfit     *float64
	OperatingProfit *float64
}

const (
	defaultRevenueLabel = "Revenue"
	defaultCostLabel    = "Costs"
	maxLabelRunes       = 48
)

// clauseSplit separates sentences on one line. A period inside "$4.6B" is
// not followed by whitespace, so amounts survive the split.
var clauseSplit = regexp.MustCompile(`[.;]\s+`)

// Keywords match on word boundaries so "Costco partnership revenue" does not
// read as a cost line.
var (
	revenueWord   = regexp.MustCompile(`\b(revenues?|sales)\b`)
	grossWord     = regexp.MustCompile(`\bgross (profit|margin|loss)\b`)
	operatingWord = regexp.MustCompile(`\boperating (profit|income|loss)\b`)
	costWord      = regexp.MustCompile(`\b(costs?|expenses?|sg&a|r&d|research and development|amortization|depreciation|interest|tax(es)?|opex|cogs)\b`)

	// costLead recognizes a subject that names a cost even when it mentions
	// revenue, as in "Cost of revenue" or "Total cost of sales".
	costLead = regexp.MustCompile(`^(total )?(costs?|expenses?|operating expenses?|sg&a|r&d|research and development|cogs|opex|interest expense|income tax(es)?)\b`)
)

// Extract finds revenue sources, cost items and profit figures in text.
// A JSON object with a "revenues" key embedded in the text takes precedence
// over line scanning.
func Extract(text string) Breakdown {
	if b, ok := extractJSON(text); ok {
		return b
	}
	return scanLines(text)
}

func scanLines(text string) Breakdown {
	var b Breakdown
	for _, line := range strings.Split(text, "\n") {
		for _, clause := range clauseSplit.Split(line, -1) {
			classify(&b, clause)
		}
	}
	return b
}

func classify(b *Breakdown, clause string) {
	tok, ok := FindAmount(clause)
	if !ok {
		return
	}
	amount := Normalize(tok)
	lower := strings.ToLower(clause)
	subject := subjectOf(lower)

	switch {
	case grossWord.MatchString(subject) && strings.HasPrefix(subject, "gross"):
		setOnce(&b.GrossProfit, lower, amount)
	case operatingWord.MatchString(subject) && strings.HasPrefix(subject, "operating"):
		setOnce(&b.OperatingProfit, lower, amount)
	case costLead.MatchString(subject):
		b.Costs = append(b.Costs, Item{Label: labelOf(clause, defaultCostLabel), Amount: amount})
	case revenueWord.MatchString(subject):
		label := labelOf(clause, defaultRevenueLabel)
		if strings.HasPrefix(strings.ToLower(label), "total") {
			if b.TotalRevenue == 0 {
				b.TotalRevenue = amount
			}
			return
		}
		b.Revenues = append(b.Revenues, Item{Label: label, Amount: amount})
	case grossWord.MatchString(subject):
		setOnce(&b.GrossProfit, lower, amount)
	case operatingWord.MatchString(subject):
		setOnce(&b.OperatingProfit, lower, amount)
	case costWord.MatchString(subject):
		b.Costs = append(b.Costs, Item{Label: labelOf(clause, defaultCostLabel), Amount: amount})
	}
}

// subjectOf returns what a clause is about: its label when it has one,
// otherwise the whole clause. Later mentions such as "gross margin 42%"
// after a revenue label do not change the subject.
func subjectOf(lower string) string {
	whole := tidy(lower)
	i := strings.IndexByte(lower, ':')
	if i < 0 {
		return whole
	}
	label := tidy(lower[:i])
	if label == "" || strings.Contains(label, "$") {
		return whole
	}
	return label
}

// tidy strips Markdown decoration and collapses whitespace.
func tidy(s string) string {
	return strings.Join(strings.Fields(strings.Trim(s, " \t*_#->•`")), " ")
}

func setOnce(dst **float64, lower string, v float64) {
	if *dst == nil {
		*dst = signed(lower, v)
	}
}

// signed makes an amount negative when the clause reports a loss.
func signed(lower string, v float64) *float64 {
	if strings.Contains(lower, "loss") || strings.Contains(lower, "-$") || strings.Contains(lower, "($") {
		v = -v
	}
	return &v
}

// labelOf returns the text before the first colon, cleaned of Markdown
// decoration, or def when there is no usable label.
func labelOf(clause, def string) string {
	i := strings.IndexByte(clause, ':')
	if i < 0 {
		return def
	}
	label := tidy(clause[:i])
	if label == "" || strings.Contains(label, "$") {
		return def
	}
	if r := []rune(label); len(r) > maxLabelRunes {
		label = strings.TrimSpace(string(r[:maxLabelRunes])) + "…"
	}
	return label
}

// extractJSON looks for an embedded object such as
//
//	{"revenues": [{"label": "Cloud", "amount": "$4.6B"}], "costs": [...], "gross_profit": 1200}
//
// Decoding tries strict JSON, then Hjson, then json-repair.
func extractJSON(text string) (Breakdown, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return Breakdown{}, false
	}
	block := text[start : end+1]
	if !strings.Contains(strings.ToLower(block), "revenues") {
		return Breakdown{}, false
	}

	doc, ok := decodeLenient(block)
	if !ok {
		return Breakdown{}, false
	}

	var b Breakdown
	b.Revenues = itemsOf(doc["revenues"], defaultRevenueLabel)
	b.Costs = itemsOf(doc["costs"], defaultCostLabel)
	if v, ok := amountOf(doc["total_revenue"]); ok {
		b.TotalRevenue = v
	}
	if v, ok := amountOf(doc["gross_profit"]); ok {
		b.GrossProfit = &v
	}
	if v, ok := amountOf(doc["operating_profit"]); ok {
		b.OperatingProfit = &v
	}
	if len(b.Revenues) == 0 && b.TotalRevenue == 0 {
		return Breakdown{}, false
	}
	return b, true
}

func decodeLenient(block string) (map[string]any, bool) {
	hasRevenues := func(doc map[string]any) bool {
		_, ok := doc["revenues"]
		return ok
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(block), &doc); err == nil && hasRevenues(doc) {
		return doc, true
	}

	// Hjson decodes into its own ordered map; a JSON round trip turns the
	// result into plain maps and slices.
	var loose any
	if err := hjson.Unmarshal([]byte(block), &loose); err == nil {
		if raw, err := json.Marshal(loose); err == nil {
			doc = nil
			if err := json.Unmarshal(raw, &doc); err == nil && hasRevenues(doc) {
				return doc, true
			}
		}
	}

	if repaired, err := jsonrepair.RepairJSON(block); err == nil {
		doc = nil
		if err := json.Unmarshal([]byte(repaired), &doc); err == nil && hasRevenues(doc) {
			return doc, true
		}
	}
	return nil, false
}

// itemsOf accepts either a list of {label|name, amount|value} objects or an
// object mapping label to amount.
func itemsOf(v any, def string) []Item {
	var items []Item
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			label := firstString(m, "label", "name", "segment", "category")
			if label == "" {
				label = def
			}
			amt, ok := amountOf(firstPresent(m, "amount", "value"))
			if !ok {
				continue
			}
			items = append(items, Item{Label: label, Amount: amt})
		}
	case map[string]any:
		for label, raw := range t {
			if amt, ok := amountOf(raw); ok {
				items = append(items, Item{Label: label, Amount: amt})
			}
		}
		sortItems(items)
	}
	return items
}

func amountOf(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		if tok, ok := FindAmount(t); ok {
			return Normalize(tok), true
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// sortItems orders by descending amount then label so map-shaped input
// produces a stable graph.
func sortItems(items []Item) {
	slices.SortFunc(items, func(a, b Item) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
}
