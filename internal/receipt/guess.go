// Package receipt derives a best-effort category and amount from free
// receipt text. Both results are advisory hints; the caller always
// keeps the final say over what gets recorded.
package receipt

import (
	"regexp"
	"strings"

	"fet/internal/core"
)

// amountPattern matches plain and thousand-separated decimal tokens with
// up to two decimal places.
var amountPattern = regexp.MustCompile(`[0-9]{1,3}(?:,[0-9]{3})*(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?`)

type rule struct {
	pattern  *regexp.Regexp
	category string
}

// Rules are tried in order; the first match wins, so the more specific
// vocabularies sit above the generic bill/shopping catch-alls.
var rules = []rule{
	{regexp.MustCompile(`rent`), "Rent"},
	{regexp.MustCompile(`grocer|supermarket|grocery|dmart|bigbasket|foodmart`), "Groceries"},
	{regexp.MustCompile(`fuel|petrol|diesel|uber|ola|taxi|bus|train`), "Transport"},
	{regexp.MustCompile(`electric|wifi|internet|bill`), "Utilities"},
	{regexp.MustCompile(`restaurant|cafe|dine|kfc|mcdonald`), "Food"},
	{regexp.MustCompile(`shoe|tshirt|clothes|shopping|ajio|zara|h&m`), "Shopping"},
	{regexp.MustCompile(`movie|netflix|spotify|ticket`), "Entertainment"},
	{regexp.MustCompile(`hospital|doctor|pharma|medical`), "Healthcare"},
	{regexp.MustCompile(`school|tuition|course|college|university`), "Education"},
}

// GuessCategory matches the lowercased text against the keyword rules
// and falls back to Other when nothing fits.
func GuessCategory(text string) string {
	if strings.TrimSpace(text) == "" {
		return core.CategoryOther
	}
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.pattern.MatchString(lower) {
			return r.category
		}
	}
	return core.CategoryOther
}

// ExtractAmount picks the largest numeric token in the text, on the
// assumption that a receipt's grand total dominates its line items.
// ok is false when the text carries no parsable number.
func ExtractAmount(text string) (core.Money, bool) {
	var best int64
	found := false
	for _, tok := range amountPattern.FindAllString(text, -1) {
		cents, err := core.ParseDecimalToCents(strings.ReplaceAll(tok, ",", ""))
		if err != nil {
			continue
		}
		if !found || cents > best {
			best = cents
			found = true
		}
	}
	return core.Money{Cents: best}, found
}

// Guess runs both extractions over one text.
func Guess(text string) (category string, amount core.Money, ok bool) {
	category = GuessCategory(text)
	amount, ok = ExtractAmount(text)
	return category, amount, ok
}
