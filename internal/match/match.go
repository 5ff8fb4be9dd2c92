package match

import (
	"strings"

	"zeroinvoice/internal"
	"zeroinvoice/internal/util"
)

// Resolver matches extracted customer and line-item names against the
// existing catalog. Escalation order is exact name, exact email (customers
// only), then fuzzy similarity; a fuzzy hit is accepted only when exactly
// one catalog entry clears the threshold — ambiguity resolves to "new".
type Resolver struct {
	threshold float64
	customers []internal.Customer
	items     []internal.Item

	customersByName  map[string]internal.Customer
	customersByEmail map[string]internal.Customer
	itemsByName      map[string]internal.Item
}

func NewResolver(threshold float64, customers []internal.Customer, items []internal.Item) *Resolver {
	r := &Resolver{
		threshold:        threshold,
		customers:        customers,
		items:            items,
		customersByName:  make(map[string]internal.Customer, len(customers)),
		customersByEmail: make(map[string]internal.Customer, len(customers)),
		itemsByName:      make(map[string]internal.Item, len(items)),
	}

	for _, c := range customers {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if _, ok := r.customersByName[name]; !ok && name != "" {
			r.customersByName[name] = c
		}
		email := strings.ToLower(strings.TrimSpace(c.Email))
		if _, ok := r.customersByEmail[email]; !ok && email != "" {
			r.customersByEmail[email] = c
		}
	}
	for _, it := range items {
		name := strings.ToLower(strings.TrimSpace(it.Name))
		if _, ok := r.itemsByName[name]; !ok && name != "" {
			r.itemsByName[name] = it
		}
	}

	return r
}

// MatchCustomer resolves an extracted customer name/email pair. A nil or
// empty name means no match is attempted at all.
func (r *Resolver) MatchCustomer(name, email *string) internal.MatchDecision {
	trimmed := strings.TrimSpace(util.DerefString(name))
	if trimmed == "" {
		return internal.MatchDecision{IsNew: true, MatchConfidence: 0}
	}
	lower := strings.ToLower(trimmed)

	if c, ok := r.customersByName[lower]; ok {
		return internal.MatchDecision{ExistingID: util.StringPtr(c.ID), MatchConfidence: 1.0}
	}

	if email != nil {
		if c, ok := r.customersByEmail[strings.ToLower(strings.TrimSpace(*email))]; ok {
			return internal.MatchDecision{ExistingID: util.StringPtr(c.ID), MatchConfidence: 0.95}
		}
	}

	var hits []internal.Customer
	for _, c := range r.customers {
		if r.fuzzyHit(lower, strings.ToLower(c.Name)) {
			hits = append(hits, c)
		}
	}
	if len(hits) == 1 {
		return internal.MatchDecision{ExistingID: util.StringPtr(hits[0].ID), MatchConfidence: r.threshold}
	}

	return internal.MatchDecision{IsNew: true, MatchConfidence: 0}
}

// MatchItem resolves one extracted line-item name against the item catalog.
func (r *Resolver) MatchItem(name string) internal.MatchDecision {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return internal.MatchDecision{IsNew: true, MatchConfidence: 0}
	}
	lower := strings.ToLower(trimmed)

	if it, ok := r.itemsByName[lower]; ok {
		return internal.MatchDecision{ExistingID: util.StringPtr(it.ID), MatchConfidence: 1.0}
	}

	var hits []internal.Item
	for _, it := range r.items {
		if r.fuzzyHit(lower, strings.ToLower(it.Name)) {
			hits = append(hits, it)
		}
	}
	if len(hits) == 1 {
		return internal.MatchDecision{ExistingID: util.StringPtr(hits[0].ID), MatchConfidence: r.threshold}
	}

	return internal.MatchDecision{IsNew: true, MatchConfidence: 0}
}

// fuzzyHit treats substring containment in either direction as a hit, then
// falls back to normalized edit-distance similarity.
func (r *Resolver) fuzzyHit(query, candidate string) bool {
	if query == "" || candidate == "" {
		return false
	}
	if strings.Contains(candidate, query) || strings.Contains(query, candidate) {
		return true
	}
	return Similarity(query, candidate) > r.threshold
}

// Similarity is 1 - levenshtein(a,b)/max(len(a),len(b)), so identical
// strings score 1.0 and a non-empty string against "" scores 0.
func Similarity(a, b string) float64 {
	longer, shorter := a, b
	if len([]rune(longer)) < len([]rune(shorter)) {
		longer, shorter = shorter, longer
	}
	longerLen := len([]rune(longer))
	if longerLen == 0 {
		return 1.0
	}
	return float64(longerLen-levenshtein(longer, shorter)) / float64(longerLen)
}

// levenshtein computes edit distance with single-row dynamic programming.
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)

	row := make([]int, len(br)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ar); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(br); j++ {
			cur := row[j]
			if ar[i-1] == br[j-1] {
				row[j] = prev
			} else {
				row[j] = min3(prev, row[j-1], row[j]) + 1
			}
			prev = cur
		}
	}

	return row[len(br)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
