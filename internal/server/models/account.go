package models

import "strings"

// Category tags an Account for filtering in the UI.
type Category string

const (
	CategoryGoogle        Category = "GOOGLE"
	CategoryApple         Category = "APPLE"
	CategoryMicrosoft     Category = "MICROSOFT"
	CategorySocial        Category = "SOCIAL"
	CategoryFinance       Category = "FINANCE"
	CategoryShopping      Category = "SHOPPING"
	CategoryWork          Category = "WORK"
	CategoryGaming        Category = "GAMING"
	CategoryEntertainment Category = "ENTERTAINMENT"
	CategoryOther         Category = "OTHER"
)

// Categories lists every valid Category in display order.
var Categories = []Category{
	CategoryGoogle, CategoryApple, CategoryMicrosoft, CategorySocial, CategoryFinance,
	CategoryShopping, CategoryWork, CategoryGaming, CategoryEntertainment, CategoryOther,
}

// NormalizeCategories upper-cases the input, drops unknown values and
// duplicates, and never returns nil.
func NormalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[Category]struct{}, len(in))
	for _, raw := range in {
		c := Category(strings.ToUpper(strings.TrimSpace(raw)))
		if !c.valid() {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, string(c))
	}
	return out
}

func (c Category) valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Account is a secured online service or login owned by a user.
type Account struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Username   *string  `json:"username"`
	Notes      *string  `json:"notes"`
	Categories []string `json:"categories"`
	UserID     string   `json:"userid"`
}

// AccountWithIdentities is an Account with the Identities that secure it.
type AccountWithIdentities struct {
	Account
	Identities []Identity `json:"identities"`
}
