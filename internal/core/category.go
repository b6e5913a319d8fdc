package core

import "strings"

// Category is the display bucket a transaction label falls into.
type Category struct {
	Name  string
	Glyph string
	Class string
}

// DefaultCategory is used for every label without a dedicated bucket.
var DefaultCategory = Category{Name: "Default", Glyph: "💳", Class: "cat-default"}

var categories = map[string]Category{
	"Salary":    {Name: "Salary", Glyph: "💼", Class: "cat-salary"},
	"Groceries": {Name: "Groceries", Glyph: "🛒", Class: "cat-groceries"},
	"Rent":      {Name: "Rent", Glyph: "🏠", Class: "cat-rent"},
	"Transport": {Name: "Transport", Glyph: "🚌", Class: "cat-transport"},
}

// CategoryFor returns the bucket for a label, falling back to DefaultCategory.
func CategoryFor(label string) Category {
	if c, ok := categories[strings.TrimSpace(label)]; ok {
		return c
	}
	return DefaultCategory
}

// KnownCategories lists the labels that have a dedicated bucket.
func KnownCategories() []string {
	return []string{"Salary", "Groceries", "Rent", "Transport"}
}
