package api

import (
	"context"
	"strings"

	"fintrack/internal/cache"
)

// Categorizer suggests a category label for a description.
type Categorizer interface {
	Categorize(ctx context.Context, description string) (string, error)
}

// CachingCategorizer memoizes successful suggestions. Only labels are
// cached; transactions are always fetched fresh.
type CachingCategorizer struct {
	next  Categorizer
	cache cache.Cache[string]
}

// NewCachingCategorizer wraps next with c.
func NewCachingCategorizer(next Categorizer, c cache.Cache[string]) *CachingCategorizer {
	return &CachingCategorizer{next: next, cache: c}
}

func (cc *CachingCategorizer) Categorize(ctx context.Context, description string) (string, error) {
	key := cacheKey(description)
	if label, ok := cc.cache.Get(key); ok {
		return label, nil
	}
	label, err := cc.next.Categorize(ctx, description)
	if err != nil {
		return "", err
	}
	if label != "" {
		cc.cache.Set(key, label)
	}
	return label, nil
}

func cacheKey(description string) string {
	return strings.ToLower(strings.Join(strings.Fields(description), " "))
}
