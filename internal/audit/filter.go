package audit

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// FilterAction defines the action to take on matched metadata fields
type FilterAction string

const (
	FilterActionRemove FilterAction = "remove"
	FilterActionHash   FilterAction = "hash"
	FilterActionMask   FilterAction = "mask"
)

// MetadataFilter rewrites sensitive metadata before an event is sealed.
type MetadataFilter struct {
	rules   map[string]FilterAction
	allowed map[string]bool
}

// Contact details of staff are the only personal data the engine emits.
var defaultRules = map[string]FilterAction{
	"email":       FilterActionHash,
	"phone":       FilterActionMask,
	"to":          FilterActionMask,
	"push_token":  FilterActionRemove,
	"push_tokens": FilterActionRemove,
	"token":       FilterActionRemove,
	"api_key":     FilterActionRemove,
}

// FilterOption configures MetadataFilter behavior
type FilterOption func(*MetadataFilter)

// NewMetadataFilter creates a filter with the default contact-data rules.
func NewMetadataFilter(opts ...FilterOption) *MetadataFilter {
	f := &MetadataFilter{
		rules:   make(map[string]FilterAction, len(defaultRules)),
		allowed: make(map[string]bool),
	}
	for k, v := range defaultRules {
		f.rules[k] = v
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithFieldRule adds or replaces the rule for a field. Field names are case insensitive.
func WithFieldRule(field string, action FilterAction) FilterOption {
	return func(f *MetadataFilter) {
		f.rules[strings.ToLower(field)] = action
	}
}

// WithAllowedField explicitly allows a field to pass through without filtering
func WithAllowedField(field string) FilterOption {
	return func(f *MetadataFilter) {
		f.allowed[strings.ToLower(field)] = true
	}
}

// Filter returns a filtered copy of metadata.
func (f *MetadataFilter) Filter(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}

	filtered := make(map[string]any, len(metadata))
	for key, value := range metadata {
		lower := strings.ToLower(key)
		action, ok := f.rules[lower]
		if !ok || f.allowed[lower] {
			filtered[key] = value
			continue
		}
		switch action {
		case FilterActionRemove:
		case FilterActionHash:
			filtered[key] = hashValue(value)
		case FilterActionMask:
			filtered[key] = maskValue(value)
		default:
			filtered[key] = value
		}
	}
	return filtered
}

func hashValue(value any) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%v", value)))
	return hex.EncodeToString(sum[:])
}

// maskValue keeps the first two and last two characters of longer values.
func maskValue(value any) string {
	str := fmt.Sprintf("%v", value)
	n := len(str)

	switch {
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return str[:1] + strings.Repeat("*", n-2) + str[n-1:]
	default:
		return str[:2] + strings.Repeat("*", n-4) + str[n-2:]
	}
}
