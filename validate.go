package draftset

import "strings"

// ValidationError describes one structural defect in a candidate document.
// Keyword is "required" for a missing field and "type" for a shape failure,
// mirroring the wire shape consumed by diff renderers.
type ValidationError struct {
	Path    string         `json:"path"`
	Message string         `json:"message"`
	Keyword string         `json:"keyword"`
	Params  map[string]any `json:"params,omitempty"`
}

// ValidationResult is the outcome of Validator.Validate. Valid implies an
// empty error list; invalid implies at least one entry.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// RuleCheck selects what a Rule asserts about its field.
type RuleCheck int

const (
	// CheckRequired asserts the field is present at the top level.
	CheckRequired RuleCheck = iota
	// CheckNonEmptyString asserts the field, when present, is a string that
	// is non-empty after trimming.
	CheckNonEmptyString
	// CheckNonEmptyList asserts the field, when present, is a non-empty array.
	CheckNonEmptyList
)

// Rule is one fixed structural check over a top-level field.
type Rule struct {
	Field string
	Check RuleCheck
}

// Require returns a presence rule for field.
func Require(field string) Rule { return Rule{Field: field, Check: CheckRequired} }

// NonEmptyString returns a trimmed-non-empty string rule for field.
func NonEmptyString(field string) Rule { return Rule{Field: field, Check: CheckNonEmptyString} }

// NonEmptyList returns a non-empty array rule for field.
func NonEmptyList(field string) Rule { return Rule{Field: field, Check: CheckNonEmptyList} }

// DefaultRules is the commit contract of the metadata archive: the fields a
// document must carry before a proposal is worth staging. A full schema check
// still runs server-side before a real commit; this gate only rejects
// obviously malformed proposals cheaply.
func DefaultRules() []Rule {
	return []Rule{
		Require("name"),
		NonEmptyString("name"),
		Require("description"),
		NonEmptyString("description"),
		Require("contributor"),
		NonEmptyList("contributor"),
		Require("license"),
	}
}

// Validator runs a fixed, non-recursive rule list against a candidate
// document. It is deliberately not a schema engine: errors come out in a
// deterministic order (all required checks first, in rule order, then shape
// checks in rule order), which keeps tool failure messages stable for the
// assistant to act on.
type Validator struct {
	rules []Rule
}

// NewValidator builds a Validator from an ordered rule list. With no rules it
// falls back to DefaultRules.
func NewValidator(rules ...Rule) *Validator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Validator{rules: append([]Rule(nil), rules...)}
}

// Validate checks candidate against the rule list.
func (v *Validator) Validate(candidate Value) ValidationResult {
	obj, ok := candidate.(*Object)
	if !ok {
		return ValidationResult{Errors: []ValidationError{{
			Path:    "",
			Message: "document root must be an object",
			Keyword: "type",
		}}}
	}

	var errs []ValidationError
	for _, rule := range v.rules {
		if rule.Check != CheckRequired {
			continue
		}
		if _, present := obj.Get(rule.Field); !present {
			errs = append(errs, ValidationError{
				Path:    rule.Field,
				Message: "required field " + rule.Field + " is missing",
				Keyword: "required",
				Params:  map[string]any{"missingProperty": rule.Field},
			})
		}
	}
	for _, rule := range v.rules {
		if rule.Check == CheckRequired {
			continue
		}
		val, present := obj.Get(rule.Field)
		if !present {
			continue // absence already reported by a required rule, if any
		}
		switch rule.Check {
		case CheckNonEmptyString:
			s, ok := val.(string)
			if !ok || strings.TrimSpace(s) == "" {
				errs = append(errs, ValidationError{
					Path:    rule.Field,
					Message: rule.Field + " must be a non-empty string",
					Keyword: "type",
					Params:  map[string]any{"expected": "string"},
				})
			}
		case CheckNonEmptyList:
			arr, ok := val.(Array)
			if !ok || len(arr) == 0 {
				errs = append(errs, ValidationError{
					Path:    rule.Field,
					Message: rule.Field + " must be a non-empty list",
					Keyword: "type",
					Params:  map[string]any{"expected": "array"},
				})
			}
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
