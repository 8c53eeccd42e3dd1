package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// entryValidate checks struct-level rules declared in field tags.
var entryValidate *validator.Validate

func init() {
	entryValidate = validator.New(validator.WithRequiredStructEnabled())
	entryValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = entryValidate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	// BN tooling rejects node identifiers containing whitespace.
	_ = entryValidate.RegisterValidation("nowhitespace", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
	})
}

// SchemaViolation describes one problem found in a catalog entry.
type SchemaViolation struct {
	Key     string `json:"key"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v SchemaViolation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Key, v.Field, v.Message)
}

// Violations is the collected result of a failed validation pass.
type Violations []SchemaViolation

func (v Violations) Error() string {
	parts := make([]string, len(v))
	for i, s := range v {
		parts[i] = s.String()
	}
	return fmt.Sprintf("%d schema violation(s): %s", len(v), strings.Join(parts, "; "))
}

// Unwrap lets callers match ErrInvalidCatalog with errors.Is.
func (v Violations) Unwrap() error { return ErrInvalidCatalog }

// Validate checks every entry and returns all problems at once as
// Violations, or nil when the catalog is well formed.
func (c *Catalog) Validate() error {
	var out Violations
	binOwner := make(map[string]string)

	for _, e := range c.Entries() {
		out = append(out, structViolations(e)...)

		if e.CandidateBNInput && e.Bins == nil {
			out = append(out, SchemaViolation{Key: e.Key, Field: "bins", Message: "candidate BN input must declare bins"})
		}
		if e.Bins == nil {
			continue
		}
		out = append(out, binViolations(e.Key, *e.Bins)...)

		if f := e.Bins.Field; f != "" {
			if owner, dup := binOwner[f]; dup {
				out = append(out, SchemaViolation{Key: e.Key, Field: "bins.field", Message: fmt.Sprintf("bin field %q already used by %s", f, owner)})
			} else {
				binOwner[f] = e.Key
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func structViolations(e Entry) []SchemaViolation {
	err := entryValidate.Struct(e)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []SchemaViolation{{Key: e.Key, Field: "entry", Message: err.Error()}}
	}
	out := make([]SchemaViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is "Entry.bins.values[0]"; drop the type prefix.
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, SchemaViolation{Key: e.Key, Field: field, Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "nonblank":
		return "must not be empty"
	case "nowhitespace":
		return "must not contain whitespace"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("must have at least %s element(s)", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func binViolations(key string, b BinSpec) []SchemaViolation {
	var out []SchemaViolation

	seen := make(map[string]bool, len(b.Values))
	for _, v := range b.Values {
		if seen[v] {
			out = append(out, SchemaViolation{Key: key, Field: "bins.values", Message: fmt.Sprintf("duplicate label %q", v)})
		}
		seen[v] = true
	}

	// Three-level bins carry fixed semantics downstream; case matters.
	if len(b.Values) == 3 && !(seen[BinLow] && seen[BinMid] && seen[BinHigh]) {
		out = append(out, SchemaViolation{Key: key, Field: "bins.values", Message: fmt.Sprintf("three-level bins must be exactly {low, mid, high}, got %v", b.Values)})
	}

	if len(b.Values) > 0 && len(b.Thresholds) != len(b.Values)-1 {
		out = append(out, SchemaViolation{Key: key, Field: "bins.thresholds", Message: fmt.Sprintf("need %d threshold(s) for %d labels, got %d", len(b.Values)-1, len(b.Values), len(b.Thresholds))})
	}
	for i := 1; i < len(b.Thresholds); i++ {
		if b.Thresholds[i] <= b.Thresholds[i-1] {
			out = append(out, SchemaViolation{Key: key, Field: "bins.thresholds", Message: "thresholds must be strictly ascending"})
			break
		}
	}
	return out
}
