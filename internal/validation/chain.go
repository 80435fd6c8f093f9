// internal/validation/chain.go
//
// Field validation chains with accumulated errors.
//
// Context
// -------
// A Chain names one input field and lists rules and sanitizers in the order
// they apply.  Rules record a FieldError when they fail; sanitizers rewrite
// the value seen by later steps and, once the chain ends, the value stored
// back on the request.  Every rule of every chain runs, so the caller sees
// the complete set of violations in one response.  Bail() is the opt-out:
// after a bail point the chain stops at its first failure.
//
// Workflow
// --------
//   •  Build chains in code (Field("email").NotEmpty(...)) or from a YAML
//      rule file (definition.go).
//   •  Rules.Run walks the chains in order and returns []FieldError.
//   •  The Check and Reject stages wrap Run for use in a route pipeline.
//
// Notes
// -----
// • Values are coerced to strings for rule checks the way form inputs are
//   (numbers print without exponent, nil is "").
// • Oxford commas, two spaces after periods.

package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/relay/internal/pipeline"
)

// FieldError is re-exported so callers need not import pipeline.
type FieldError = pipeline.FieldError

// Input locations.
const (
	InBody  = "body"
	InQuery = "query"
)

var formats = validator.New()

type stepKind uint8

const (
	kindRule stepKind = iota
	kindSanitize
	kindBail
)

type step struct {
	kind     stepKind
	check    func(s string, present bool) bool
	sanitize func(v any) any
	msg      string
}

// Chain is an ordered rule list for one field.
type Chain struct {
	field    string
	location string
	optional bool
	steps    []step
}

// Field starts a chain for a body field.
func Field(name string) *Chain { return &Chain{field: name, location: InBody} }

// Query starts a chain for a query-string parameter.
func Query(name string) *Chain { return &Chain{field: name, location: InQuery} }

// Name returns the field name.
func (c *Chain) Name() string { return c.field }

func (c *Chain) rule(msg string, check func(s string, present bool) bool) *Chain {
	c.steps = append(c.steps, step{kind: kindRule, check: check, msg: msg})
	return c
}

func (c *Chain) sanitizer(fn func(v any) any) *Chain {
	c.steps = append(c.steps, step{kind: kindSanitize, sanitize: fn})
	return c
}

// Optional skips the whole chain when the field is absent.
func (c *Chain) Optional() *Chain {
	c.optional = true
	return c
}

// Bail stops the chain at the first failure recorded after this point.
func (c *Chain) Bail() *Chain {
	c.steps = append(c.steps, step{kind: kindBail})
	return c
}

// Exists fails when the field is absent.
func (c *Chain) Exists(msg string) *Chain {
	return c.rule(msg, func(_ string, present bool) bool { return present })
}

// NotEmpty fails when the field is absent or empty.
func (c *Chain) NotEmpty(msg string) *Chain {
	return c.rule(msg, func(s string, present bool) bool { return present && s != "" })
}

// IsEmail fails unless the value is an RFC 5322 address.
func (c *Chain) IsEmail(msg string) *Chain {
	return c.rule(msg, func(s string, _ bool) bool {
		return s != "" && formats.Var(s, "email") == nil
	})
}

// Length bounds the value's length in characters.  max <= 0 means no upper
// bound.
func (c *Chain) Length(min, max int, msg string) *Chain {
	return c.rule(msg, func(s string, _ bool) bool {
		n := utf8.RuneCountInString(s)
		return n >= min && (max <= 0 || n <= max)
	})
}

// Matches fails unless the value matches expr.  expr must compile.
func (c *Chain) Matches(expr, msg string) *Chain {
	re := regexp.MustCompile(expr)
	return c.rule(msg, func(s string, _ bool) bool { return re.MatchString(s) })
}

// OneOf fails unless the value is one of values.
func (c *Chain) OneOf(values []string, msg string) *Chain {
	allowed := make(map[string]struct{}, len(values))
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return c.rule(msg, func(s string, _ bool) bool {
		_, ok := allowed[s]
		return ok
	})
}

// IsNumeric fails unless the value parses as a number.
func (c *Chain) IsNumeric(msg string) *Chain {
	return c.rule(msg, func(s string, _ bool) bool {
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	})
}

// IsInt fails unless the value is an integer within [min, max].
func (c *Chain) IsInt(min, max int64, msg string) *Chain {
	return c.rule(msg, func(s string, _ bool) bool {
		n, err := strconv.ParseInt(s, 10, 64)
		return err == nil && n >= min && n <= max
	})
}

// Custom adds a caller-defined rule.
func (c *Chain) Custom(msg string, ok func(s string) bool) *Chain {
	return c.rule(msg, func(s string, _ bool) bool { return ok(s) })
}

// Trim removes surrounding whitespace from string values.
func (c *Chain) Trim() *Chain {
	return c.sanitizer(mapString(strings.TrimSpace))
}

// Escape replaces HTML-significant characters with entities.
func (c *Chain) Escape() *Chain {
	return c.sanitizer(mapString(escaper.Replace))
}

// Lowercase folds string values to lower case.
func (c *Chain) Lowercase() *Chain {
	return c.sanitizer(mapString(strings.ToLower))
}

// ToInt converts numeric strings to int64.  Non-numeric values pass through.
func (c *Chain) ToInt() *Chain {
	return c.sanitizer(func(v any) any {
		n, err := strconv.ParseInt(stringify(v), 10, 64)
		if err != nil {
			return v
		}
		return n
	})
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#x27;",
	"<", "&lt;",
	">", "&gt;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

func mapString(fn func(string) string) func(any) any {
	return func(v any) any {
		if s, ok := v.(string); ok {
			return fn(s)
		}
		return v
	}
}

// run applies the chain to value and returns the sanitized value and any
// failures.
func (c *Chain) run(value any, present bool) (any, []FieldError) {
	if c.optional && !present {
		return value, nil
	}
	var errs []FieldError
	bail := false
	for _, st := range c.steps {
		switch st.kind {
		case kindBail:
			bail = true
		case kindSanitize:
			if present {
				value = st.sanitize(value)
			}
		case kindRule:
			if st.check(stringify(value), present) {
				continue
			}
			errs = append(errs, FieldError{
				Field:    c.field,
				Message:  st.msg,
				Location: c.location,
			})
			if bail {
				return value, errs
			}
		}
	}
	return value, errs
}

// stringify renders a decoded JSON value the way a form would submit it.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
