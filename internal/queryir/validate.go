package queryir

import (
	"fmt"

	"github.com/roach88/tasksync/internal/ir"
)

// ValidationResult contains the analysis of a query.
type ValidationResult struct {
	// OK is true when the query has no warnings.
	OK bool

	// Warnings lists the problems found. Empty when OK is true.
	Warnings []string
}

// Validate checks a query against the rules every batch fetch must follow:
//  1. The collection is named
//  2. The fetch is bounded (Limit > 0)
//  3. No comparison against NULL, which never matches
//  4. Strict comparisons only use values with a total order
//  5. No empty Or, which matches nothing
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		OK:       len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addWarning("nil query")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.addWarning("nil query")
	default:
		v.addWarning("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addWarning("select without a collection")
	}
	if sel.Limit <= 0 {
		v.addWarning("unbounded fetch from %q - batch fetches require a positive limit", sel.From)
	}
	for _, o := range sel.OrderBy {
		if o.Field == "" {
			v.addWarning("empty order field")
		}
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		return
	case Equals:
		v.validateField(pred.Field)
		if _, isNull := pred.Value.(ir.IRNull); isNull || pred.Value == nil {
			v.addWarning("field '%s' compared to NULL never matches", pred.Field)
		}
	case Greater:
		v.validateComparison(pred.Field, ">", pred.Value)
	case Less:
		v.validateComparison(pred.Field, "<", pred.Value)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		if len(pred.Predicates) == 0 {
			v.addWarning("empty OR matches nothing")
		}
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addWarning("unknown predicate type: %T", p)
	}
}

func (v *validator) validateField(field string) {
	if field == "" {
		v.addWarning("predicate without a field")
	}
}

func (v *validator) validateComparison(field, op string, value ir.IRValue) {
	v.validateField(field)
	if !ir.IsCursorKind(value) {
		v.addWarning("field '%s' %s %s - only string, int, bool and time values have a total order",
			field, op, ir.KindName(value))
	}
}
