package cypher

import "fmt"

// Op represents a comparison or filter operation in a query predicate.
type Op int

const (
	// Eq represents equality comparison (=)
	Eq Op = iota
	// Neq represents inequality comparison (<>)
	Neq
	// Lt represents less than comparison (<)
	Lt
	// Lte represents less than or equal comparison (<=)
	Lte
	// Gt represents greater than comparison (>)
	Gt
	// Gte represents greater than or equal comparison (>=)
	Gte
	// Contains represents string containment check (CONTAINS)
	Contains
	// StartsWith represents string prefix check (STARTS WITH)
	StartsWith
	// EndsWith represents string suffix check (ENDS WITH)
	EndsWith
	// In represents membership check (IN)
	In
	// IsNull represents null check (IS NULL)
	IsNull
	// IsNotNull represents non-null check (IS NOT NULL)
	IsNotNull
)

// String returns the string representation of the operation for debugging.
func (o Op) String() string {
	switch o {
	case Eq:
		return "="
	case Neq:
		return "<>"
	case Lt:
		return "<"
	case Lte:
		return "<="
	case Gt:
		return ">"
	case Gte:
		return ">="
	case Contains:
		return "CONTAINS"
	case StartsWith:
		return "STARTS WITH"
	case EndsWith:
		return "ENDS WITH"
	case In:
		return "IN"
	case IsNull:
		return "IS NULL"
	case IsNotNull:
		return "IS NOT NULL"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// ParseOp maps an operator spelling ("=", "in", "starts_with", ...) to an Op.
func ParseOp(s string) (Op, error) {
	switch s {
	case "=", "==", "eq":
		return Eq, nil
	case "<>", "!=", "neq":
		return Neq, nil
	case "<", "lt":
		return Lt, nil
	case "<=", "lte":
		return Lte, nil
	case ">", "gt":
		return Gt, nil
	case ">=", "gte":
		return Gte, nil
	case "contains":
		return Contains, nil
	case "starts_with":
		return StartsWith, nil
	case "ends_with":
		return EndsWith, nil
	case "in":
		return In, nil
	case "is_null":
		return IsNull, nil
	case "is_not_null":
		return IsNotNull, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}

// Predicate represents a filter condition in a graph query.
type Predicate struct {
	// Field is the property name to filter on
	Field string
	// Op is the comparison operation to perform
	Op Op
	// Value is the comparison value (may be nil for IsNull/IsNotNull)
	Value any
}

// Traversal represents a graph relationship traversal.
type Traversal struct {
	// Relationship is the relationship type to traverse
	Relationship string
	// TargetLabels are the target node labels to match (may be empty)
	TargetLabels []string
	// Direction specifies traversal direction: "out", "in", or "both"
	Direction string
}
