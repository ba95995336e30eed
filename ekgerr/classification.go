package ekgerr

import "errors"

// ErrorClass categorizes errors by their nature so callers can decide
// whether a corrected or repeated run is worthwhile.
type ErrorClass string

const (
	// ErrorClassInfrastructure indicates environment or setup issues
	// Examples: store unreachable, APOC not installed
	ErrorClassInfrastructure ErrorClass = "infrastructure"

	// ErrorClassSemantic indicates problems in the schema or its patterns
	ErrorClassSemantic ErrorClass = "semantic"

	// ErrorClassTransient indicates failures that may resolve on re-run
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates failures a plain re-run will not fix
	ErrorClassPermanent ErrorClass = "permanent"
)

// DefaultClassForCode returns the default error class for a code.
func DefaultClassForCode(code string) ErrorClass {
	switch code {
	case ErrCodeMalformedPattern, ErrCodeSchemaValidation, ErrCodeTemplateCompilation, ErrCodeInvalidInput:
		return ErrorClassSemantic
	case ErrCodeStoreUnavailable:
		return ErrorClassInfrastructure
	case ErrCodeFatalBatch:
		return ErrorClassPermanent
	case ErrCodeQueryFailed, ErrCodeCanceled:
		return ErrorClassTransient
	default:
		return ErrorClassTransient
	}
}

type classifier interface {
	ErrorClass() ErrorClass
}

// ClassOf walks the error chain and returns the class of the first
// classified error. Unclassified errors, context cancellation included, are
// treated as transient.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var c classifier
	if errors.As(err, &c) {
		return c.ErrorClass()
	}
	return ErrorClassTransient
}

// IsTransient reports whether re-running the failed operation may succeed.
func IsTransient(err error) bool {
	return err != nil && ClassOf(err) == ErrorClassTransient
}
