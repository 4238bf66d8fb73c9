package blog

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Field + " is invalid"
	}
	return e.Message
}

// NotFoundError reports an unknown post, slug or category.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// ConflictError reports a write that could not be applied after the retry
// budget was spent, either on slug reservation or on a concurrent update.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
