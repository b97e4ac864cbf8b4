package account

// ErrorKind is the wire value identifying a recoverable mutation failure.
type ErrorKind string

const (
	ErrorValidation      ErrorKind = "validation_error"
	ErrorEmailTaken      ErrorKind = "email_taken"
	ErrorUsernameTaken   ErrorKind = "username_taken"
	ErrorNoFile          ErrorKind = "no_file"
	ErrorInvalidFileType ErrorKind = "invalid_file_type"
	ErrorFileTooLarge    ErrorKind = "file_too_large"
	ErrorLastAuthMethod  ErrorKind = "last_auth_method"
	ErrorStorageFailed   ErrorKind = "storage_failed"
	ErrorConflict        ErrorKind = "conflict"
)

// Result is the uniform outcome shape for every settings mutation. Failures
// that are the caller's fault come back as a Result, never as an error.
type Result struct {
	Success     bool              `json:"success"`
	Error       ErrorKind         `json:"error,omitempty"`
	Message     string            `json:"message,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	PhotoURL    string            `json:"photoUrl,omitempty"`
}

func successResult() Result {
	return Result{Success: true}
}

func failureResult(kind ErrorKind, message string) Result {
	return Result{Success: false, Error: kind, Message: message}
}

func validationResult(fieldErrors map[string]string) Result {
	return Result{Success: false, Error: ErrorValidation, FieldErrors: fieldErrors}
}
