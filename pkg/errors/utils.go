package errors

// Quick constructors for the common codes, cause-free.

func Internal(message string) *Error {
	return New(CommonInternal, message, nil)
}

func NotFound(message string) *Error {
	return New(CommonNotFound, message, nil)
}

func Validation(message string) *Error {
	return New(CommonValidation, message, nil)
}

func Timeout(message string) *Error {
	return New(CommonTimeout, message, nil)
}

func Conflict(message string) *Error {
	return New(CommonConflict, message, nil)
}

func Unsupported(message string) *Error {
	return New(CommonUnsupported, message, nil)
}

func InvalidInput(message string) *Error {
	return New(CommonInvalidInput, message, nil)
}

func AlreadyExists(message string) *Error {
	return New(CommonAlreadyExists, message, nil)
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Code.Equals(code)
}

// CodeOf extracts the Code carried by err, or the zero Code if err is not
// one of ours.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Code{}
}
