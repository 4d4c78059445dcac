package usecase

// DomainError is a failure the caller can act on (bad input, unknown contact).
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// TechnicalError is a failure of a collaborator (CRM, broker, database).
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	return e.Message
}

func (e *TechnicalError) Unwrap() error { return e.Err }

const (
	CodeContactNotFound    = "CONTACT_NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRemoteError        = "REMOTE_ERROR"
)
