package backend

// APIError is a transport failure talking to the backend. Errors the
// backend reports about a statement are data and live in ResultSet.Error.
type APIError struct {
	Code    int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}
