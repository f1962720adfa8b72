package kavita

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConnectivity is returned when the server could not be reached or kept failing.
	ErrConnectivity = errors.New("kavita unreachable")
	// ErrAuthorization is returned when the api key or session token is rejected.
	ErrAuthorization = errors.New("kavita rejected credentials")
	// ErrMalformedResponse is returned when a response body can not be decoded.
	ErrMalformedResponse = errors.New("malformed kavita response")

	errNotFound = errors.New("not found")
)

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	msg := "kavita returned status " + fmt.Sprint(e.Code) + " " + http.StatusText(e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}

	return msg
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// maxErrorBody bounds how much of an error response ends up in StatusError.
const maxErrorBody = 512

func truncateBody(bs []byte) string {
	if len(bs) > maxErrorBody {
		return string(bs[:maxErrorBody]) + "..."
	}

	return string(bs)
}
