package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError: input ditolak sebelum menyentuh DB atau jaringan.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	Key      string
	Msg      string
}

func (e *NotFoundError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func NotFound(resource, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

// InsufficientStockError membawa angka available/needed supaya caller bisa menampilkan detail.
type InsufficientStockError struct {
	ProductCode string
	Available   int
	Needed      int
}

func (e *InsufficientStockError) Error() string {
	if e.ProductCode == "" {
		return fmt.Sprintf("insufficient stock. available: %d, needed: %d", e.Available, e.Needed)
	}
	return fmt.Sprintf("insufficient inventory for product %s. available: %d, needed: %d",
		e.ProductCode, e.Available, e.Needed)
}

// RemoteCallError: gagal transport atau respons tak terduga dari service lain.
// Status 0 berarti request tidak pernah dapat respons.
type RemoteCallError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *RemoteCallError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the same call may succeed.
func (e *RemoteCallError) Temporary() bool {
	return e.Status == 0 || e.Status >= 500
}

// ProcessingError membungkus kegagalan langkah saga setelah order tersimpan.
type ProcessingError struct {
	Msg string
	Err error
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func Processing(msg string, err error) error {
	return &ProcessingError{Msg: msg, Err: err}
}

// HTTPStatus maps an error from any layer to the response code handlers should use.
// ProcessingError is checked first: it may wrap a client-class cause but is always a server failure.
func HTTPStatus(err error) int {
	var (
		pe  *ProcessingError
		ve  *ValidationError
		ise *InsufficientStockError
		nfe *NotFoundError
		rce *RemoteCallError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	case errors.As(err, &ve), errors.As(err, &ise):
		return http.StatusBadRequest
	case errors.As(err, &nfe):
		return http.StatusNotFound
	case errors.As(err, &rce):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
