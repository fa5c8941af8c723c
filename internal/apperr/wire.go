package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

const (
	CodeValidation   = "VALIDATION"
	CodeNotFound     = "NOT_FOUND"
	CodeInsufficient = "INSUFFICIENT_STOCK"
	CodeRemote       = "REMOTE_CALL"
	CodeProcessing   = "PROCESSING"
	CodeInternal     = "INTERNAL"
)

// Body is the JSON error document both services return.
type Body struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	ProductCode string `json:"product_code,omitempty"`
	Available   *int   `json:"available,omitempty"`
	Needed      *int   `json:"needed,omitempty"`
}

func ToBody(err error) Body {
	var (
		pe  *ProcessingError
		ve  *ValidationError
		ise *InsufficientStockError
		nfe *NotFoundError
		rce *RemoteCallError
	)
	b := Body{Error: err.Error()}
	switch {
	case errors.As(err, &pe):
		b.Code = CodeProcessing
	case errors.As(err, &ve):
		b.Code = CodeValidation
	case errors.As(err, &ise):
		b.Code = CodeInsufficient
		b.ProductCode = ise.ProductCode
		b.Available, b.Needed = &ise.Available, &ise.Needed
	case errors.As(err, &nfe):
		b.Code = CodeNotFound
	case errors.As(err, &rce):
		b.Code = CodeRemote
	default:
		b.Code = CodeInternal
	}
	return b
}

// FromResponse turns a non-2xx response from another service back into a typed error.
// Only 4xx with a recognised code keep their type; everything else is a RemoteCallError.
func FromResponse(op string, status int, raw []byte) error {
	var b Body
	if json.Unmarshal(raw, &b) != nil || b.Error == "" {
		b.Error = strings.TrimSpace(string(raw))
	}
	if status >= 400 && status < 500 {
		switch {
		case b.Code == CodeInsufficient && b.Available != nil && b.Needed != nil:
			return &InsufficientStockError{ProductCode: b.ProductCode, Available: *b.Available, Needed: *b.Needed}
		case b.Code == CodeNotFound || status == http.StatusNotFound:
			return &NotFoundError{Msg: b.Error}
		case b.Code == CodeValidation:
			return &ValidationError{Msg: b.Error}
		}
	}
	return &RemoteCallError{Op: op, Status: status, Body: b.Error}
}
