package shopify

import (
	"errors"
	"fmt"
	"strings"
)

// UserError is one entry of a mutation's userErrors list.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors is returned when a mutation succeeds at the transport level
// but the platform rejects the input.
type UserErrors struct {
	Operation string
	Subject   string
	Errors    []UserError
}

func (e *UserErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		if len(ue.Field) > 0 {
			msgs = append(msgs, fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message))
		} else {
			msgs = append(msgs, ue.Message)
		}
	}
	return fmt.Sprintf("%s %s: %s", e.Operation, e.Subject, strings.Join(msgs, "; "))
}

// Taken reports whether the platform rejected the input because the
// identifier already exists, as happens when a definition is created twice.
func (e *UserErrors) Taken() bool {
	for _, ue := range e.Errors {
		if ue.Code == "TAKEN" {
			return true
		}
		msg := strings.ToLower(ue.Message)
		if strings.Contains(msg, "already been taken") || strings.Contains(msg, "already exists") {
			return true
		}
	}
	return false
}

// IsTaken reports whether err carries a TAKEN user error.
func IsTaken(err error) bool {
	var ue *UserErrors
	return errors.As(err, &ue) && ue.Taken()
}

func userErrors(op, subject string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return &UserErrors{Operation: op, Subject: subject, Errors: errs}
}
