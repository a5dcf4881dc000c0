package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("admin role required")
)

type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned when caller input is missing or malformed.
type ValidationError struct {
	Violations []Violation
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Violations: []Violation{{Field: field, Reason: reason}}}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// Fields lists the offending fields in report order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

type StockShortfall struct {
	Key       VariantKey `json:"key"`
	Requested int        `json:"requested"`
	Available int        `json:"available"`
	Missing   bool       `json:"missing,omitempty"`
}

// InsufficientStockError names every cart line that cannot be fulfilled.
type InsufficientStockError struct {
	Lines []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		if l.Missing {
			parts = append(parts, fmt.Sprintf("%s: variant no longer exists", l.Key))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", l.Key, l.Requested, l.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

func (e *InsufficientStockError) Is(target error) bool {
	if target == ErrInsufficientStock {
		return true
	}
	_, ok := target.(*InsufficientStockError)
	return ok
}

// DuplicateVariantError reports a natural-key conflict on variant upsert.
type DuplicateVariantError struct {
	ProductID string
	Err       error
}

func (e *DuplicateVariantError) Error() string {
	return fmt.Sprintf("duplicate variant for product %s: %v", e.ProductID, e.Err)
}

func (e *DuplicateVariantError) Unwrap() error { return e.Err }

func (e *DuplicateVariantError) Is(target error) bool {
	_, ok := target.(*DuplicateVariantError)
	return ok
}

// ProductWriteError is a storage failure while creating or updating a product.
type ProductWriteError struct {
	Op        string
	ProductID string
	Err       error
}

func (e *ProductWriteError) Error() string {
	if e.ProductID == "" {
		return fmt.Sprintf("product %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("product %s failed: id=%s: %v", e.Op, e.ProductID, e.Err)
}

func (e *ProductWriteError) Unwrap() error { return e.Err }

func (e *ProductWriteError) Is(target error) bool {
	_, ok := target.(*ProductWriteError)
	return ok
}

// PersistenceError is any other storage failure; nothing beyond what storage
// confirmed is assumed committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	_, ok := target.(*PersistenceError)
	return ok
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInsufficientStockError(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}

func IsDuplicateVariantError(err error) bool {
	var dve *DuplicateVariantError
	return errors.As(err, &dve)
}

func IsProductWriteError(err error) bool {
	var pwe *ProductWriteError
	return errors.As(err, &pwe)
}

func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
