package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (s ShippingDetails) Trimmed() ShippingDetails {
	return ShippingDetails{
		Name:    strings.TrimSpace(s.Name),
		Email:   strings.TrimSpace(s.Email),
		Phone:   strings.TrimSpace(s.Phone),
		Address: strings.TrimSpace(s.Address),
		City:    strings.TrimSpace(s.City),
		Pincode: strings.TrimSpace(s.Pincode),
		Notes:   strings.TrimSpace(s.Notes),
	}
}

func (s ShippingDetails) Validate() error {
	return structError(validate.Struct(s))
}

// Trim normalizes the free-text fields of p in place.
func (p *Product) Trim() {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Image = strings.TrimSpace(p.Image)
	p.SourcePlace = strings.TrimSpace(p.SourcePlace)
	p.Vendor = strings.TrimSpace(p.Vendor)
}

func (p Product) Validate() error {
	return structError(validate.Struct(p))
}

func (v ProductVariant) Validate() error {
	err := structError(validate.Struct(v))

	var ve *ValidationError
	if err != nil && !errors.As(err, &ve) {
		return err
	}
	if ve == nil {
		ve = &ValidationError{}
	}

	if v.OriginalPrice.IsNegative() {
		ve.Violations = append(ve.Violations, Violation{Field: "original_price", Reason: "must be >= 0"})
	}
	if !FitsMoneyScale(v.OriginalPrice) {
		ve.Violations = append(ve.Violations, Violation{Field: "original_price", Reason: moneyScaleReason})
	}
	if v.Discount.IsNegative() || v.Discount.GreaterThan(hundred) {
		ve.Violations = append(ve.Violations, Violation{Field: "discount", Reason: "must be between 0 and 100"})
	}
	if !FitsMoneyScale(v.Discount) {
		ve.Violations = append(ve.Violations, Violation{Field: "discount", Reason: moneyScaleReason})
	}
	if !v.Price.Equal(ComputePrice(v.OriginalPrice, v.Discount)) {
		ve.Violations = append(ve.Violations, Violation{Field: "price", Reason: "must equal original_price less discount"})
	}

	if len(ve.Violations) == 0 {
		return nil
	}
	return ve
}

const moneyScaleReason = "must have at most 2 decimal places"

func structError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &ValidationError{}
	for _, fe := range fieldErrs {
		ve.Violations = append(ve.Violations, Violation{Field: fe.Field(), Reason: reason(fe)})
	}
	return ve
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
