package sales

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var saleValidate *validator.Validate

func init() {
	saleValidate = validator.New(validator.WithRequiredStructEnabled())
	saleValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := saleValidate.RegisterValidation("money", validateMoney); err != nil {
		panic(fmt.Sprintf("sales: register money validation: %v", err))
	}
}

// validateMoney accepts amounts with at most two decimal places.
func validateMoney(fl validator.FieldLevel) bool {
	scaled := fl.Field().Float() * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

func cents(v float64) float64 {
	return math.Round(v * 100)
}

// Validate checks field rules and that the totals agree with each other to the cent.
// A record carrying only a total is accepted.
func Validate(r Record) error {
	if err := saleValidate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSale, err)
	}

	if len(r.Items) > 0 {
		var sum float64
		for _, item := range r.Items {
			sum += item.Amount()
		}
		if cents(sum) != cents(r.Subtotal) {
			return fmt.Errorf("%w: subtotal %.2f does not match items %.2f", ErrInvalidSale, r.Subtotal, sum)
		}
	}

	if r.Subtotal != 0 || r.Tax != 0 || r.Discount != 0 {
		want := r.Subtotal + r.Tax - r.Discount
		if cents(want) != cents(r.Total) {
			return fmt.Errorf("%w: total %.2f does not equal subtotal + tax - discount (%.2f)", ErrInvalidSale, r.Total, want)
		}
	}
	return nil
}
