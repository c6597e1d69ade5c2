package pnr

import "errors"

// NumberLength is the fixed length of a PNR number.
const NumberLength = 10

var ErrInvalidNumber = errors.New("invalid PNR format, must be 10 digits")

// ValidateNumber reports whether number is exactly ten ASCII digits.
func ValidateNumber(number string) error {
	if len(number) != NumberLength {
		return ErrInvalidNumber
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return ErrInvalidNumber
		}
	}
	return nil
}
