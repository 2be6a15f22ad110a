package validation

import (
	"encoding/base32"
	"encoding/binary"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"impact-lending-backend/internal/pkg/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires at least 8 characters with a letter, a digit and a symbol.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit, hasSpecial := false, false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}

// versionByteAccountID is the StrKey version byte for ed25519 public keys ("G...").
const versionByteAccountID = 6 << 3

// IsValidStellarPublicKey checks the StrKey encoding of an account id: base32, version byte, CRC16-XModem.
func IsValidStellarPublicKey(key string) bool {
	if len(key) != 56 || key[0] != 'G' {
		return false
	}
	raw, err := base32.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != 35 {
		return false
	}
	if raw[0] != versionByteAccountID {
		return false
	}
	payload, checksum := raw[:33], raw[33:]
	return binary.LittleEndian.Uint16(checksum) == crc16XModem(payload)
}

func crc16XModem(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Validator wraps validator/v10 with the project's custom tags and json field names.
type Validator struct{ v *validator.Validate }

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("stellarkey", func(fl validator.FieldLevel) bool {
		return IsValidStellarPublicKey(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return IsValidPassword(fl.Field().String())
	})
	// decimal.Decimal is a struct; compare through its float value.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &Validator{v: v}
}

// Struct validates s and returns a ValidationFailed error naming the first offending field.
func (cv *Validator) Struct(s interface{}) error {
	err := cv.v.Struct(s)
	if err == nil {
		return nil
	}
	ve, ok := err.(validator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return apperrors.ValidationFailed("Invalid request body")
	}
	return apperrors.ValidationFailed(fieldMessage(ve[0]))
}

func fieldMessage(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "oneof":
		return field + " must be one of " + e.Param()
	case "gt":
		return field + " must be greater than " + e.Param()
	case "gte", "min":
		return field + " must be at least " + e.Param()
	case "max", "lte":
		return field + " must be at most " + e.Param()
	case "stellarkey":
		return field + " must be a valid Stellar public key"
	case "password":
		return field + " must be at least 8 characters with a letter, a number and a symbol"
	default:
		return field + " is invalid"
	}
}
