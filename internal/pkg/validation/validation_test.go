package validation

import (
	"testing"

	"impact-lending-backend/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidStellarPublicKey(t *testing.T) {
	assert.True(t, IsValidStellarPublicKey("GAAZI4TCR3TY5OJHCTJC2A4QSY6CJWJH5IAJTGKIN2ER7LBNVKOCCWN7"))
	assert.True(t, IsValidStellarPublicKey("GAAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQDZ7H"))
	// last character changed: checksum mismatch
	assert.False(t, IsValidStellarPublicKey("GAAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQDZ7A"))
	assert.False(t, IsValidStellarPublicKey("SAAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQCAIBAEAQDZ7H"))
	assert.False(t, IsValidStellarPublicKey("GSHORT"))
	assert.False(t, IsValidStellarPublicKey(""))
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, IsValidPassword("s3cret!pass"))
	assert.False(t, IsValidPassword("short1!"))
	assert.False(t, IsValidPassword("noDigits!!"))
	assert.False(t, IsValidPassword("n0symbols1"))
}

type loanBody struct {
	TotalAmount   decimal.Decimal `json:"totalAmount" validate:"gt=0"`
	NumMilestones int             `json:"numMilestones" validate:"min=1"`
	Email         string          `json:"email" validate:"required,email"`
	Role          string          `json:"role" validate:"oneof=PRODUCER VALIDATOR INVESTOR"`
	Key           string          `json:"stellarPublicKey" validate:"stellarkey"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()
	ok := loanBody{
		TotalAmount:   decimal.NewFromInt(3000),
		NumMilestones: 3,
		Email:         "ana@example.com",
		Role:          "PRODUCER",
		Key:           "GAAZI4TCR3TY5OJHCTJC2A4QSY6CJWJH5IAJTGKIN2ER7LBNVKOCCWN7",
	}
	require.NoError(t, v.Struct(ok))

	bad := ok
	bad.TotalAmount = decimal.Zero
	err := v.Struct(bad)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindValidationFailed))
	assert.Equal(t, "totalAmount must be greater than 0", apperrors.Message(err))

	bad = ok
	bad.NumMilestones = 0
	assert.Equal(t, "numMilestones must be at least 1", apperrors.Message(v.Struct(bad)))

	bad = ok
	bad.Role = "ADMIN"
	assert.Equal(t, "role must be one of PRODUCER VALIDATOR INVESTOR", apperrors.Message(v.Struct(bad)))

	bad = ok
	bad.Key = "not-a-key"
	assert.Equal(t, "stellarPublicKey must be a valid Stellar public key", apperrors.Message(v.Struct(bad)))
}
