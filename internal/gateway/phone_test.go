package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhoneStripsCountryCode(t *testing.T) {
	phone, ok := NormalizePhone("55 42 99162-8586", "55", 11)

	assert.True(t, ok)
	assert.Equal(t, "42", phone.AreaCode)
	assert.Equal(t, "991628586", phone.Number)
}

func TestNormalizePhoneLocalNumberKeepsLeadingDigits(t *testing.T) {
	// "55" here is an area code, not a country code: length does not
	// exceed the local length, so nothing is stripped.
	phone, ok := NormalizePhone("(55) 9162-8586", "55", 11)

	assert.True(t, ok)
	assert.Equal(t, "55", phone.AreaCode)
	assert.Equal(t, "91628586", phone.Number)
}

func TestNormalizePhoneTooShort(t *testing.T) {
	_, ok := NormalizePhone("123", "55", 11)
	assert.False(t, ok)
}

func TestNormalizePhoneEmpty(t *testing.T) {
	_, ok := NormalizePhone("", "55", 11)
	assert.False(t, ok)
}

func TestNormalizePhonePunctuationOnly(t *testing.T) {
	_, ok := NormalizePhone("+-() ", "55", 11)
	assert.False(t, ok)
}

func TestNormalizePhoneNoCountryRules(t *testing.T) {
	phone, ok := NormalizePhone("11 98765-4321", "", 0)

	assert.True(t, ok)
	assert.Equal(t, "11", phone.AreaCode)
	assert.Equal(t, "987654321", phone.Number)
}
