package gateway

import "strings"

// Phone is a payer phone split the way the gateway expects it: a two-digit
// area code and the subscriber number.
type Phone struct {
	AreaCode string `json:"area_code"`
	Number   string `json:"number"`
}

// minimum digits for an area code plus a subscriber number
const minPhoneDigits = 10

// NormalizePhone converts a free-form phone string into the gateway's
// area-code/number split. Non-digits are stripped; a leading country calling
// code is removed when the remaining length exceeds the expected local
// length. Inputs too short to split are reported as not ok and the payer
// phone is simply omitted from the request.
func NormalizePhone(raw, countryCode string, localLen int) (Phone, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if countryCode != "" && localLen > 0 &&
		strings.HasPrefix(digits, countryCode) && len(digits) > localLen {
		digits = digits[len(countryCode):]
	}

	if len(digits) < minPhoneDigits {
		return Phone{}, false
	}

	return Phone{AreaCode: digits[:2], Number: digits[2:]}, true
}
