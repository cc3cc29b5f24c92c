package phone

import (
	"errors"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// HomeRegion is the region national-format numbers are assumed to belong to.
const HomeRegion = "GB"

var ErrInvalidNumber = errors.New("phone: invalid number")

// Ofcom reserves these GB ranges for drama and test use. They are not
// allocated, so numbering-plan metadata marks most of them invalid.
var dramaPrefixes = []string{
	"7700900",
	"1134960", "1144960", "1154960", "1164960", "1174960", "1184960",
	"1214960", "1314960", "1414960", "1514960", "1614960", "1914980",
	"2079460", "2920180", "2896496", "1632960",
	"3069990", "8081570", "9098790",
}

// Normalize parses raw as a number dialled from region and returns it in
// E.164 form. The number must be valid under region's numbering plan; a
// number from another country is rejected even when it is well formed.
func Normalize(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidNumber
	}
	if region == "" {
		region = HomeRegion
	}

	num, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return "", ErrInvalidNumber
	}
	if !libphonenumber.IsValidNumberForRegion(num, region) && !isDramaNumber(num, region) {
		return "", ErrInvalidNumber
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

func isDramaNumber(num *libphonenumber.PhoneNumber, region string) bool {
	if region != HomeRegion || num.GetCountryCode() != 44 {
		return false
	}
	nsn := libphonenumber.GetNationalSignificantNumber(num)
	if len(nsn) != 10 {
		return false
	}
	for _, p := range dramaPrefixes {
		if strings.HasPrefix(nsn, p) {
			return true
		}
	}
	return false
}

// Redact keeps the last four digits for logging.
func Redact(number string) string {
	n := len(number)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	return strings.Repeat("*", n-4) + number[n-4:]
}
