package appointments

import (
	"time"

	"github.com/openvax/vaxclinic-platform/internal/apperr"
)

const (
	dateLayoutISO   = "2006-01-02"
	dateLayoutSlash = "02/01/2006"
	slotTimeLayout  = "15:04"
)

// ParseDate accepts the two boundary formats (ISO YYYY-MM-DD and DD/MM/YYYY)
// and normalizes to a UTC-midnight time. All internal date handling uses the
// returned value; nothing downstream re-parses strings.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayoutISO, raw, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(dateLayoutSlash, raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Validation("invalid date %q, use YYYY-MM-DD or DD/MM/YYYY", raw)
}

// ParseSlotTime validates an HH:MM slot label and returns it normalized.
func ParseSlotTime(raw string) (string, error) {
	t, err := time.Parse(slotTimeLayout, raw)
	if err != nil {
		return "", apperr.Validation("invalid time %q, use HH:MM", raw)
	}
	return t.Format(slotTimeLayout), nil
}
