package mrz

import (
	"strconv"
	"time"
)

const (
	mrzDateLayout = "060102"
	isoDateLayout = "2006-01-02"
)

// DateResolver expands two-digit MRZ years into calendar dates.
type DateResolver struct {
	now func() time.Time
}

// NewDateResolver returns a resolver using now as its reference clock; nil means time.Now.
func NewDateResolver(now func() time.Time) *DateResolver {
	if now == nil {
		now = time.Now
	}
	return &DateResolver{now: now}
}

// BirthDate resolves YYMMDD. A year above the current two-digit year is taken
// as 19YY, anything else as 20YY. Unparseable input is returned unchanged.
func (r *DateResolver) BirthDate(raw string) string {
	yy, ok := twoDigitYear(raw)
	if !ok {
		return raw
	}
	century := 2000
	if yy > r.now().Year()%100 {
		century = 1900
	}
	return formatDate(raw, century+yy)
}

// ExpirationDate resolves YYMMDD as 20YY. Unparseable input is returned unchanged.
func (r *DateResolver) ExpirationDate(raw string) string {
	yy, ok := twoDigitYear(raw)
	if !ok {
		return raw
	}
	return formatDate(raw, 2000+yy)
}

func twoDigitYear(raw string) (int, bool) {
	if len(raw) != len(mrzDateLayout) || !isDigits(raw) {
		return 0, false
	}
	yy, err := strconv.Atoi(raw[0:2])
	if err != nil {
		return 0, false
	}
	return yy, true
}

func formatDate(raw string, year int) string {
	candidate := strconv.Itoa(year) + "-" + raw[2:4] + "-" + raw[4:6]
	t, err := time.Parse(isoDateLayout, candidate)
	if err != nil {
		return raw
	}
	return t.Format(isoDateLayout)
}
