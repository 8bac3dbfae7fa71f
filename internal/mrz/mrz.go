// Package mrz parses ICAO 9303 machine readable zones (TD1, TD2, TD3 and both visa layouts).
//
// A structurally broken MRZ is an error. Check digit mismatches are not: they clear
// Record.Valid and are listed in Record.Errors.
package mrz

import (
	"errors"
	"fmt"
	"strings"
)

// Alphabet is every character an MRZ line may contain.
const Alphabet = "<0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Filler pads unused positions.
const Filler = '<'

// Format identifies the MRZ layout.
type Format string

const (
	FormatTD1  Format = "TD1"
	FormatTD2  Format = "TD2"
	FormatTD3  Format = "TD3"
	FormatMRVA Format = "MRVA"
	FormatMRVB Format = "MRVB"
)

// ErrInvalidStructure is wrapped by every parse failure.
var ErrInvalidStructure = errors.New("invalid mrz structure")

// Fields are the decoded values. Empty means absent.
// BirthDate and ExpirationDate keep the raw YYMMDD text.
type Fields struct {
	DocumentCode             string `json:"documentCode,omitempty"`
	IssuingState             string `json:"issuingState,omitempty"`
	LastName                 string `json:"lastName,omitempty"`
	FirstName                string `json:"firstName,omitempty"`
	DocumentNumber           string `json:"documentNumber,omitempty"`
	DocumentNumberCheckDigit string `json:"documentNumberCheckDigit,omitempty"`
	Nationality              string `json:"nationality,omitempty"`
	BirthDate                string `json:"birthDate,omitempty"`
	BirthDateCheckDigit      string `json:"birthDateCheckDigit,omitempty"`
	Sex                      string `json:"sex,omitempty"`
	ExpirationDate           string `json:"expirationDate,omitempty"`
	ExpirationDateCheckDigit string `json:"expirationDateCheckDigit,omitempty"`
	PersonalNumber           string `json:"personalNumber,omitempty"`
	PersonalNumberCheckDigit string `json:"personalNumberCheckDigit,omitempty"`
	CompositeCheckDigit      string `json:"compositeCheckDigit,omitempty"`
	Optional1                string `json:"optional1,omitempty"`
	Optional2                string `json:"optional2,omitempty"`
}

// FieldError describes one field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Record is a parsed MRZ.
type Record struct {
	Format Format       `json:"format"`
	Valid  bool         `json:"valid"`
	Fields Fields       `json:"fields"`
	Errors []FieldError `json:"errors,omitempty"`
}

// ParseText splits OCR output on newlines and parses it.
func ParseText(text string) (*Record, error) {
	return Parse(strings.Split(text, "\n"))
}

// Parse decodes the given MRZ lines. Blank lines and inner spaces are ignored.
func Parse(lines []string) (*Record, error) {
	cleaned := normalizeLines(lines)
	for i, line := range cleaned {
		if idx := strings.IndexFunc(line, func(r rune) bool { return !strings.ContainsRune(Alphabet, r) }); idx >= 0 {
			return nil, fmt.Errorf("%w: line %d has invalid character %q", ErrInvalidStructure, i+1, line[idx])
		}
	}

	switch {
	case len(cleaned) == 3 && allLength(cleaned, 30):
		return parseTD1(cleaned), nil
	case len(cleaned) == 2 && allLength(cleaned, 36):
		return parseTD2(cleaned, cleaned[0][0] == 'V'), nil
	case len(cleaned) == 2 && allLength(cleaned, 44):
		return parseTD3(cleaned, cleaned[0][0] == 'V'), nil
	}
	return nil, fmt.Errorf("%w: unsupported layout of %d lines with lengths %v", ErrInvalidStructure, len(cleaned), lineLengths(cleaned))
}

func normalizeLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), "")
		if line == "" {
			continue
		}
		out = append(out, strings.ToUpper(line))
	}
	return out
}

func allLength(lines []string, n int) bool {
	for _, line := range lines {
		if len(line) != n {
			return false
		}
	}
	return true
}

func lineLengths(lines []string) []int {
	lengths := make([]int, len(lines))
	for i, line := range lines {
		lengths[i] = len(line)
	}
	return lengths
}

func parseTD1(lines []string) *Record {
	l1, l2, l3 := lines[0], lines[1], lines[2]
	b := newBuilder(FormatTD1)
	b.header(l1[0:2], l1[2:5])

	number, check, optional := l1[5:14], l1[14], l1[15:30]
	if check == Filler {
		// Document numbers longer than nine characters continue in the optional field,
		// the last character before the first filler being the check digit.
		overflow := optional
		if idx := strings.IndexByte(optional, Filler); idx >= 0 {
			overflow = optional[:idx]
		}
		if len(overflow) > 0 {
			number += overflow[:len(overflow)-1]
			check = overflow[len(overflow)-1]
			optional = optional[len(overflow):]
		}
	}
	b.documentNumber(number, check)
	b.rec.Fields.Optional1 = trimFiller(optional)

	b.birthDate(l2[0:6], l2[6])
	b.sex(l2[7])
	b.expirationDate(l2[8:14], l2[14])
	b.rec.Fields.Nationality = b.country("nationality", l2[15:18])
	b.rec.Fields.Optional2 = trimFiller(l2[18:29])
	b.composite(l1[5:30]+l2[0:7]+l2[8:15]+l2[18:29], l2[29])

	b.names(l3)
	return b.rec
}

func parseTD2(lines []string, visa bool) *Record {
	l1, l2 := lines[0], lines[1]
	format := FormatTD2
	if visa {
		format = FormatMRVB
	}
	b := newBuilder(format)
	b.header(l1[0:2], l1[2:5])
	b.names(l1[5:36])
	b.commonSecondLine(l2)
	if visa {
		b.rec.Fields.Optional1 = trimFiller(l2[28:36])
		return b.rec
	}
	b.rec.Fields.Optional1 = trimFiller(l2[28:35])
	b.composite(l2[0:10]+l2[13:20]+l2[21:35], l2[35])
	return b.rec
}

func parseTD3(lines []string, visa bool) *Record {
	l1, l2 := lines[0], lines[1]
	format := FormatTD3
	if visa {
		format = FormatMRVA
	}
	b := newBuilder(format)
	b.header(l1[0:2], l1[2:5])
	b.names(l1[5:44])
	b.commonSecondLine(l2)
	if visa {
		b.rec.Fields.Optional1 = trimFiller(l2[28:44])
		return b.rec
	}
	b.personalNumber(l2[28:42], l2[42])
	b.composite(l2[0:10]+l2[13:20]+l2[21:43], l2[43])
	return b.rec
}

type builder struct {
	rec *Record
}

func newBuilder(format Format) *builder {
	return &builder{rec: &Record{Format: format, Valid: true}}
}

func (b *builder) fail(field, message string) {
	b.rec.Valid = false
	b.rec.Errors = append(b.rec.Errors, FieldError{Field: field, Message: message})
}

func (b *builder) header(code, state string) {
	b.rec.Fields.DocumentCode = trimFiller(code)
	if b.rec.Fields.DocumentCode == "" || !isAlpha(b.rec.Fields.DocumentCode) {
		b.fail("documentCode", "invalid document code")
	}
	b.rec.Fields.IssuingState = b.country("issuingState", state)
}

// commonSecondLine decodes positions 0-27 shared by TD2, TD3 and both visa formats.
func (b *builder) commonSecondLine(l2 string) {
	b.documentNumber(l2[0:9], l2[9])
	b.rec.Fields.Nationality = b.country("nationality", l2[10:13])
	b.birthDate(l2[13:19], l2[19])
	b.sex(l2[20])
	b.expirationDate(l2[21:27], l2[27])
}

func (b *builder) country(field, raw string) string {
	value := trimFiller(raw)
	if value == "" || !isAlpha(value) {
		b.fail(field, "invalid country code")
	}
	return value
}

func (b *builder) names(raw string) {
	last, first := splitName(raw)
	b.rec.Fields.LastName = last
	b.rec.Fields.FirstName = first
	if last == "" {
		b.fail("lastName", "missing primary identifier")
	}
	if strings.ContainsAny(raw, "0123456789") {
		b.fail("lastName", "name contains digits")
	}
}

func (b *builder) documentNumber(raw string, check byte) {
	b.rec.Fields.DocumentNumber = trimFiller(raw)
	b.rec.Fields.DocumentNumberCheckDigit = string(check)
	if b.rec.Fields.DocumentNumber == "" {
		b.fail("documentNumber", "missing document number")
		return
	}
	if !verifyCheckDigit(raw, check) {
		b.fail("documentNumberCheckDigit", "check digit mismatch")
	}
}

func (b *builder) birthDate(raw string, check byte) {
	b.rec.Fields.BirthDate = b.date("birthDate", raw)
	b.rec.Fields.BirthDateCheckDigit = string(check)
	if !verifyCheckDigit(raw, check) {
		b.fail("birthDateCheckDigit", "check digit mismatch")
	}
}

func (b *builder) expirationDate(raw string, check byte) {
	b.rec.Fields.ExpirationDate = b.date("expirationDate", raw)
	b.rec.Fields.ExpirationDateCheckDigit = string(check)
	if !verifyCheckDigit(raw, check) {
		b.fail("expirationDateCheckDigit", "check digit mismatch")
	}
}

// date keeps the raw YYMMDD text when it is numeric, flagging impossible months or days.
func (b *builder) date(field, raw string) string {
	if !isDigits(raw) {
		b.fail(field, "date must be numeric")
		return ""
	}
	month := int(raw[2]-'0')*10 + int(raw[3]-'0')
	day := int(raw[4]-'0')*10 + int(raw[5]-'0')
	if month < 1 || month > 12 || day < 1 || day > 31 {
		b.fail(field, "date out of range")
	}
	return raw
}

func (b *builder) sex(c byte) {
	switch c {
	case 'M':
		b.rec.Fields.Sex = "male"
	case 'F':
		b.rec.Fields.Sex = "female"
	case 'X', Filler:
		b.rec.Fields.Sex = "nonspecified"
	default:
		b.fail("sex", fmt.Sprintf("invalid sex %q", c))
	}
}

func (b *builder) personalNumber(raw string, check byte) {
	b.rec.Fields.PersonalNumber = trimFiller(raw)
	b.rec.Fields.PersonalNumberCheckDigit = string(check)
	if b.rec.Fields.PersonalNumber == "" && (check == Filler || check == '0') {
		return
	}
	if !verifyCheckDigit(raw, check) {
		b.fail("personalNumberCheckDigit", "check digit mismatch")
	}
}

func (b *builder) composite(data string, check byte) {
	b.rec.Fields.CompositeCheckDigit = string(check)
	if !verifyCheckDigit(data, check) {
		b.fail("compositeCheckDigit", "check digit mismatch")
	}
}

func splitName(raw string) (last, first string) {
	raw = strings.TrimRight(raw, string(Filler))
	parts := strings.SplitN(raw, "<<", 2)
	last = fillerToSpace(parts[0])
	if len(parts) == 2 {
		first = fillerToSpace(parts[1])
	}
	return last, first
}

func fillerToSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == Filler }), " ")
}

func trimFiller(s string) string {
	return strings.Trim(s, string(Filler))
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		if (s[i] < 'A' || s[i] > 'Z') && s[i] != Filler {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
