package identity

import (
	"strings"
	"time"

	"github.com/example/gigwork/internal/acquisition"
	"github.com/example/gigwork/internal/mrz"
)

// ImageInfo reports what happened to the document image after parsing.
type ImageInfo struct {
	OriginalFilename string  `json:"originalFilename"`
	NewFilename      *string `json:"newFilename"`
	ImagePath        string  `json:"imagePath"`
	Renamed          bool    `json:"renamed"`
	RenameError      string  `json:"renameError,omitempty"`
	Reason           string  `json:"reason,omitempty"`
}

// RawFields are the parser fields echoed back on request.
type RawFields struct {
	mrz.Fields
	Errors []mrz.FieldError `json:"errors,omitempty"`
}

// Identification is the document holder data in the shape clients consume.
// Absent values encode as null.
type Identification struct {
	Format               mrz.Format `json:"format"`
	Valid                bool       `json:"valid"`
	PassportNumber       *string    `json:"passportNumber"`
	FirstName            *string    `json:"firstName"`
	LastName             *string    `json:"lastName"`
	Sex                  *string    `json:"sex"`
	CountryOfCitizenship *string    `json:"countryOfCitizenship"`
	CountryOfPassport    *string    `json:"countryOfPassport"`
	BirthDate            *string    `json:"birthDate"`
	ExpirationDate       *string    `json:"expirationDate"`
	ImageInfo            ImageInfo  `json:"imageInfo"`
	Origin               *RawFields `json:"origin,omitempty"`
}

// Result is the payload of a successful identification.
type Result struct {
	MRZ      string          `json:"mrz"`
	Passport *Identification `json:"passport"`

	Source    acquisition.Origin `json:"-"`
	ImageSHA1 string             `json:"-"`
	Elapsed   time.Duration      `json:"-"`
}

func (s *Service) assemble(record *mrz.Record, includeOrigin bool) *Identification {
	f := record.Fields
	id := &Identification{
		Format:               record.Format,
		Valid:                record.Valid,
		PassportNumber:       nullable(f.DocumentNumber),
		FirstName:            nullable(f.FirstName),
		LastName:             nullable(f.LastName),
		Sex:                  nullable(capitalize(f.Sex)),
		CountryOfCitizenship: nullable(f.Nationality),
		CountryOfPassport:    nullable(f.IssuingState),
	}
	if f.BirthDate != "" {
		id.BirthDate = nullable(s.dates.BirthDate(f.BirthDate))
	}
	if f.ExpirationDate != "" {
		id.ExpirationDate = nullable(s.dates.ExpirationDate(f.ExpirationDate))
	}
	if includeOrigin {
		id.Origin = &RawFields{Fields: f, Errors: record.Errors}
	}
	return id
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
