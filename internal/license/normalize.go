package license

import (
	"strings"

	"licensescan/internal"
	"licensescan/internal/util"
)

const (
	CodeLastName     = "DCS"
	CodeGivenNames   = "DAC"
	CodeMiddleName   = "DAD"
	CodeStreet       = "DAG"
	CodeCity         = "DAI"
	CodeState        = "DAJ"
	CodePostalCode   = "DAK"
	CodeLicenseNo    = "DAQ"
	CodeDateOfBirth  = "DBB"
	CodeIssueDate    = "DBD"
	CodeExpiryDate   = "DBA"
	CodeHeight       = "DAU"
	CodeLicenseClass = "DCA"
	CodeCountry      = "DCG"

	DefaultCountry = "CAN"
)

var KnownCodes = []string{
	CodeLastName, CodeGivenNames, CodeMiddleName, CodeStreet, CodeCity, CodeState, CodePostalCode,
	CodeLicenseNo, CodeDateOfBirth, CodeIssueDate, CodeExpiryDate, CodeHeight, CodeLicenseClass, CodeCountry,
}

type Result struct {
	Student    internal.StudentRecord `json:"student"`
	LicenseRaw internal.LicenseRaw    `json:"license_raw"`
}

func Decode(raw string) Result {
	return Normalize(Segment(raw))
}

func Normalize(fields FieldMap) Result {
	lastName := fields.Get(CodeLastName)
	givenNames := fields.Get(CodeGivenNames)
	street := fields.Get(CodeStreet)
	city := fields.Get(CodeCity)
	state := fields.Get(CodeState)
	postal := CleanPostalCode(fields.Get(CodePostalCode))
	licenseNumber := CleanLicenseNumber(fields.Get(CodeLicenseNo))
	dateOfBirth := FormatDate(fields.Get(CodeDateOfBirth))

	country := fields.Get(CodeCountry)
	if country == "" {
		country = DefaultCountry
	}

	firstName, middleName := SplitGivenNames(givenNames, fields.Get(CodeMiddleName))

	student := internal.StudentRecord{
		Name:          util.JoinNonEmpty(" ", firstName, middleName, lastName),
		LicenseNumber: licenseNumber,
		DateOfBirth:   dateOfBirth,
		Address:       FormatAddress(street, city, state, postal),
		Status:        internal.StatusActive,
	}

	raw := internal.LicenseRaw{
		FirstName:     firstName,
		MiddleName:    middleName,
		LastName:      lastName,
		Street:        street,
		City:          city,
		State:         state,
		PostalCode:    postal,
		LicenseNumber: licenseNumber,
		DOB:           dateOfBirth,
		IssueDate:     FormatDate(fields.Get(CodeIssueDate)),
		ExpiryDate:    FormatDate(fields.Get(CodeExpiryDate)),
		Height:        fields.Get(CodeHeight),
		LicenseClass:  fields.Get(CodeLicenseClass),
		Country:       country,
	}

	return Result{Student: student, LicenseRaw: raw}
}

func CleanPostalCode(raw string) string {
	return strings.TrimSpace(strings.TrimRight(raw, "."))
}

func CleanLicenseNumber(raw string) string {
	return util.AlnumOnly(raw)
}

func FormatDate(raw string) string {
	digits := util.DigitsOnly(raw)
	if len(digits) != 8 {
		return digits
	}
	return digits[0:4] + "-" + digits[4:6] + "-" + digits[6:8]
}

func SplitGivenNames(givenNames, explicitMiddle string) (first, middle string) {
	middle = explicitMiddle
	parts := strings.Fields(givenNames)
	if len(parts) == 0 {
		return "", middle
	}
	first = parts[0]
	if middle == "" && len(parts) > 1 {
		middle = strings.Join(parts[1:], " ")
	}
	return first, middle
}

func FormatAddress(street, city, state, postal string) string {
	cityLine := util.JoinNonEmpty(" ", city, state, postal)
	return util.JoinNonEmpty(", ", street, cityLine)
}
