package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"licensescan/internal"
	"licensescan/internal/util"
)

var exportHeaders = []string{
	"scan_id", "source", "ref", "status", "match_status", "confidence", "match_reason",
	"name", "license_number", "date_of_birth", "address", "student_status",
	"first_name", "middle_name", "last_name", "street", "city", "state", "postal_code",
	"issue_date", "expiry_date", "height", "license_class", "country",
	"roster_id", "roster_name", "remote_student_id", "created_at",
}

func ExportScansToXLSX(rows []internal.ScanRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		var rosterID *int
		rosterName := ""
		if row.Match.Student != nil {
			rosterID = row.Match.Student.ID
			rosterName = row.Match.Student.Name
		}

		raw := row.LicenseRaw
		values := []any{
			row.ID, string(row.Source), row.Ref, string(row.Status),
			string(row.Match.Status), row.Match.Confidence, string(row.Match.Reason),
			row.Student.Name, row.Student.LicenseNumber, row.Student.DateOfBirth, row.Student.Address, row.Student.Status,
			raw.FirstName, raw.MiddleName, raw.LastName, raw.Street, raw.City, raw.State, raw.PostalCode,
			raw.IssueDate, raw.ExpiryDate, raw.Height, raw.LicenseClass, raw.Country,
			util.DerefInt(rosterID), rosterName, util.DerefInt(row.RemoteStudentID), row.CreatedAt,
		}
		for c, v := range values {
			set(c+1, v)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
