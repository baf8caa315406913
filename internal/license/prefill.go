package license

import "licensescan/internal"

func Prefill(draft, scanned internal.StudentRecord) internal.StudentRecord {
	out := draft
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}

	fill(&out.Name, scanned.Name)
	fill(&out.Email, scanned.Email)
	fill(&out.Phone, scanned.Phone)
	fill(&out.LicenseNumber, scanned.LicenseNumber)
	fill(&out.DateOfBirth, scanned.DateOfBirth)
	fill(&out.Address, scanned.Address)
	fill(&out.EmergencyContact, scanned.EmergencyContact)
	fill(&out.EmergencyPhone, scanned.EmergencyPhone)
	fill(&out.Status, scanned.Status)

	if out.InstructorID == nil && scanned.InstructorID != nil {
		id := *scanned.InstructorID
		out.InstructorID = &id
	}
	return out
}
