package roster

import (
	"licensescan/internal"
	"licensescan/internal/util"
)

type Index struct {
	StudentsByID       map[int]internal.StudentRecord
	ByLicense          map[string][]internal.StudentRecord
	ByName             map[string][]internal.StudentRecord
	TokenToStudentIDs  map[string]map[int]struct{}
	NormalizedNameByID map[int]string
}

func BuildIndex(students []internal.StudentRecord) *Index {
	idx := &Index{
		StudentsByID:       map[int]internal.StudentRecord{},
		ByLicense:          map[string][]internal.StudentRecord{},
		ByName:             map[string][]internal.StudentRecord{},
		TokenToStudentIDs:  map[string]map[int]struct{}{},
		NormalizedNameByID: map[int]string{},
	}

	for _, s := range students {
		if s.ID == nil {
			continue
		}
		id := *s.ID
		idx.StudentsByID[id] = s

		if license := util.NormalizeLicense(s.LicenseNumber); license != "" {
			idx.ByLicense[license] = append(idx.ByLicense[license], s)
		}

		name := util.NormalizeName(s.Name)
		idx.NormalizedNameByID[id] = name
		if name != "" {
			idx.ByName[name] = append(idx.ByName[name], s)
		}

		for _, token := range util.Tokenize(s.Name) {
			if _, ok := idx.TokenToStudentIDs[token]; !ok {
				idx.TokenToStudentIDs[token] = map[int]struct{}{}
			}
			idx.TokenToStudentIDs[token][id] = struct{}{}
		}
	}

	return idx
}

func (idx *Index) Len() int {
	return len(idx.StudentsByID)
}
