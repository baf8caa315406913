package pipeline

import (
	"sort"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/roster"
	"licensescan/internal/util"
)

const (
	maxCandidates  = 5
	maxFuzzyScan   = 1500
	dobBonus       = 0.05
	dobMismatchMul = 0.9
)

type Matcher struct {
	cfg    config.Config
	index  *roster.Index
	metric *metrics.JaroWinkler
}

func NewMatcher(cfg config.Config, students []internal.StudentRecord) *Matcher {
	return &Matcher{cfg: cfg, index: roster.BuildIndex(students), metric: metrics.NewJaroWinkler()}
}

func (m *Matcher) Match(student internal.StudentRecord) internal.MatchResult {
	if license := util.NormalizeLicense(student.LicenseNumber); license != "" {
		byLicense := m.index.ByLicense[license]
		if len(byLicense) == 1 {
			s := byLicense[0]
			return internal.MatchResult{
				Status:     internal.MatchOK,
				Confidence: 0.99,
				Reason:     internal.ReasonLicense,
				Student:    &s,
				Candidates: toCandidates(byLicense, 0.99),
			}
		}
		if len(byLicense) > 1 {
			return internal.MatchResult{
				Status:     internal.MatchReview,
				Confidence: 0.80,
				Reason:     internal.ReasonLicense,
				Candidates: toCandidates(byLicense, 0.80),
			}
		}
	}

	name := util.NormalizeName(student.Name)
	if name == "" {
		return notFound(0, []internal.MatchCandidate{})
	}

	candidates := m.rankCandidates(name, student.DateOfBirth)
	if len(candidates) == 0 {
		return notFound(0, []internal.MatchCandidate{})
	}

	top1 := candidates[0]
	gap := top1.Score
	if len(candidates) > 1 {
		gap = top1.Score - candidates[1].Score
	}

	best := m.index.StudentsByID[top1.ID]
	switch {
	case top1.Score >= m.cfg.MatchOKThreshold && gap >= m.cfg.MatchGapThreshold:
		return internal.MatchResult{Status: internal.MatchOK, Confidence: top1.Score, Reason: internal.ReasonName, Student: &best, Candidates: candidates}
	case top1.Score >= m.cfg.MatchReviewThreshold:
		return internal.MatchResult{Status: internal.MatchReview, Confidence: top1.Score, Reason: internal.ReasonName, Student: &best, Candidates: candidates}
	default:
		return notFound(top1.Score, candidates)
	}
}

func notFound(confidence float64, candidates []internal.MatchCandidate) internal.MatchResult {
	return internal.MatchResult{Status: internal.MatchNotFound, Confidence: confidence, Reason: internal.ReasonNone, Candidates: candidates}
}

func (m *Matcher) fallbackIDs() []int {
	all := make([]int, 0, len(m.index.StudentsByID))
	for id := range m.index.StudentsByID {
		all = append(all, id)
	}
	sort.Ints(all)
	if len(all) > maxFuzzyScan {
		all = all[:maxFuzzyScan]
	}
	return all
}

func (m *Matcher) rankCandidates(name, dob string) []internal.MatchCandidate {
	ids := map[int]struct{}{}
	for _, token := range util.Tokenize(name) {
		for id := range m.index.TokenToStudentIDs[token] {
			ids[id] = struct{}{}
		}
	}

	if len(ids) == 0 {
		for _, id := range m.fallbackIDs() {
			ids[id] = struct{}{}
		}
	}

	out := make([]internal.MatchCandidate, 0, len(ids))
	for id := range ids {
		s := m.index.StudentsByID[id]
		score := m.scoreName(name, m.index.NormalizedNameByID[id])
		if dob != "" && s.DateOfBirth != "" {
			if dob == s.DateOfBirth {
				score += dobBonus
			} else {
				score *= dobMismatchMul
			}
		}
		if score > 1 {
			score = 1
		}
		out = append(out, internal.MatchCandidate{ID: id, Name: s.Name, LicenseNumber: s.LicenseNumber, Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

func (m *Matcher) scoreName(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	jw := strutil.Similarity(query, candidate, m.metric)
	return 0.5*jw + 0.5*util.DiceCoefficient(query, candidate)
}

func toCandidates(students []internal.StudentRecord, score float64) []internal.MatchCandidate {
	limit := len(students)
	if limit > maxCandidates {
		limit = maxCandidates
	}
	out := make([]internal.MatchCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, internal.MatchCandidate{
			ID:            *students[i].ID,
			Name:          students[i].Name,
			LicenseNumber: students[i].LicenseNumber,
			Score:         score,
		})
	}
	return out
}
