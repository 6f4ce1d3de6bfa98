package pipeline

import (
	"regexp"
	"strings"

	"github.com/IshaanNene/clearancesync/internal/types"
)

var (
	openBoxRe = regexp.MustCompile(`(?i)\bopen[\s-]*box\b`)
	gradeRe   = regexp.MustCompile(`(?i)\bgrade[\s-]+([abc])\b`)
	synonymA  = regexp.MustCompile(`(?i)\bexcellent\b`)
	synonymB  = regexp.MustCompile(`(?i)\bgood\b`)
	synonymC  = regexp.MustCompile(`(?i)\bfair\b`)
)

// gradeRule maps a predicate over the raw listing to a grade.
type gradeRule struct {
	name  string
	match func(raw *types.RawListing) bool
	grade types.Grade
}

// gradeRules is evaluated top to bottom; the first match wins. Structural
// markers come before flag text, which comes before free text.
var gradeRules = []gradeRule{
	{"contract_marker", func(r *types.RawListing) bool { return r.ContractMarker }, types.GradeContract},

	{"flag_open_box", func(r *types.RawListing) bool { return openBoxRe.MatchString(r.FlagText) }, types.GradeOpenBox},
	{"flag_grade_a", letterGrade(func(r *types.RawListing) string { return r.FlagText }, "a"), types.GradeA},
	{"flag_grade_b", letterGrade(func(r *types.RawListing) string { return r.FlagText }, "b"), types.GradeB},
	{"flag_grade_c", letterGrade(func(r *types.RawListing) string { return r.FlagText }, "c"), types.GradeC},

	{"text_grade_a", letterGrade(func(r *types.RawListing) string { return r.FullText }, "a"), types.GradeA},
	{"text_grade_b", letterGrade(func(r *types.RawListing) string { return r.FullText }, "b"), types.GradeB},
	{"text_grade_c", letterGrade(func(r *types.RawListing) string { return r.FullText }, "c"), types.GradeC},
	{"text_open_box", func(r *types.RawListing) bool { return openBoxRe.MatchString(r.FullText) }, types.GradeOpenBox},
	{"text_excellent", func(r *types.RawListing) bool { return synonymA.MatchString(r.FullText) }, types.GradeA},
	{"text_good", func(r *types.RawListing) bool { return synonymB.MatchString(r.FullText) }, types.GradeB},
	{"text_fair", func(r *types.RawListing) bool { return synonymC.MatchString(r.FullText) }, types.GradeC},
}

func letterGrade(text func(*types.RawListing) string, letter string) func(*types.RawListing) bool {
	return func(r *types.RawListing) bool {
		for _, m := range gradeRe.FindAllStringSubmatch(text(r), -1) {
			if strings.EqualFold(m[1], letter) {
				return true
			}
		}
		return false
	}
}

// ClassifyGrade returns the grade of the first matching rule and that rule's
// name, or nil and "" when nothing matches.
func ClassifyGrade(raw *types.RawListing) (*types.Grade, string) {
	for _, rule := range gradeRules {
		if rule.match(raw) {
			return types.GradePtr(rule.grade), rule.name
		}
	}
	return nil, ""
}
