package eligibility

import (
	"strings"

	"github.com/noah-isme/eligibility-report-api/internal/models"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
)

// Policy decides which courses count towards overall eligibility.
type Policy string

const (
	// PolicyEnrolled ORs only the courses the learner has data for.
	PolicyEnrolled Policy = "enrolled"
	// PolicyAll ORs every configured course.
	PolicyAll Policy = "all"
)

// ParsePolicy maps a configuration value to a Policy, defaulting to PolicyEnrolled.
func ParsePolicy(raw string) Policy {
	if Policy(strings.ToLower(strings.TrimSpace(raw))) == PolicyAll {
		return PolicyAll
	}
	return PolicyEnrolled
}

// Evaluator turns rows into learner records against a fixed course table.
type Evaluator struct {
	courses []Course
	policy  Policy
}

// NewEvaluator validates the course table and returns an evaluator.
func NewEvaluator(courses []Course, policy Policy) (*Evaluator, error) {
	if err := validateCourses(courses); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course criteria")
	}
	if policy != PolicyAll {
		policy = PolicyEnrolled
	}
	copied := make([]Course, len(courses))
	copy(copied, courses)
	return &Evaluator{courses: copied, policy: policy}, nil
}

// Courses returns the configured courses in order.
func (e *Evaluator) Courses() []Course {
	out := make([]Course, len(e.courses))
	copy(out, e.courses)
	return out
}

// Policy returns the overall eligibility policy in effect.
func (e *Evaluator) Policy() Policy {
	return e.policy
}

// Evaluate applies one course's thresholds to a row. Max values never affect the verdict.
func Evaluate(row models.Row, course Course) (models.CourseResult, []models.Warning) {
	cells := [3]struct {
		field string
		value string
		max   float64
	}{
		{FieldClassroom, row[ClassroomColumn(course.Code)], course.Criteria.ClassroomMax},
		{FieldLab, row[LabColumn(course.Code)], course.Criteria.LabMax},
		{FieldSession, row[SessionColumn(course.Code)], course.Criteria.SessionMax},
	}

	enrolled := false
	for _, cell := range cells {
		if strings.TrimSpace(cell.value) != "" {
			enrolled = true
			break
		}
	}

	var (
		pairs    [3]models.MarkPair
		warnings []models.Warning
	)
	for i, cell := range cells {
		pair, issues := ParseMark(cell.value, cell.max)
		pairs[i] = pair
		if !enrolled {
			continue
		}
		for _, issue := range issues {
			warnings = append(warnings, models.Warning{
				Course: course.Code,
				Field:  cell.field,
				Value:  cell.value,
				Reason: string(issue),
			})
		}
	}

	result := models.CourseResult{
		ClassroomMarks: pairs[0],
		LabMarks:       pairs[1],
		SessionCount:   pairs[2],
		Enrolled:       enrolled,
	}
	result.Eligible = meetsCriteria(result, course.Criteria)

	return result, warnings
}

// Aggregate evaluates every configured course for a row. A row without both learner code and
// name yields an ErrMalformedRow error and no record.
func (e *Evaluator) Aggregate(row models.Row) (models.LearnerRecord, []models.Warning, error) {
	code := strings.TrimSpace(row[ColumnLearnerCode])
	name := strings.TrimSpace(row[ColumnLearnerName])
	if code == "" && name == "" {
		return models.LearnerRecord{}, nil, appErrors.Clone(appErrors.ErrMalformedRow, "row has neither Learner Code nor Learner Name")
	}

	learner := code
	if learner == "" {
		learner = name
	}

	record := models.LearnerRecord{
		Code:    code,
		Name:    name,
		Courses: make(map[models.CourseCode]models.CourseResult, len(e.courses)),
	}

	var warnings []models.Warning
	for _, course := range e.courses {
		result, courseWarnings := Evaluate(row, course)
		record.Courses[course.Code] = result
		for _, w := range courseWarnings {
			w.Learner = learner
			warnings = append(warnings, w)
		}
		if !result.Eligible {
			continue
		}
		if e.policy == PolicyAll || result.Enrolled {
			record.OverallEligible = true
		}
	}

	return record, warnings, nil
}

// Rescore recomputes course and overall verdicts of a record from its stored actual marks.
// A course with any non-zero actual mark counts as enrolled whatever the submitted flag says.
// Configured courses missing from the record are filled in as not enrolled; unknown course
// codes are rejected.
func (e *Evaluator) Rescore(record models.LearnerRecord) (models.LearnerRecord, error) {
	known := make(map[models.CourseCode]struct{}, len(e.courses))
	for _, course := range e.courses {
		known[course.Code] = struct{}{}
	}
	for code := range record.Courses {
		if _, ok := known[code]; !ok {
			return models.LearnerRecord{}, appErrors.Clone(appErrors.ErrValidation, "unknown course "+string(code))
		}
	}

	out := record
	out.Courses = make(map[models.CourseCode]models.CourseResult, len(e.courses))
	out.OverallEligible = false
	for _, course := range e.courses {
		result, ok := record.Courses[course.Code]
		if !ok {
			result = models.CourseResult{
				ClassroomMarks: models.MarkPair{Max: course.Criteria.ClassroomMax},
				LabMarks:       models.MarkPair{Max: course.Criteria.LabMax},
				SessionCount:   models.MarkPair{Max: course.Criteria.SessionMax},
			}
		}
		if hasMarks(result) {
			result.Enrolled = true
		}
		result.Eligible = meetsCriteria(result, course.Criteria)
		out.Courses[course.Code] = result
		if result.Eligible && (e.policy == PolicyAll || result.Enrolled) {
			out.OverallEligible = true
		}
	}
	return out, nil
}

func hasMarks(result models.CourseResult) bool {
	return result.ClassroomMarks.Actual != 0 || result.LabMarks.Actual != 0 || result.SessionCount.Actual != 0
}

// meetsCriteria compares actual values only; maxima are informational.
func meetsCriteria(result models.CourseResult, criteria models.CourseCriteria) bool {
	return result.ClassroomMarks.Actual >= criteria.ClassroomMin &&
		result.LabMarks.Actual >= criteria.LabMin &&
		result.SessionCount.Actual >= criteria.SessionMin
}
