package eligibility

import (
	"fmt"

	"github.com/noah-isme/eligibility-report-api/internal/models"
)

// Course pairs a course code with its thresholds.
type Course struct {
	Code     models.CourseCode
	Criteria models.CourseCriteria
}

// Source column suffixes, prefixed by the course code.
const (
	classroomSuffix = " Classroom Internal Marks"
	labSuffix       = " Lab Internal Marks"
	sessionSuffix   = " Completed Session Count"

	ColumnLearnerCode = "Learner Code"
	ColumnLearnerName = "Learner Name"
)

// Field names used in warnings.
const (
	FieldClassroom = "classroom"
	FieldLab       = "lab"
	FieldSession   = "session"
)

// ClassroomColumn returns the classroom marks column for a course.
func ClassroomColumn(code models.CourseCode) string { return string(code) + classroomSuffix }

// LabColumn returns the lab marks column for a course.
func LabColumn(code models.CourseCode) string { return string(code) + labSuffix }

// SessionColumn returns the completed sessions column for a course.
func SessionColumn(code models.CourseCode) string { return string(code) + sessionSuffix }

// DefaultCriteria returns the compiled-in course table in display order.
func DefaultCriteria() []Course {
	return []Course{
		{
			Code: "BS-CIT",
			Criteria: models.CourseCriteria{
				ClassroomMin: 8, ClassroomMax: 20,
				LabMin: 36, LabMax: 60,
				SessionMin: 48, SessionMax: 60,
			},
		},
		{
			Code: "BS-CLS",
			Criteria: models.CourseCriteria{
				ClassroomMin: 8, ClassroomMax: 20,
				LabMin: 36, LabMax: 60,
				SessionMin: 32, SessionMax: 40,
			},
		},
		{
			Code: "BS-CSS",
			Criteria: models.CourseCriteria{
				ClassroomMin: 8, ClassroomMax: 20,
				LabMin: 36, LabMax: 60,
				SessionMin: 16, SessionMax: 20,
			},
		},
	}
}

func validateCourses(courses []Course) error {
	if len(courses) == 0 {
		return fmt.Errorf("at least one course is required")
	}
	seen := make(map[models.CourseCode]struct{}, len(courses))
	for _, course := range courses {
		if course.Code == "" {
			return fmt.Errorf("course code must not be empty")
		}
		if _, dup := seen[course.Code]; dup {
			return fmt.Errorf("duplicate course %s", course.Code)
		}
		seen[course.Code] = struct{}{}
		if err := course.Criteria.Validate(); err != nil {
			return fmt.Errorf("course %s: %w", course.Code, err)
		}
	}
	return nil
}
