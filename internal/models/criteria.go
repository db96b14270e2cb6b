package models

import "fmt"

// CourseCode identifies one course in the closed criteria table.
type CourseCode string

// CourseCriteria holds the minimum marks a learner needs per dimension and the maxima
// used when a cell omits its own denominator.
type CourseCriteria struct {
	ClassroomMin float64 `json:"classroomMin"`
	ClassroomMax float64 `json:"classroomMax"`
	LabMin       float64 `json:"labMin"`
	LabMax       float64 `json:"labMax"`
	SessionMin   float64 `json:"sessionMin"`
	SessionMax   float64 `json:"sessionMax"`
}

// Validate checks that every bound is non-negative and each minimum does not exceed its maximum.
func (c CourseCriteria) Validate() error {
	dims := []struct {
		name     string
		min, max float64
	}{
		{"classroom", c.ClassroomMin, c.ClassroomMax},
		{"lab", c.LabMin, c.LabMax},
		{"session", c.SessionMin, c.SessionMax},
	}
	for _, d := range dims {
		if d.min < 0 || d.max < 0 {
			return fmt.Errorf("%s bounds must be non-negative", d.name)
		}
		if d.min > d.max {
			return fmt.Errorf("%s minimum %v exceeds maximum %v", d.name, d.min, d.max)
		}
	}
	return nil
}
