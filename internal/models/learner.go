package models

import "strconv"

// Row is one ingested record keyed by column name.
type Row map[string]string

// MarkPair is an achieved value against its maximum.
type MarkPair struct {
	Actual float64 `json:"actual"`
	Max    float64 `json:"max"`
}

// String renders the pair as "<actual> / <max>".
func (m MarkPair) String() string {
	return formatNumber(m.Actual) + " / " + formatNumber(m.Max)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CourseResult is the verdict for one learner in one course.
type CourseResult struct {
	ClassroomMarks MarkPair `json:"classroomMarks"`
	LabMarks       MarkPair `json:"labMarks"`
	SessionCount   MarkPair `json:"sessionCount"`
	Eligible       bool     `json:"eligible"`
	Enrolled       bool     `json:"enrolled"`
}

// LearnerRecord aggregates every course verdict for a learner.
type LearnerRecord struct {
	Code            string                      `json:"code"`
	Name            string                      `json:"name"`
	Courses         map[CourseCode]CourseResult `json:"courses"`
	OverallEligible bool                        `json:"overallEligible"`
	Comment         *string                     `json:"comment,omitempty"`
}

// Warning reports a cell that was defaulted or partially ignored during extraction.
type Warning struct {
	Row     int        `json:"row,omitempty"`
	Learner string     `json:"learner,omitempty"`
	Course  CourseCode `json:"course"`
	Field   string     `json:"field"`
	Value   string     `json:"value"`
	Reason  string     `json:"reason"`
}

// SkippedRow records a row that could not be aggregated.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// IngestResult summarises one ingestion run.
type IngestResult struct {
	Learners    []LearnerRecord `json:"learners"`
	Accepted    int             `json:"accepted"`
	Skipped     int             `json:"skipped"`
	SkippedRows []SkippedRow    `json:"skippedRows"`
	Warnings    []Warning       `json:"warnings"`
}
