package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	// ReportFileExt is appended to the key token to form the blob name.
	ReportFileExt = ".json"
	// KeySeparator joins center code and batch name in the blob name.
	KeySeparator = "_"

	maxKeyPartLength = 64
	reservedKeyChars = `/\?#%*:"<>|`
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportKey identifies a persisted report.
type ReportKey struct {
	CenterCode string `json:"centerCode"`
	BatchName  string `json:"batchName"`
}

// Token returns "<centerCode>_<batchName>".
func (k ReportKey) Token() string {
	return k.CenterCode + KeySeparator + k.BatchName
}

// FileName returns the logical blob name for the key.
func (k ReportKey) FileName() string {
	return k.Token() + ReportFileExt
}

func (k ReportKey) String() string {
	return k.Token()
}

// Validate rejects keys that cannot be stored or listed back unambiguously.
func (k ReportKey) Validate() error {
	if err := ValidateKeyPart(k.CenterCode); err != nil {
		return fmt.Errorf("centerCode: %w", err)
	}
	if strings.Contains(k.CenterCode, KeySeparator) {
		return fmt.Errorf("centerCode: must not contain %q", KeySeparator)
	}
	if err := ValidateKeyPart(k.BatchName); err != nil {
		return fmt.Errorf("batchName: %w", err)
	}
	return nil
}

// ValidateKeyPart checks one half of a report key against the backend naming rules.
func ValidateKeyPart(part string) error {
	if part == "" {
		return fmt.Errorf("must not be empty")
	}
	if len(part) > maxKeyPartLength {
		return fmt.Errorf("must be at most %d characters", maxKeyPartLength)
	}
	if strings.TrimSpace(part) != part {
		return fmt.Errorf("must not start or end with whitespace")
	}
	if part == "." || part == ".." {
		return fmt.Errorf("must not be a relative path element")
	}
	for _, r := range part {
		if unicode.IsControl(r) {
			return fmt.Errorf("must not contain control characters")
		}
		if strings.ContainsRune(reservedKeyChars, r) {
			return fmt.Errorf("must not contain %q", r)
		}
	}
	return nil
}

// ParseReportFileName recovers a key from a blob name, splitting on the first separator.
func ParseReportFileName(name string) (ReportKey, bool) {
	token, ok := strings.CutSuffix(name, ReportFileExt)
	if !ok {
		return ReportKey{}, false
	}
	center, batch, ok := strings.Cut(token, KeySeparator)
	if !ok || center == "" || batch == "" {
		return ReportKey{}, false
	}
	return ReportKey{CenterCode: center, BatchName: batch}, true
}

// Report is the durable entity persisted per key.
type Report struct {
	Key        ReportKey       `json:"key"`
	UploadedBy string          `json:"uploadedBy"`
	UploadDate time.Time       `json:"uploadDate"`
	Learners   []LearnerRecord `json:"learners"`
}

// ReportDocument is the serialised form of a Report.
type ReportDocument struct {
	CenterCode string          `json:"centerCode"`
	BatchName  string          `json:"batchName"`
	UploadedBy string          `json:"uploadedBy"`
	UploadDate string          `json:"uploadDate"`
	Data       []LearnerRecord `json:"data"`
}

// ToDocument converts the report into its persisted form.
func (r Report) ToDocument() ReportDocument {
	data := r.Learners
	if data == nil {
		data = []LearnerRecord{}
	}
	return ReportDocument{
		CenterCode: r.Key.CenterCode,
		BatchName:  r.Key.BatchName,
		UploadedBy: r.UploadedBy,
		UploadDate: r.UploadDate.UTC().Format(time.RFC3339Nano),
		Data:       data,
	}
}

// ToReport converts a persisted document back into a Report.
func (d ReportDocument) ToReport() (Report, error) {
	uploaded, err := time.Parse(time.RFC3339Nano, d.UploadDate)
	if err != nil {
		return Report{}, fmt.Errorf("parse uploadDate: %w", err)
	}
	return Report{
		Key:        ReportKey{CenterCode: d.CenterCode, BatchName: d.BatchName},
		UploadedBy: d.UploadedBy,
		UploadDate: uploaded.UTC(),
		Learners:   d.Data,
	}, nil
}

// CenterReports groups the batches stored for one center.
type CenterReports struct {
	CenterCode string   `json:"centerCode"`
	Batches    []string `json:"batches"`
}
