package dto

import "time"

// ReportAccessRequest exchanges the viewer password for a token scoped to one report.
type ReportAccessRequest struct {
	CenterCode string `json:"centerCode" validate:"required"`
	BatchName  string `json:"batchName" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// ReportAccessResponse carries the issued token.
type ReportAccessResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}
