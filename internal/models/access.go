package models

import "github.com/golang-jwt/jwt/v5"

// ReportAccessClaims is the payload of a report access token.
type ReportAccessClaims struct {
	CenterCode string `json:"center_code"`
	BatchName  string `json:"batch_name"`
	jwt.RegisteredClaims
}

// Key returns the report key the token grants access to.
func (c *ReportAccessClaims) Key() ReportKey {
	return ReportKey{CenterCode: c.CenterCode, BatchName: c.BatchName}
}
