package entity

import "time"

// AccountingConnection is the single active link to the external accounting
// tenant, including its OAuth credential.
type AccountingConnection struct {
	ID           int64
	TenantID     string
	TenantName   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the access token expires within d of now
func (c *AccountingConnection) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(d))
}
