package models

// Connection records that an Identity can recover or secure an Account.
type Connection struct {
	ID         string `json:"id"`
	AccountID  string `json:"accountId"`
	IdentityID string `json:"identityId"`
}
