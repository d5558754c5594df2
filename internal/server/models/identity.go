package models

import (
	"fmt"
	"strings"
)

// IdentityType is the kind of recovery factor an Identity represents.
type IdentityType string

const (
	IdentityMail  IdentityType = "MAIL"
	IdentityPhone IdentityType = "PHONE"
	IdentityAuth  IdentityType = "AUTH"
)

// IdentityTypes lists every valid IdentityType in display order.
var IdentityTypes = []IdentityType{IdentityMail, IdentityPhone, IdentityAuth}

// ParseIdentityType upper-cases s and validates it.
func ParseIdentityType(s string) (IdentityType, error) {
	t := IdentityType(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range IdentityTypes {
		if t == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("identity type must be one of MAIL, PHONE, AUTH, got %q", s)
}

// Identity is a recovery factor (email, phone, authenticator) owned by a
// user. (UserID, Type, Value) is its natural key.
type Identity struct {
	ID     string       `json:"id"`
	Type   IdentityType `json:"type"`
	Value  string       `json:"value"`
	UserID string       `json:"userid"`
}

// IdentityWithAccounts is an Identity with the Accounts it secures.
type IdentityWithAccounts struct {
	Identity
	Accounts []Account `json:"accounts"`
}
