package services

import (
	"github.com/andrii-malakhovtsev/accountmap/internal/common"
)

// IdentityInput names an identity either by ID or by (type, value). Missing
// (type, value) pairs are created on the fly.
type IdentityInput struct {
	ID    string `json:"id" validate:"omitempty,uuid"`
	Type  string `json:"type" validate:"required_without=ID"`
	Value string `json:"value" validate:"required_without=ID,max=512"`
}

// CreateAccountInput is the body of an account creation request.
type CreateAccountInput struct {
	Name       string          `json:"name" validate:"notblank,max=256"`
	Username   *string         `json:"username"`
	Notes      *string         `json:"notes"`
	Categories []string        `json:"categories"`
	Identities []IdentityInput `json:"identities" validate:"dive"`
}

// UpdateAccountInput is a partial account update. Username and notes may be
// set to null; name may not.
type UpdateAccountInput struct {
	Name       common.Optional[string]   `json:"name"`
	Username   common.Optional[string]   `json:"username"`
	Notes      common.Optional[string]   `json:"notes"`
	Categories common.Optional[[]string] `json:"categories"`
}

func (in UpdateAccountInput) empty() bool {
	return !in.Name.Set && !in.Username.Set && !in.Notes.Set && !in.Categories.Set
}

// CreateIdentityInput is the body of an identity creation request.
type CreateIdentityInput struct {
	Type  string `json:"type" validate:"notblank"`
	Value string `json:"value" validate:"notblank,max=512"`
}

// UpdateIdentityInput is a partial identity update.
type UpdateIdentityInput struct {
	Type  common.Optional[string] `json:"type"`
	Value common.Optional[string] `json:"value"`
}
