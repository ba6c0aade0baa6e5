// Package profile defines the user profile domain model.
package profile

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/Strob0t/userprofile/internal/domain"
)

// PhotoFlag is the serialized form of the derived has-photo value.
type PhotoFlag string

const (
	PhotoYes PhotoFlag = "Yes"
	PhotoNo  PhotoFlag = "No"
)

// MinID is the smallest identifier handed out on create.
const MinID int64 = 10000

// Profile is a bank-scoped user profile. HasProfilePhoto is derived on read
// and never persisted.
type Profile struct {
	ID              int64     `json:"id"`
	BankID          int64     `json:"bankId"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	Email           string    `json:"email"`
	HasProfilePhoto PhotoFlag `json:"hasProfilePhoto"`
}

// CacheKey returns the composite cache key "bankId:userId".
func CacheKey(bankID, userID int64) string {
	return strconv.FormatInt(bankID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// CreateRequest is the input for creating a profile. The bank comes from the
// URL; any client-supplied id or photo flag is ignored.
type CreateRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// UpdateRequest carries the mutable fields of a profile.
type UpdateRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Validate checks the CreateRequest and normalizes whitespace.
func (r *CreateRequest) Validate() error {
	r.FirstName, r.LastName, r.Email = trim(r.FirstName), trim(r.LastName), trim(r.Email)
	return validateFields(r.FirstName, r.LastName, r.Email)
}

// Validate checks the UpdateRequest and normalizes whitespace.
func (r *UpdateRequest) Validate() error {
	r.FirstName, r.LastName, r.Email = trim(r.FirstName), trim(r.LastName), trim(r.Email)
	return validateFields(r.FirstName, r.LastName, r.Email)
}

func validateFields(first, last, email string) error {
	if first == "" {
		return fmt.Errorf("%w: firstName is required", domain.ErrValidation)
	}
	if last == "" {
		return fmt.Errorf("%w: lastName is required", domain.ErrValidation)
	}
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email %q is not a valid address", domain.ErrValidation, email)
	}
	return nil
}

func trim(s string) string { return strings.TrimSpace(s) }
