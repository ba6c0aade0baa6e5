// Package photo defines the profile photo model and the has-photo status.
package photo

import (
	"time"

	"github.com/Strob0t/userprofile/internal/domain/profile"
)

// Status is the resolved result of a has-photo probe.
type Status int

const (
	Absent Status = iota
	Present
)

// Flag converts the status to its serialized profile form.
func (s Status) Flag() profile.PhotoFlag {
	if s == Present {
		return profile.PhotoYes
	}
	return profile.PhotoNo
}

func (s Status) String() string {
	if s == Present {
		return "present"
	}
	return "absent"
}

// Photo is a stored profile photo blob for one user.
type Photo struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	ContentType string    `json:"contentType"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
