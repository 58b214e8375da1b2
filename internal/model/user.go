package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserRecord holds one user entry as read from the users endpoint or built
// from the submit form.
type UserRecord struct {
	Username string `json:"username"`
	ID       UserID `json:"id"`
	Message  string `json:"message"`
}

// UserID is the record identifier. Form input produces strings while the
// users endpoint returns numbers, so both are accepted when decoding.
type UserID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *UserID) UnmarshalJSON(p []byte) error {
	p = bytes.TrimSpace(p)
	if bytes.Equal(p, []byte("null")) {
		*id = ""
		return nil
	}

	if len(p) > 0 && p[0] == '"' {
		var s string
		if err := json.Unmarshal(p, &s); err != nil {
			return fmt.Errorf("could not decode user id: %w", err)
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(p, &n); err != nil {
		return fmt.Errorf("could not decode user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

