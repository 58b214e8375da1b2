package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRecordEncoding(t *testing.T) {
	u := UserRecord{ID: "1", Username: "bob", Message: "yo"}

	p, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"bob","id":"1","message":"yo"}`, string(p))
	assert.Equal(t, `{"username":"bob","id":"1","message":"yo"}`, string(p))
}

func TestUserIDDecoding(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    UserID
		wantErr bool
	}{
		{"number", `{"id":1}`, "1", false},
		{"string", `{"id":"abc"}`, "abc", false},
		{"null", `{"id":null}`, "", false},
		{"missing", `{}`, "", false},
		{"object", `{"id":{}}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u UserRecord
			err := json.Unmarshal([]byte(tt.input), &u)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.ID)
		})
	}
}
