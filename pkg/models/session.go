// Package models contains shared data models used across the intelliparse console.
package models

import "encoding/json"

// Session is the locally cached identity of the signed-in user.
// The analysis server is the source of truth; this is only a cache of it.
type Session struct {
	Identity        string `json:"identity"`
	CredentialToken string `json:"credential_token"`
}

// Valid reports whether the session carries enough to authenticate a request.
func (s Session) Valid() bool {
	return s.CredentialToken != ""
}

// Profile is the account document returned by the identity check.
// Email and Plan are lifted out when present; every field the server sent
// is kept in Fields so nothing is dropped on the way to the page layer.
type Profile struct {
	Email  string
	Plan   string
	Fields map[string]any
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	p.Fields = fields
	p.Email, _ = fields["email"].(string)
	p.Plan, _ = fields["plan"].(string)
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+2)
	for k, v := range p.Fields {
		out[k] = v
	}
	if p.Email != "" {
		out["email"] = p.Email
	}
	if p.Plan != "" {
		out["plan"] = p.Plan
	}
	return json.Marshal(out)
}
