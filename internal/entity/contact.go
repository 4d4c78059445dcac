package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrMissingContactID = errors.New("contact id is required")
	ErrInvalidContactID = errors.New("contact id is not a valid identifier")
)

// ContactPayload is the body accepted by the contact endpoint. Every field is
// optional; a JSON null and an absent key are treated alike.
type ContactPayload struct {
	Id        *string `json:"Id"`
	FirstName *string `json:"FirstName"`
	LastName  *string `json:"LastName"`
	Email     *string `json:"Email"`
}

// UnmarshalJSON accepts any JSON scalar as Id. A non-string Id keeps its
// literal text so it is rejected as an invalid id, not as a malformed body.
func (p *ContactPayload) UnmarshalJSON(data []byte) error {
	type plain ContactPayload
	var aux struct {
		plain
		Id json.RawMessage `json:"Id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = ContactPayload(aux.plain)
	p.Id = nil

	raw := bytes.TrimSpace(aux.Id)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		p.Id = &s
	default:
		s := string(raw)
		p.Id = &s
	}
	return nil
}

// ContactID parses Id into the remote identifier.
func (p *ContactPayload) ContactID() (uuid.UUID, error) {
	if p == nil || p.Id == nil || strings.TrimSpace(*p.Id) == "" {
		return uuid.Nil, ErrMissingContactID
	}
	id, err := uuid.Parse(strings.TrimSpace(*p.Id))
	if err != nil {
		return uuid.Nil, ErrInvalidContactID
	}
	return id, nil
}

// Contact is a contact as stored by the CRM.
type Contact struct {
	ID        uuid.UUID
	FirstName *string
	LastName  *string
	Email     *string
}

// DisplayName joins first and last name, skipping empty parts.
func (c Contact) DisplayName() string {
	var parts []string
	for _, p := range []*string{c.FirstName, c.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}

// StringValue dereferences an optional field.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
