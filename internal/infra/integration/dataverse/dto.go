package dataverse

import "github.com/google/uuid"

// ContactRecord is the writable part of a Dataverse contact row.
type ContactRecord struct {
	FirstName     *string `json:"firstname"`
	LastName      *string `json:"lastname"`
	EmailAddress1 *string `json:"emailaddress1"`
}

// ContactRow is a contact as returned by a query.
type ContactRow struct {
	ContactID     uuid.UUID `json:"contactid"`
	FirstName     *string   `json:"firstname"`
	LastName      *string   `json:"lastname"`
	EmailAddress1 *string   `json:"emailaddress1"`
}

type contactCollection struct {
	Value []ContactRow `json:"value"`
}

// WhoAmIResponse is the body of the WhoAmI function.
type WhoAmIResponse struct {
	BusinessUnitID uuid.UUID `json:"BusinessUnitId"`
	UserID         uuid.UUID `json:"UserId"`
	OrganizationID uuid.UUID `json:"OrganizationId"`
}

type odataError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
