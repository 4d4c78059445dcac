package usecase

import "github.com/google/uuid"

// ContactInput carries the writable contact fields; nil means null.
type ContactInput struct {
	FirstName *string
	LastName  *string
	Email     *string
}

// ContactResultOutput answers a write.
type ContactResultOutput struct {
	Message string    `json:"Message"`
	Id      uuid.UUID `json:"Id"`
}

// ContactOutput is one element of the list answer.
type ContactOutput struct {
	Id        uuid.UUID `json:"Id"`
	FirstName *string   `json:"FirstName"`
	LastName  *string   `json:"LastName"`
	Email     *string   `json:"Email"`
}

const (
	MsgContactCreated = "Contact created"
	MsgContactUpdated = "Contact updated"
	MsgContactDeleted = "Contact deleted"
)
