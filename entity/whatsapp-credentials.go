package entity

import "BotFlow/internal/lib/validate"

const CredentialsTypeWhatsapp = "whatsapp"

// WhatsappCredentials bind a block's credentialsId to a paired socket login.
type WhatsappCredentials struct {
	ID   string                  `json:"id" bson:"_id" validate:"required"`
	Type string                  `json:"type" bson:"type" validate:"required,eq=whatsapp"`
	Data WhatsappCredentialsData `json:"data" bson:"data"`
}

type WhatsappCredentialsData struct {
	ClientID    string `json:"clientId" bson:"client_id" validate:"required"`
	PhoneNumber string `json:"phoneNumber" bson:"phone_number" validate:"required,numeric,min=8"`
}

func (c *WhatsappCredentials) Validate() error {
	return validate.Struct(c)
}
