package entity

import (
	"BotFlow/internal/lib/validate"
	"net/http"
)

type UserAuth struct {
	Username string `json:"username" bson:"username" validate:"required"`
	Token    string `json:"token" bson:"token" validate:"required,min=1"`
	// Admin is set only for the configured master key.
	Admin bool `json:"admin" bson:"-"`
}

func (u *UserAuth) Bind(_ *http.Request) error {
	return validate.Struct(u)
}
