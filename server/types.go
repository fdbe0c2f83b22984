package server

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

// Message types.
const (
	TypeAnalyze  = "analyze"
	TypeAsk      = "ask"
	TypeStatus   = "status"
	TypeStream   = "stream"
	TypeResponse = "response"
	TypeError    = "error"
)

type AnalyzeParams struct {
	JobDescription string `validate:"required,max=50000"`
	Filename       string `validate:"required"`
	Size           int64  `validate:"gt=0"`
}

var validate = validator.New()

// Validate returns field name to failure, or nil.
func (params *AnalyzeParams) Validate() map[string]string {
	if err := validate.Struct(params); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Errors map[string]string `json:"errors,omitempty"`
}
