package api

import (
	"strconv"

	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is bumped when the response envelope shape changes.
const envelopeVersion = 1

// Envelope is the uniform response wrapper for every JSON endpoint.
type Envelope struct {
	V       int  `json:"v" doc:"Envelope version"`
	Success bool `json:"success" doc:"Whether the request succeeded"`
	Data    any  `json:"data,omitempty" doc:"Response payload"`
	Error   any  `json:"error,omitempty" doc:"Error payload when success is false"`
}

// EnvelopeTransformer wraps every huma response body in the envelope.
// Error bodies already carry the envelope shape via APIError.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if _, ok := v.(*Envelope); ok {
		return v, nil
	}
	if apiErr, ok := v.(*APIError); ok {
		return &Envelope{
			V:       envelopeVersion,
			Success: false,
			Error:   apiErr,
		}, nil
	}

	code, err := strconv.Atoi(status)
	if err == nil && code >= 400 {
		return &Envelope{
			V:       envelopeVersion,
			Success: false,
			Error:   v,
		}, nil
	}

	return &Envelope{
		V:       envelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
