// Package llm wraps the external text/vision generation collaborator.
package llm

import (
	"context"
)

// Attachment is an uploaded file forwarded to the model inline.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request is one generation call.
type Request struct {
	System     string
	Prompt     string
	Attachment *Attachment
}

// Generator is the black-box generation collaborator: no determinism,
// latency bound, or availability is guaranteed. Callers must be prepared
// for errors and empty responses.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
