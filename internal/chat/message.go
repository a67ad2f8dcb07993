package chat

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Values are never mutated after append.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Reply is the server answer to a chat request. The attachment fields are
// optional on the wire and only count when both are present.
type Reply struct {
	Reply     string  `json:"reply"`
	PDFBase64 *string `json:"pdf_base64,omitempty"`
	Filename  *string `json:"filename,omitempty"`
}

// Attachment is a base64 encoded document offered alongside a reply.
type Attachment struct {
	Data     string
	Filename string
}

const PDFContentType = "application/pdf"

// Attachment reports the reply's document, if both fields are set and non-empty.
func (r Reply) Attachment() (Attachment, bool) {
	if r.PDFBase64 == nil || r.Filename == nil {
		return Attachment{}, false
	}
	if *r.PDFBase64 == "" || strings.TrimSpace(*r.Filename) == "" {
		return Attachment{}, false
	}
	return Attachment{Data: *r.PDFBase64, Filename: *r.Filename}, true
}

// Decode returns the raw document bytes (standard base64).
func (a Attachment) Decode() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment %q: %w", a.Filename, err)
	}
	return b, nil
}
