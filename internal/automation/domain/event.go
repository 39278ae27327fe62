package domain

import "strings"

// EventRef is a search hit from an event source
type EventRef struct {
	ID       string
	ThreadID string
}

// Header is one raw message header
type Header struct {
	Name  string
	Value string
}

// AttachmentRef points at an attachment that can be downloaded separately
type AttachmentRef struct {
	AttachmentID string
	Filename     string
	MimeType     string
	Size         int64
}

// Event is a fully fetched inbox message
type Event struct {
	ID          string
	ThreadID    string
	Headers     []Header
	TextBody    string
	HTMLBody    string
	Attachments []AttachmentRef
	Labels      []string
}

// Header returns the first header value with the given name, case-insensitive
func (e *Event) Header(name string) string {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (e *Event) From() string    { return e.Header("From") }
func (e *Event) To() string      { return e.Header("To") }
func (e *Event) Subject() string { return e.Header("Subject") }
func (e *Event) Date() string    { return e.Header("Date") }
