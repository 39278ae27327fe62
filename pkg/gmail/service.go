package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"inboxflow/internal/automation/domain"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const user = "me"

// Service talks to the Gmail API on behalf of a linked mailbox
type Service struct {
	opts []option.ClientOption
}

// NewService creates a Gmail client. Extra options are appended to every
// per-call client, which lets tests point it at a local endpoint.
func NewService(opts ...option.ClientOption) *Service {
	return &Service{opts: opts}
}

func (s *Service) client(ctx context.Context, accessToken string) (*gmail.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, s.opts...)

	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// Search lists up to max messages matching a Gmail query
func (s *Service) Search(ctx context.Context, cred domain.Credential, query string, max int64) ([]domain.EventRef, error) {
	srv, err := s.client(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	call := srv.Users.Messages.List(user).Q(query).Context(ctx)
	if max > 0 {
		call = call.MaxResults(max)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}

	refs := make([]domain.EventRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, domain.EventRef{ID: m.Id, ThreadID: m.ThreadId})
	}
	return refs, nil
}

// FetchFull retrieves a message with headers, decoded bodies and attachment refs
func (s *Service) FetchFull(ctx context.Context, cred domain.Credential, id string) (*domain.Event, error) {
	srv, err := s.client(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message %s: %w", id, err)
	}
	return convertMessage(msg), nil
}

// MarkRead removes the UNREAD label
func (s *Service) MarkRead(ctx context.Context, cred domain.Credential, id string) error {
	srv, err := s.client(ctx, cred.AccessToken)
	if err != nil {
		return err
	}

	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	if _, err := srv.Users.Messages.Modify(user, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to mark message %s as read: %w", id, err)
	}
	return nil
}

// FetchAttachment downloads and decodes one attachment
func (s *Service) FetchAttachment(ctx context.Context, cred domain.Credential, messageID, attachmentID string) ([]byte, error) {
	srv, err := s.client(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	att, err := srv.Users.Messages.Attachments.Get(user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve attachment: %w", err)
	}
	data, err := decodeBase64URL(att.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode attachment: %w", err)
	}
	return data, nil
}

// Watch registers a Pub/Sub push subscription for the mailbox's INBOX
func (s *Service) Watch(ctx context.Context, cred domain.Credential, topicName string) (uint64, error) {
	srv, err := s.client(ctx, cred.AccessToken)
	if err != nil {
		return 0, err
	}

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}
	resp, err := srv.Users.Watch(user, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	return resp.HistoryId, nil
}

func convertMessage(msg *gmail.Message) *domain.Event {
	event := &domain.Event{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Labels:   msg.LabelIds,
	}
	if msg.Payload == nil {
		return event
	}

	for _, h := range msg.Payload.Headers {
		event.Headers = append(event.Headers, domain.Header{Name: h.Name, Value: h.Value})
	}
	event.TextBody = findBody(msg.Payload, "text/plain")
	event.HTMLBody = findBody(msg.Payload, "text/html")
	event.Attachments = getAttachments(msg.Payload)
	return event
}

// findBody returns the first part of the given mime type, searching depth first
func findBody(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		if data, err := decodeBase64URL(part.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, child := range part.Parts {
		if body := findBody(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func getAttachments(payload *gmail.MessagePart) []domain.AttachmentRef {
	var attachments []domain.AttachmentRef

	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
				attachments = append(attachments, domain.AttachmentRef{
					AttachmentID: part.Body.AttachmentId,
					Filename:     part.Filename,
					MimeType:     part.MimeType,
					Size:         part.Body.Size,
				})
			}
			if len(part.Parts) > 0 {
				walk(part.Parts)
			}
		}
	}

	walk(payload.Parts)
	return attachments
}

// decodeBase64URL accepts Gmail's URL-safe alphabet with or without padding
func decodeBase64URL(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
