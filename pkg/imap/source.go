package imap

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"inboxflow/internal/automation/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
)

// Authenticator logs a fresh connection into the mailbox
type Authenticator func(c *client.Client, cred domain.Credential) error

// OAuthBearer authenticates with the OAuth access token of the connection
func OAuthBearer(c *client.Client, cred domain.Credential) error {
	saslClient := sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
		Username: cred.Account,
		Token:    cred.AccessToken,
	})
	return c.Authenticate(saslClient)
}

// PasswordLogin treats the access token as an app password
func PasswordLogin(c *client.Client, cred domain.Credential) error {
	return c.Login(cred.Account, cred.AccessToken)
}

type Options struct {
	Addr    string
	TLS     bool
	Mailbox string
	Auth    Authenticator
}

// Source reads a mailbox over IMAP. Event ids are message UIDs and
// attachment ids are 1-based attachment positions.
type Source struct {
	opts Options
}

func NewSource(opts Options) *Source {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.Auth == nil {
		opts.Auth = OAuthBearer
	}
	return &Source{opts: opts}
}

func (s *Source) session(ctx context.Context, cred domain.Credential, fn func(c *client.Client) error) error {
	var c *client.Client
	var err error
	if s.opts.TLS {
		c, err = client.DialTLS(s.opts.Addr, nil)
	} else {
		c, err = client.Dial(s.opts.Addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer c.Logout()

	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Terminate()
		case <-stop:
		}
	}()

	if err := s.opts.Auth(c, cred); err != nil {
		return fmt.Errorf("imap authentication failed: %w", err)
	}
	if _, err := c.Select(s.opts.Mailbox, false); err != nil {
		return fmt.Errorf("failed to select %s: %w", s.opts.Mailbox, err)
	}
	return fn(c)
}

// Search understands the subset of Gmail query syntax the engine emits:
// "is:unread" and "from:<value>"
func (s *Source) Search(ctx context.Context, cred domain.Credential, query string, max int64) ([]domain.EventRef, error) {
	var refs []domain.EventRef
	err := s.session(ctx, cred, func(c *client.Client) error {
		uids, err := c.UidSearch(parseQuery(query))
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		// newest first, like the Gmail API
		sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
		if max > 0 && int64(len(uids)) > max {
			uids = uids[:max]
		}
		for _, uid := range uids {
			refs = append(refs, domain.EventRef{ID: strconv.FormatUint(uint64(uid), 10)})
		}
		return nil
	})
	return refs, err
}

func (s *Source) FetchFull(ctx context.Context, cred domain.Credential, id string) (*domain.Event, error) {
	var event *domain.Event
	err := s.session(ctx, cred, func(c *client.Client) error {
		parsed, err := fetchMessage(c, id)
		if err != nil {
			return err
		}
		event = parsed.event
		return nil
	})
	return event, err
}

func (s *Source) MarkRead(ctx context.Context, cred domain.Credential, id string) error {
	return s.session(ctx, cred, func(c *client.Client) error {
		seqset, err := uidSet(id)
		if err != nil {
			return err
		}
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			return fmt.Errorf("failed to mark %s as read: %w", id, err)
		}
		return nil
	})
}

func (s *Source) FetchAttachment(ctx context.Context, cred domain.Credential, messageID, attachmentID string) ([]byte, error) {
	var content []byte
	err := s.session(ctx, cred, func(c *client.Client) error {
		parsed, err := fetchMessage(c, messageID)
		if err != nil {
			return err
		}
		data, ok := parsed.attachments[attachmentID]
		if !ok {
			return fmt.Errorf("attachment %s not found in message %s", attachmentID, messageID)
		}
		content = data
		return nil
	})
	return content, err
}

func parseQuery(query string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	if criteria.Header == nil {
		criteria.Header = make(textproto.MIMEHeader)
	}
	for _, token := range strings.Fields(query) {
		switch {
		case token == "is:unread":
			criteria.WithoutFlags = append(criteria.WithoutFlags, imap.SeenFlag)
		case strings.HasPrefix(token, "from:"):
			if value := strings.TrimPrefix(token, "from:"); value != "" {
				criteria.Header.Add("From", value)
			}
		}
	}
	return criteria
}

func uidSet(id string) (*imap.SeqSet, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil || uid == 0 {
		return nil, fmt.Errorf("invalid message uid %q", id)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	return seqset, nil
}

type parsedMessage struct {
	event       *domain.Event
	attachments map[string][]byte
}

func fetchMessage(c *client.Client, id string) (*parsedMessage, error) {
	seqset, err := uidSet(id)
	if err != nil {
		return nil, err
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("server returned no body for message %s", id)
	}

	parsed, err := parseMessage(id, body)
	if err != nil {
		return nil, err
	}
	parsed.event.Labels = msg.Flags
	return parsed, nil
}

func parseMessage(id string, r io.Reader) (*parsedMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}

	parsed := &parsedMessage{
		event:       &domain.Event{ID: id},
		attachments: make(map[string][]byte),
	}

	decoder := &mime.WordDecoder{CharsetReader: charset.Reader}
	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := decoder.DecodeHeader(fields.Value())
		if err != nil {
			value = fields.Value()
		}
		parsed.event.Headers = append(parsed.event.Headers, domain.Header{Name: fields.Key(), Value: value})
	}

	index := 0
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part of message %s: %w", id, err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, err
			}
			switch {
			case contentType == "text/plain" && parsed.event.TextBody == "":
				parsed.event.TextBody = string(data)
			case contentType == "text/html" && parsed.event.HTMLBody == "":
				parsed.event.HTMLBody = string(data)
			}
		case *mail.AttachmentHeader:
			index++
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, err
			}
			if filename == "" {
				continue
			}
			attachmentID := strconv.Itoa(index)
			parsed.attachments[attachmentID] = data
			parsed.event.Attachments = append(parsed.event.Attachments, domain.AttachmentRef{
				AttachmentID: attachmentID,
				Filename:     filename,
				MimeType:     contentType,
				Size:         int64(len(data)),
			})
		}
	}
	return parsed, nil
}
