package drive

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Service uploads files to and creates folders in Google Drive
type Service struct {
	opts []option.ClientOption
}

func NewService(opts ...option.ClientOption) *Service {
	return &Service{opts: opts}
}

func (s *Service) client(ctx context.Context, accessToken string) (*drive.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, s.opts...)

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return srv, nil
}

// Upload stores content as a new file inside folderID and returns its id
func (s *Service) Upload(ctx context.Context, accessToken, filename, mimeType string, content []byte, folderID string) (string, error) {
	srv, err := s.client(ctx, accessToken)
	if err != nil {
		return "", err
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	file := &drive.File{
		Name:     filename,
		MimeType: mimeType,
		Parents:  []string{folderID},
	}

	created, err := srv.Files.Create(file).
		Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("unable to upload %s: %w", filename, err)
	}
	return created.Id, nil
}

// CreateFolder creates a top level folder and returns its id
func (s *Service) CreateFolder(ctx context.Context, accessToken, name string) (string, error) {
	srv, err := s.client(ctx, accessToken)
	if err != nil {
		return "", err
	}

	created, err := srv.Files.Create(&drive.File{Name: name, MimeType: folderMimeType}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("unable to create folder: %w", err)
	}
	return created.Id, nil
}
