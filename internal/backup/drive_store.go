package backup

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	jsonMimeType   = "application/json"
)

// File is a backup file already stored in the backups folder.
type File struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// DriveStore keeps backup files in Google Drive.
type DriveStore struct {
	service *drive.Service
}

func NewDriveStore(ctx context.Context, opts ...option.ClientOption) (*DriveStore, error) {
	// https://github.com/googleapis/google-api-go-client/blob/master/drive/v3/drive-gen.go
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve drive client: %w", err)
	}
	return &DriveStore{service: service}, nil
}

func escapeQuery(value string) string {
	return strings.ReplaceAll(value, "'", `\'`)
}

// FindFolder returns the id of the first folder named name, or "" if none.
func (s *DriveStore) FindFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("mimeType = '%s' and trashed = false and name = '%s'", folderMimeType, escapeQuery(name))
	list, err := s.service.Files.List().
		Q(query).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (s *DriveStore) CreateFolder(ctx context.Context, name string) (string, error) {
	folder, err := s.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	return folder.Id, nil
}

func (s *DriveStore) Delete(ctx context.Context, id string) error {
	return s.service.Files.Delete(id).Context(ctx).Do()
}

func (s *DriveStore) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed = false", escapeQuery(folderID), folderMimeType)

	var files []File
	call := s.service.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, createdTime)").
		Context(ctx)
	err := call.Pages(ctx, func(list *drive.FileList) error {
		for _, f := range list.Files {
			createdAt, err := time.Parse(time.RFC3339, f.CreatedTime)
			if err != nil {
				return fmt.Errorf("parse created time of %s: %w", f.Name, err)
			}
			files = append(files, File{ID: f.Id, Name: f.Name, CreatedAt: createdAt})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list backup files: %w", err)
	}
	return files, nil
}

func (s *DriveStore) Upload(ctx context.Context, folderID, name string, content []byte) (string, error) {
	file, err := s.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: jsonMimeType,
		Parents:  []string{folderID},
	}).
		Fields("id, parents").
		Media(bytes.NewReader(content)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return file.Id, nil
}

// Share grants email read access to the file and returns the permission id.
func (s *DriveStore) Share(ctx context.Context, fileID, email string) (string, error) {
	permission, err := s.service.Permissions.Create(fileID, &drive.Permission{
		EmailAddress: email,
		Type:         "user",
		Role:         "reader",
	}).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("share %s: %w", fileID, err)
	}
	return permission.Id, nil
}
