package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"scribe/internal/services"
)

const (
	// FolderMimeType marks Drive folders.
	FolderMimeType = "application/vnd.google-apps.folder"

	defaultTimeout    = 300 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	listFields        = "nextPageToken, files(id, name, mimeType, size, md5Checksum, modifiedTime)"
)

// Config holds Drive client settings.
type Config struct {
	CredentialsFile string
	Timeout         time.Duration
	MaxRetries      int
}

// File is the subset of Drive metadata the pipeline uses.
type File struct {
	ID       string
	Name     string
	MimeType string
	Size     int64
	MD5      string
}

// Service performs Drive operations.
type Service struct {
	files      *drive.FilesService
	about      *drive.AboutService
	maxRetries int
	retryDelay time.Duration
}

// NewService authenticates with a service-account credentials file. Extra
// client options are appended after the credentials (tests pass an endpoint).
func NewService(ctx context.Context, cfg Config, extra ...option.ClientOption) (*Service, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	opts := make([]option.ClientOption, 0, len(extra)+2)
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path), option.WithScopes(drive.DriveScope))
	}
	opts = append(opts, extra...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "drive client", "create drive service", err)
	}
	return &Service{
		files:      svc.Files,
		about:      svc.About,
		maxRetries: cfg.MaxRetries,
		retryDelay: defaultRetryDelay,
	}, nil
}

// SetRetryDelay overrides the base retry delay.
func (s *Service) SetRetryDelay(d time.Duration) {
	s.retryDelay = d
}

// ListFiles returns the non-folder, non-trashed children of folderID.
func (s *Service) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	query := fmt.Sprintf("%s in parents and trashed = false and mimeType != '%s'", quote(folderID), FolderMimeType)
	return s.list(ctx, "drive list", query)
}

// FindFolder returns the id of the child folder named name, or "" when absent.
func (s *Service) FindFolder(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf("%s in parents and mimeType = '%s' and name = %s and trashed = false",
		quote(parentID), FolderMimeType, quote(name))
	found, err := s.list(ctx, "drive find folder", query)
	if err != nil || len(found) == 0 {
		return "", err
	}
	return found[0].ID, nil
}

// EnsureFolder returns the child folder named name, creating it when missing.
func (s *Service) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	id, err := s.FindFolder(ctx, parentID, name)
	if err != nil || id != "" {
		return id, err
	}
	var created *drive.File
	err = s.retry(ctx, "drive create folder", func() error {
		var callErr error
		created, callErr = s.files.Create(&drive.File{
			Name:     name,
			MimeType: FolderMimeType,
			Parents:  []string{parentID},
		}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// Download streams fileID into dest via a temporary file renamed on success.
func (s *Service) Download(ctx context.Context, fileID, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "", "drive download", "ensure destination dir", err)
	}
	tmp := dest + ".part"
	err := s.retry(ctx, "drive download", func() error {
		resp, err := s.files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		out, err := os.Create(tmp)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "", "drive download", "create temp file", err)
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "drive download", "finalize download", err)
	}
	return nil
}

// Upload creates a new file named after localPath under parentID.
func (s *Service) Upload(ctx context.Context, localPath, parentID string) (string, error) {
	var created *drive.File
	err := s.retry(ctx, "drive upload", func() error {
		f, err := os.Open(localPath)
		if err != nil {
			return services.Wrap(services.ErrNotFound, "", "drive upload", "open local file", err)
		}
		defer f.Close()
		created, err = s.files.Create(&drive.File{
			Name:    filepath.Base(localPath),
			Parents: []string{parentID},
		}).Media(f).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// Move re-parents fileID from one folder to another.
func (s *Service) Move(ctx context.Context, fileID, fromFolderID, toFolderID string) error {
	return s.retry(ctx, "drive move", func() error {
		_, err := s.files.Update(fileID, &drive.File{}).
			AddParents(toFolderID).
			RemoveParents(fromFolderID).
			Fields("id").
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		return err
	})
}

// ExportText exports a Google Doc as plain text.
func (s *Service) ExportText(ctx context.Context, docID string) (string, error) {
	var text string
	err := s.retry(ctx, "drive export", func() error {
		resp, err := s.files.Export(docID, "text/plain").Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
		return nil
	})
	return text, err
}

// Exists reports whether fileID is present and not trashed.
func (s *Service) Exists(ctx context.Context, fileID string) (bool, error) {
	var found *drive.File
	err := s.retry(ctx, "drive get", func() error {
		var callErr error
		found, callErr = s.files.Get(fileID).Fields("id, trashed").SupportsAllDrives(true).Context(ctx).Do()
		return callErr
	})
	if errors.Is(err, services.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !found.Trashed, nil
}

// HealthCheck verifies the credentials by fetching the account identity.
func (s *Service) HealthCheck(ctx context.Context) error {
	_, err := s.about.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return classify("drive about", err)
	}
	return nil
}

func (s *Service) list(ctx context.Context, op, query string) ([]File, error) {
	var (
		files []File
		token string
	)
	for {
		var page *drive.FileList
		err := s.retry(ctx, op, func() error {
			call := s.files.List().
				Q(query).
				Spaces("drive").
				Fields(listFields).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			var callErr error
			page, callErr = call.Do()
			return callErr
		})
		if err != nil {
			return nil, err
		}
		for _, f := range page.Files {
			files = append(files, File{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Size: f.Size, MD5: f.Md5Checksum})
		}
		if page.NextPageToken == "" {
			return files, nil
		}
		token = page.NextPageToken
	}
}

func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		func() error {
			if err := fn(); err != nil {
				return classify(op, err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.maxRetries)),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(services.Retryable),
	)
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if services.Kind(err) != services.ErrorKindUnknown {
		return err
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		marker := services.ErrExternalTool
		switch {
		case apiErr.Code == http.StatusNotFound:
			marker = services.ErrNotFound
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden && !rateLimited(apiErr):
			marker = services.ErrConfiguration
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 || rateLimited(apiErr):
			marker = services.ErrTransient
		case apiErr.Code == http.StatusBadRequest:
			marker = services.ErrValidation
		}
		return services.Wrap(marker, "", op, fmt.Sprintf("status %d", apiErr.Code), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "", op, "request timed out", err)
	}
	return services.Wrap(services.ErrTransient, "", op, "request failed", err)
}

func rateLimited(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if strings.Contains(item.Reason, "RateLimitExceeded") || item.Reason == "rateLimitExceeded" {
			return true
		}
	}
	return false
}

// quote renders s as a single-quoted Drive query literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
