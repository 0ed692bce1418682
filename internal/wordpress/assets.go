package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jonathan/article-engine/internal/types"
	"github.com/jonathan/article-engine/internal/workflow"
)

// AssetStore implements workflow.AssetStore against the WordPress media API.
type AssetStore struct {
	client *Client
}

// NewAssetStore creates an AssetStore sharing the given client.
func NewAssetStore(client *Client) *AssetStore {
	return &AssetStore{client: client}
}

type mediaResponse struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

// Upload uploads each file to the site's media library. Files may come from
// a provider-hosted URL or a local path; URLs are fetched first since image
// providers expire their hosted results.
func (s *AssetStore) Upload(ctx context.Context, cfg *types.Configuration, files []workflow.AssetFile) (*workflow.UploadResult, error) {
	result := &workflow.UploadResult{Manifest: make(map[string]any, len(files))}

	for _, file := range files {
		data, contentType, err := s.readFile(ctx, file)
		if err != nil {
			return nil, err
		}

		media, err := s.uploadMedia(ctx, cfg, file.Name, contentType, data)
		if err != nil {
			return nil, err
		}

		result.URLs = append(result.URLs, media.SourceURL)
		result.MediaIDs = append(result.MediaIDs, media.ID)
		result.Manifest[file.Name] = map[string]any{
			"media_id": media.ID,
			"url":      media.SourceURL,
		}
	}

	return result, nil
}

// readFile loads the asset bytes from its local path or source URL.
func (s *AssetStore) readFile(ctx context.Context, file workflow.AssetFile) ([]byte, string, error) {
	if file.LocalPath != "" {
		data, err := os.ReadFile(file.LocalPath)
		if err != nil {
			return nil, "", &types.ErrStorage{Message: "failed to read local asset " + file.LocalPath, Cause: err}
		}
		return data, contentTypeForPath(file.LocalPath), nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", file.SourceURL, nil)
	if err != nil {
		return nil, "", &types.ErrStorage{Message: "invalid asset source URL", Cause: err}
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, "", &types.ErrStorage{Message: "failed to fetch asset from provider", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &types.ErrStorage{Message: fmt.Sprintf("asset fetch returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &types.ErrStorage{Message: "failed to read asset body", Cause: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}

// uploadMedia POSTs raw bytes to the media endpoint.
func (s *AssetStore) uploadMedia(ctx context.Context, cfg *types.Configuration, name, contentType string, data []byte) (*mediaResponse, error) {
	filename := name + extensionForContentType(contentType)

	req, err := http.NewRequestWithContext(ctx, "POST",
		strings.TrimRight(cfg.SiteURL, "/")+apiBase+"/media", bytes.NewReader(data))
	if err != nil {
		return nil, &types.ErrStorage{Message: "failed to build media request", Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	username, password, err := s.client.credentials(cfg)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(username, password)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, &types.ErrStorage{Message: "media upload failed", Cause: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		// Upload failures are storage errors, not publish errors; rewrap so
		// the retry policy treats them as transient unless auth failed.
		var publishErr *types.ErrPublish
		if errors.As(err, &publishErr) &&
			publishErr.StatusCode != http.StatusUnauthorized && publishErr.StatusCode != http.StatusForbidden {
			return nil, &types.ErrStorage{Message: publishErr.Message}
		}
		return nil, err
	}

	var media mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return nil, &types.ErrStorage{Message: "failed to decode media response", Cause: err}
	}
	return &media, nil
}

func contentTypeForPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
