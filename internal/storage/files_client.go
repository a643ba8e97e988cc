package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// FilesClient handles communication with the document-service for catalog file storage
type FilesClient interface {
	// Upload stores a catalog file under the given key
	Upload(ctx context.Context, key, fileName string, data []byte) error
	// Download retrieves a stored catalog file
	Download(ctx context.Context, key string) ([]byte, error)
	// Delete removes a stored catalog file
	Delete(ctx context.Context, key string) error
}

type filesClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFilesClient creates a new document-service client
func NewFilesClient(baseURL string) FilesClient {
	return &filesClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Longer timeout for file uploads
		},
	}
}

// FileKey builds the storage key for an uploaded catalog file
func FileKey(userID, catalogID, fileName string) string {
	return fmt.Sprintf("users/%s/catalogs/%s/%s", userID, catalogID, fileName)
}

// Upload stores a catalog file under the given key
func (c *filesClient) Upload(ctx context.Context, key, fileName string, data []byte) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write file data: %w", err)
	}
	_ = writer.WriteField("path", key)
	writer.Close()

	url := fmt.Sprintf("%s/api/v1/documents/upload", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("X-Internal-Service", "catalog-service")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("file upload failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}

// Download retrieves a stored catalog file
func (c *filesClient) Download(ctx context.Context, key string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v1/documents/%s", c.baseURL, key)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("X-Internal-Service", "catalog-service")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("file download failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	return data, nil
}

// Delete removes a stored catalog file
func (c *filesClient) Delete(ctx context.Context, key string) error {
	url := fmt.Sprintf("%s/api/v1/documents/%s", c.baseURL, key)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("X-Internal-Service", "catalog-service")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("file delete failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return nil
}
