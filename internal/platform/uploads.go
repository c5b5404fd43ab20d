package platform

import (
	"context"
	"io"
	"net/http"

	"nexus-chat/pkg/errors"
)

// SignedUpload is a pre-signed storage target and the public URL the file
// will have once uploaded.
type SignedUpload struct {
	SignedURL string `json:"signedUrl"`
	FileURL   string `json:"fileUrl"`
}

// GetSignedUploadURL requests an upload target for a file.
func (c *Client) GetSignedUploadURL(ctx context.Context, fileName, fileType string) (*SignedUpload, error) {
	var out SignedUpload
	body := map[string]string{"fileName": fileName, "fileType": fileType}
	if err := c.call(ctx, http.MethodPost, c.endpoints.SignedUploadURL, body, &out); err != nil {
		return nil, err
	}
	if out.SignedURL == "" || out.FileURL == "" {
		return nil, errors.Application("Failed to get signed upload URL")
	}
	return &out, nil
}

// UploadFile PUTs raw bytes to a signed URL. The URL carries its own
// authorization, so no bearer token is sent.
func (c *Client) UploadFile(ctx context.Context, signedURL, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, body)
	if err != nil {
		return errors.Transport(err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Transport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Warn("Upload failed", "status", resp.StatusCode, "body", string(text))
		return errors.HTTPStatus(resp.StatusCode, "Upload failed")
	}
	return nil
}
