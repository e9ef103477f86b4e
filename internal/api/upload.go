package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/jobmarket/marketplace-client/pkg/model"
)

// UploadProfilePicture posts a multipart form with a single profile_picture file.
// It bypasses the JSON pipeline: no Content-Type default and no refresh on 401.
func (c *Client) UploadProfilePicture(ctx context.Context, profileID int64, filename string, r io.Reader) (*model.ProfilePicture, error) {
	endpoint := fmt.Sprintf("/freelancers/profiles/%d/upload_picture/", profileID)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("profile_picture", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read picture: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.mu.RLock()
	token := c.accessToken
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.exec.Do(ctx, req, c.rateKey)
	if err != nil {
		return nil, &TransportError{Method: http.MethodPost, Endpoint: endpoint, Err: err}
	}
	parsed, err := c.parse(http.MethodPost, endpoint, resp)
	if err != nil {
		return nil, err
	}

	var out model.ProfilePicture
	if err := parsed.Decode(&out); err != nil {
		return nil, err
	}
	c.logger.Info("api.picture_uploaded", zap.Int64("profile_id", profileID), zap.Int("bytes", buf.Len()))
	return &out, nil
}
