package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/kgcollins/parishport/internal/model"
)

func (c *Client) certificatesPath(ctx context.Context, memberID int64) (*Config, string, error) {
	cfg, err := c.ResolveConfig(ctx)
	if err != nil {
		return nil, "", err
	}
	return cfg, fmt.Sprintf("%s/%d/certificates", cfg.Endpoints.Member, memberID), nil
}

// UploadCertificate sends one certificate file as multipart form data.
// Re-uploading replaces the existing attachment for that slot.
func (c *Client) UploadCertificate(ctx context.Context, memberID int64, t model.SacramentType, filename string, content []byte) (*model.CertificateInfo, error) {
	cfg, path, err := c.certificatesPath(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("certificate_type", string(t)); err != nil {
		return nil, fmt.Errorf("write certificate_type field: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized()
		}
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	res, err := normalize(raw, resp.StatusCode)
	if err != nil {
		return nil, err
	}
	var info model.CertificateInfo
	if err := json.Unmarshal(unwrapKey(res.payload, "certificate"), &info); err != nil {
		// Receipt body varies; the upload itself succeeded.
		return &model.CertificateInfo{FileName: filename}, nil
	}
	if info.FileName == "" {
		info.FileName = filename
	}
	return &info, nil
}

// Certificates returns the member's attachments keyed by sacrament type.
// Slots without an attachment are absent from the map.
func (c *Client) Certificates(ctx context.Context, memberID int64) (map[model.SacramentType]model.CertificateInfo, error) {
	_, path, err := c.certificatesPath(ctx, memberID)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]*model.CertificateInfo
	if err := json.Unmarshal(res.payload, &raw); err != nil {
		return nil, fmt.Errorf("decode certificates: %w", err)
	}
	certs := make(map[model.SacramentType]model.CertificateInfo)
	for key, info := range raw {
		t := model.SacramentType(key)
		if !t.Valid() || info == nil || info.FileName == "" {
			continue
		}
		certs[t] = *info
	}
	return certs, nil
}

func (c *Client) DeleteCertificate(ctx context.Context, memberID int64, t model.SacramentType) error {
	_, path, err := c.certificatesPath(ctx, memberID)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", path, t), nil)
	return err
}

// DownloadCertificate fetches the attachment bytes. The filename comes from
// the Content-Disposition header, falling back to a generic name. Failed
// downloads are reported from the status alone; the body is never parsed as
// JSON here.
func (c *Client) DownloadCertificate(ctx context.Context, memberID int64, t model.SacramentType) (string, []byte, error) {
	cfg, path, err := c.certificatesPath(ctx, memberID)
	if err != nil {
		return "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s/%s/download", cfg.APIURL, path, t), nil)
	if err != nil {
		return "", nil, fmt.Errorf("create download request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.handleUnauthorized()
		}
		return "", nil, &APIError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, &NetworkError{Err: err}
	}
	return downloadFilename(resp.Header.Get("Content-Disposition")), data, nil
}

func downloadFilename(disposition string) string {
	const fallback = "certificate"
	if disposition == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return fallback
	}
	if name := params["filename"]; name != "" {
		return name
	}
	return fallback
}
