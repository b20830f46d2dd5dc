package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	repositoryPath        = "api/v1/bom"
	repositoryContentType = "application/vnd.cyclonedx+json; version = 1.6"
	repositoryTimeout     = 60 * time.Second
	maxProblemBody        = 4096
)

// RepositoryUploader stores recall BOMs in a BOM repository. Every upload
// creates a new BOM identified by its serial number and version.
type RepositoryUploader struct {
	endpoint string
	client   *http.Client
}

// repositoryReceipt is the body of 201 Created
type repositoryReceipt struct {
	SerialNumber string `json:"serialNumber"`
	Version      int    `json:"version"`
}

// problem is RFC 9457 problem details, only the fields recall reports
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func NewRepositoryUploader(serverURL string) (*RepositoryUploader, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("repository url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" || strings.Trim(u.Path, "/") != "" {
		return nil, fmt.Errorf("repository url %q: expected a scheme and host without a path, e.g. `http://some-url.com`", serverURL)
	}
	u.Path = ""
	return &RepositoryUploader{
		endpoint: u.JoinPath(repositoryPath).String(),
		client:   &http.Client{Timeout: repositoryTimeout},
	}, nil
}

func (u *RepositoryUploader) Upload(ctx context.Context, raw []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", repositoryContentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("uploading recall BOM: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	receipt, err := readReceipt(resp)
	if err != nil {
		return fmt.Errorf("recall BOM rejected by %s: %w", u.endpoint, err)
	}
	slog.InfoContext(ctx, "recall bom stored in repository",
		slog.String("urn", receipt.SerialNumber),
		slog.Int("version", receipt.Version),
		slog.String("url", u.endpoint))
	return nil
}

func readReceipt(resp *http.Response) (repositoryReceipt, error) {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return repositoryReceipt{}, fmt.Errorf("parsing content type: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
		if mediaType != "application/json" {
			return repositoryReceipt{}, fmt.Errorf("expected `application/json` content type, got: %s", mediaType)
		}
		var receipt repositoryReceipt
		if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
			return repositoryReceipt{}, fmt.Errorf("decoding receipt: %w", err)
		}
		if receipt.SerialNumber == "" || receipt.Version == 0 {
			return repositoryReceipt{}, errors.New("receipt without serial number or version")
		}
		return receipt, nil
	case mediaType == "application/problem+json":
		var p problem
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxProblemBody)).Decode(&p); err != nil {
			return repositoryReceipt{}, fmt.Errorf("status %d: decoding problem details: %w", resp.StatusCode, err)
		}
		if p.Detail == "" {
			p.Detail = p.Title
		}
		return repositoryReceipt{}, fmt.Errorf("status %d: %s", resp.StatusCode, p.Detail)
	default:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProblemBody))
		if err != nil {
			return repositoryReceipt{}, fmt.Errorf("status %d: %w", resp.StatusCode, err)
		}
		return repositoryReceipt{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
