package ai

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

const maxFetchedImageBytes = 20 << 20

// FetchImage downloads an image referenced by URL so it can be sent inline.
func FetchImage(ctx context.Context, client *http.Client, url string) (Image, error) {
	if url == "" {
		return Image{}, ErrNoImage
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Image{}, fmt.Errorf("build image request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("fetch image %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchedImageBytes))
	if err != nil {
		return Image{}, fmt.Errorf("read image %s: %w", url, err)
	}

	mediaType := ""
	if header := resp.Header.Get("Content-Type"); header != "" {
		if parsed, _, err := mime.ParseMediaType(header); err == nil {
			mediaType = parsed
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = mimetype.Detect(data).String()
	}

	return Image{Data: data, MediaType: mediaType, URL: url}, nil
}
