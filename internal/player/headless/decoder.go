// Package headless provides native player host bindings: an image decoder,
// an in-memory RGBA surface, a simulated audio track, frame schedulers and a
// capture host that records surface snapshots. It drives the player outside
// a browser, in tests and tooling.
package headless

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snappy-loop/bulletin/internal/player"
	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/webp"
)

const maxImageBytes = 32 << 20

// Image is a decoded raster frame.
type Image struct {
	image.Image
}

// Size implements player.Frame.
func (i *Image) Size() (int, int) {
	b := i.Bounds()
	return b.Dx(), b.Dy()
}

// Decoder resolves data URLs and http(s) URLs into images.
type Decoder struct {
	client *http.Client
}

// NewDecoder creates a decoder; a nil client uses a 30s-timeout default.
func NewDecoder(client *http.Client) *Decoder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Decoder{client: client}
}

// Decode implements player.Decoder.
func (d *Decoder) Decode(ctx context.Context, locator string) (player.Frame, error) {
	data, err := d.fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &Image{Image: img}, nil
}

func (d *Decoder) fetch(ctx context.Context, locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "data:") {
		du, err := dataurl.DecodeString(locator)
		if err != nil {
			return nil, fmt.Errorf("parse data url: %w", err)
		}
		return du.Data, nil
	}
	if !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://") {
		return nil, errors.New("unsupported image locator scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}
