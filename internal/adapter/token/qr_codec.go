package token

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

const (
	verifyPath       = "/verify"
	productIDParam   = "productId"
	defaultImageSize = 256
)

// QRCodec renders verification URLs as PNG QR codes.
type QRCodec struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewQRCodec(size int) *QRCodec {
	if size <= 0 {
		size = defaultImageSize
	}
	return &QRCodec{size: size, level: qrcode.Medium}
}

// Payload returns {baseURL}/verify?productId={identifier}. A trailing slash
// on baseURL is ignored.
func (c *QRCodec) Payload(baseURL string, identifier uint64) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", fmt.Errorf("%w: empty base URL", domain.ErrInvalidToken)
	}
	u, err := url.Parse(base + verifyPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	q := u.Query()
	q.Set(productIDParam, strconv.FormatUint(identifier, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *QRCodec) Encode(baseURL string, identifier uint64) ([]byte, error) {
	payload, err := c.Payload(baseURL, identifier)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(payload, c.level, c.size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}

// ParseIdentifier reads productId from a scanned verification URL. A bare
// query string ("productId=7") is accepted as well.
func (c *QRCodec) ParseIdentifier(rawURL string) (uint64, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	raw := u.Query().Get(productIDParam)
	if raw == "" {
		values, _ := url.ParseQuery(rawURL)
		raw = values.Get(productIDParam)
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", domain.ErrInvalidToken, productIDParam)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", domain.ErrInvalidToken, productIDParam, raw)
	}
	return id, nil
}
