package qrtoken

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultImageSize is the rendered QR side length in pixels.
const DefaultImageSize = 256

// Image renders a share token as a QR code PNG. Medium error correction is
// enough for on-screen scanning; tokens are a few hundred bytes at most.
func Image(token string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	png, err := qrcode.Encode(token, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qrtoken: render qr image: %w", err)
	}
	return png, nil
}
