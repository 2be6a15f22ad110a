package qr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

// Encoder renders a text payload as an image data URI.
type Encoder interface {
	Encode(payload string) (string, error)
}

// PNGEncoder produces PNG QR codes with medium error correction.
type PNGEncoder struct {
	Size int
}

func (e PNGEncoder) Encode(payload string) (string, error) {
	size := e.Size
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}
