// Package qrcode renders PIX copy-and-paste payloads as PNG data URIs.
package qrcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"

	goqrcode "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

// Renderer implements usecase.QRRenderer.
type Renderer struct {
	size  int
	level goqrcode.RecoveryLevel
}

// NewRenderer returns a renderer producing size x size images.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = 256
	}
	return &Renderer{size: size, level: goqrcode.Medium}
}

// Render encodes content as a base64 PNG data URI.
func (r *Renderer) Render(content string) (string, error) {
	if content == "" {
		return "", errors.New("qrcode: empty content")
	}

	qr, err := goqrcode.New(content, r.level)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(r.size)); err != nil {
		return "", err
	}

	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
