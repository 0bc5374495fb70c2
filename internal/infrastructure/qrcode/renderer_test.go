package qrcode

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesDecodablePNG(t *testing.T) {
	r := NewRenderer(128)

	uri, err := r.Render("00020126580014br.gov.bcb.pix0136a1b2c3")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, dataURIPrefix))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, dataURIPrefix))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestRenderRejectsEmptyContent(t *testing.T) {
	_, err := NewRenderer(0).Render("")
	assert.Error(t, err)
}
