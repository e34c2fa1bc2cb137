package upstream

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stego_gateway/internal/stego/transport"
)

type decodedPart struct {
	name     string
	filename string
	mimeType string
	data     []byte
}

func decodeBody(t *testing.T, req *Request) []decodedPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(req.ContentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	var parts []decodedPart
	mr := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, decodedPart{
			name:     p.FormName(),
			filename: p.FileName(),
			mimeType: p.Header.Get("Content-Type"),
			data:     data,
		})
	}
	return parts
}

func TestTranslateEncode(t *testing.T) {
	sub := &transport.Submission{
		Operation: transport.OperationEncode,
		Image:     []byte{0x89, 'P', 'N', 'G', 0, 1, 2},
		Filename:  "holiday.png",
		MimeType:  "image/png",
		Message:   " meet at noon ",
		Password:  "hunter2",
	}

	req, err := Translate(sub)
	require.NoError(t, err)
	assert.Equal(t, transport.OperationEncode, req.Operation)

	parts := decodeBody(t, req)
	require.Len(t, parts, 3)

	assert.Equal(t, "image", parts[0].name)
	assert.Equal(t, "holiday.png", parts[0].filename)
	assert.Equal(t, "image/png", parts[0].mimeType)
	assert.Equal(t, sub.Image, parts[0].data)

	assert.Equal(t, "message", parts[1].name)
	assert.Equal(t, " meet at noon ", string(parts[1].data))
	assert.Equal(t, "password", parts[2].name)
	assert.Equal(t, "hunter2", string(parts[2].data))
}

func TestTranslateDecodeOmitsMessage(t *testing.T) {
	req, err := Translate(&transport.Submission{
		Operation: transport.OperationDecode,
		Image:     []byte("img"),
		Filename:  "a.png",
		MimeType:  "image/png",
		Password:  "pw",
	})
	require.NoError(t, err)

	parts := decodeBody(t, req)
	require.Len(t, parts, 2)
	assert.Equal(t, "image", parts[0].name)
	assert.Equal(t, "password", parts[1].name)
}

func TestTranslateIsDeterministic(t *testing.T) {
	sub := &transport.Submission{
		Operation: transport.OperationDecode,
		Image:     []byte("img"),
		Filename:  `we"ird.png`,
		MimeType:  "image/png",
		Password:  "pw",
	}

	first, err := Translate(sub)
	require.NoError(t, err)
	second, err := Translate(sub)
	require.NoError(t, err)

	assert.Equal(t, first.ContentType, second.ContentType)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, `we"ird.png`, decodeBody(t, first)[0].filename)
}
