package upstream

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"stego_gateway/internal/stego/transport"
)

// Request is a submission re-encoded for the upstream service.
type Request struct {
	Operation   transport.Operation
	Body        []byte
	ContentType string
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Translate builds the upstream multipart body: image, then message (encode
// only), then password. The boundary is derived from the content so equal
// submissions produce identical requests.
func Translate(sub *transport.Submission) (*Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.SetBoundary(boundaryFor(sub)); err != nil {
		return nil, fmt.Errorf("set boundary: %w", err)
	}

	if err := addImagePart(writer, sub); err != nil {
		return nil, err
	}
	if sub.Operation == transport.OperationEncode {
		if err := writer.WriteField(transport.FieldMessage, sub.Message); err != nil {
			return nil, fmt.Errorf("write field %s: %w", transport.FieldMessage, err)
		}
	}
	if err := writer.WriteField(transport.FieldPassword, sub.Password); err != nil {
		return nil, fmt.Errorf("write field %s: %w", transport.FieldPassword, err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	return &Request{
		Operation:   sub.Operation,
		Body:        body.Bytes(),
		ContentType: writer.FormDataContentType(),
	}, nil
}

func addImagePart(w *multipart.Writer, sub *transport.Submission) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		transport.FieldImage, quoteEscaper.Replace(sub.Filename)))
	h.Set("Content-Type", sub.MimeType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", transport.FieldImage, err)
	}
	if _, err := part.Write(sub.Image); err != nil {
		return fmt.Errorf("write part %s: %w", transport.FieldImage, err)
	}
	return nil
}

func boundaryFor(sub *transport.Submission) string {
	h := sha256.New()
	h.Write([]byte(sub.Operation))
	h.Write([]byte(sub.Filename))
	h.Write([]byte(sub.MimeType))
	h.Write(sub.Image)
	h.Write([]byte(sub.Message))
	h.Write([]byte(sub.Password))
	return "stego-" + hex.EncodeToString(h.Sum(nil))[:40]
}
