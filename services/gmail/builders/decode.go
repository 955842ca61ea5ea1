package builders

import (
	"bytes"
	"encoding/base64"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/customeros/mailsync/dto"
)

const (
	mediaTypeHTML  = "text/html"
	mediaTypePlain = "text/plain"
)

// BodyAccumulator collects the decoded body variants of one message.
type BodyAccumulator struct {
	HTML string
	Text string
}

// DecodeBody walks the payload parts and decodes every inline text/html and text/plain part.
// Nested multiparts are walked depth first, in payload order.
func DecodeBody(payload *dto.MessagePayload) BodyAccumulator {
	var body BodyAccumulator
	if payload != nil {
		body.collect(payload)
	}
	return body
}

func (b *BodyAccumulator) collect(part *dto.MessagePayload) {
	if len(part.Parts) > 0 {
		for i := range part.Parts {
			b.collect(&part.Parts[i])
		}
		return
	}

	// attachments are not part of the body
	if part.Filename != "" || part.Body.AttachmentID != "" {
		return
	}

	mediaType, declaredCharset := partContentType(part)
	if mediaType != mediaTypeHTML && mediaType != mediaTypePlain {
		return
	}

	raw, err := decodeBase64URL(part.Body.Data)
	if err != nil || len(raw) == 0 {
		return
	}

	text := DecodeText(raw, declaredCharset, mediaType)
	if mediaType == mediaTypeHTML {
		b.HTML += text
	} else {
		b.Text += text
	}
}

// partContentType returns the lower-cased media type and the declared charset, if any.
func partContentType(part *dto.MessagePayload) (string, string) {
	mediaType := strings.ToLower(strings.TrimSpace(part.MimeType))

	contentType := part.Header("Content-Type")
	if contentType == "" {
		return mediaType, ""
	}

	parsedType, params, err := mime.ParseMediaType(contentType)
	if mediaType == "" {
		mediaType = strings.ToLower(parsedType)
	}
	if err != nil || params == nil {
		return mediaType, ""
	}
	return mediaType, strings.TrimSpace(params["charset"])
}

func decodeBase64URL(data string) ([]byte, error) {
	data = strings.TrimRight(strings.TrimSpace(data), "=")
	return base64.RawURLEncoding.DecodeString(data)
}

// DecodeText never fails: it tries the declared charset, then a sniffed encoding,
// then falls back to UTF-8 with invalid sequences replaced.
func DecodeText(raw []byte, declaredCharset, mediaType string) string {
	if declaredCharset != "" {
		if text, ok := decodeWithCharset(raw, declaredCharset); ok {
			return text
		}
	} else if utf8.Valid(raw) {
		return string(raw)
	}

	if text, ok := decodeSniffed(raw, mediaType); ok {
		return text
	}

	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}

func decodeWithCharset(raw []byte, name string) (string, bool) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	// decoders substitute instead of failing, a new replacement rune means the charset does not fit
	if bytes.ContainsRune(out, utf8.RuneError) && !bytes.ContainsRune(raw, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func decodeSniffed(raw []byte, mediaType string) (string, bool) {
	enc, _, _ := charset.DetermineEncoding(raw, mediaType)
	if enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	return string(out), true
}
