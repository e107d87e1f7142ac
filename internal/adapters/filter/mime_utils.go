package filter

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// extractTextFromMessage pulls the plain text out of a message for
// analysis. Multipart messages contribute their text/plain parts;
// anything else is returned as-is.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	var text bytes.Buffer
	mr := multipart.NewReader(msg.Body, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken part should not hide text already collected.
			break
		}

		partType := part.Header.Get("Content-Type")
		if partType == "" || strings.Contains(strings.ToLower(partType), "text/plain") {
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			text.Write(partBytes)
			text.WriteString("\n")
		}
	}

	return text.String(), nil
}

// decodeEncodedHeader decodes RFC 2047 encoded-words, returning the
// raw header when decoding fails.
func decodeEncodedHeader(value string) string {
	if !strings.Contains(value, "=?") {
		return value
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
