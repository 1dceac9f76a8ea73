package normalize

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeTransfer undoes a Content-Transfer-Encoding.
func decodeTransfer(encoding string, data []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "7bit", "8bit", "binary":
		return data, nil
	case "base64":
		return decodeBase64(data)
	case "quoted-printable":
		out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(data)))
		if err != nil && len(out) == 0 {
			return nil, fmt.Errorf("decode quoted-printable: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported transfer encoding %q", encoding)
	}
}

func decodeBase64(data []byte) ([]byte, error) {
	compact := bytes.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\t', ' ':
			return -1
		}
		return r
	}, data)
	s := string(compact)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if out, err := enc.DecodeString(s); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("decode base64: malformed payload of %d bytes", len(data))
}

// charsetLabel extracts the charset parameter from a Content-Type value.
func charsetLabel(contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(strings.TrimSpace(params["charset"]))
	}
	lower := strings.ToLower(contentType)
	i := strings.Index(lower, "charset=")
	if i < 0 {
		return ""
	}
	label := lower[i+len("charset="):]
	if j := strings.IndexAny(label, "; "); j >= 0 {
		label = label[:j]
	}
	return strings.Trim(label, `"'`)
}

// decodeCharset converts data to UTF-8. Unknown or missing labels fall back to
// UTF-8 when the bytes are valid UTF-8 and to Windows-1252 otherwise.
func decodeCharset(contentType string, data []byte, isHTML bool) string {
	label := charsetLabel(contentType)
	if label == "" && isHTML {
		if _, name, certain := charset.DetermineEncoding(data, "text/html"); certain {
			label = name
		}
	}

	switch label {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
	default:
		if enc, err := htmlindex.Get(label); err == nil && enc != nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(out)
			}
		}
	}

	if utf8.Valid(data) {
		return string(data)
	}
	if out, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
		return string(out)
	}
	return strings.ToValidUTF8(string(data), "\ufffd")
}
