package corpus

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"golang.org/x/net/html/charset"
)

var errNoHTMLPart = errors.New("mhtml: no text/html part")

// readMHTML returns the first text/html part of a MIME HTML archive, decoded to UTF-8.
func readMHTML(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("mhtml: %w", err)
	}
	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("mhtml: %w", err)
	}
	if mediaType == "text/html" {
		return decodePart(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", errNoHTMLPart
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", errNoHTMLPart
		}
		if err != nil {
			return "", fmt.Errorf("mhtml: %w", err)
		}
		pt, pparams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil || pt != "text/html" {
			continue
		}
		// multipart.Part already undoes quoted-printable and drops the header.
		return decodePart(part, part.Header.Get("Content-Transfer-Encoding"), pparams["charset"])
	}
}

func decodePart(r io.Reader, transferEncoding, label string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(transferEncoding), "base64") {
		r = base64.NewDecoder(base64.StdEncoding, &newlineStripper{r: r})
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("mhtml: %w", err)
	}
	if label == "" {
		return string(body), nil
	}
	cr, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return string(body), nil
	}
	out, err := io.ReadAll(cr)
	if err != nil {
		return "", fmt.Errorf("mhtml: %w", err)
	}
	return string(out), nil
}

// newlineStripper drops CR and LF so wrapped base64 lines decode as one stream.
type newlineStripper struct {
	r io.Reader
}

func (n *newlineStripper) Read(p []byte) (int, error) {
	for {
		c, err := n.r.Read(p)
		w := 0
		for _, b := range p[:c] {
			if b != '\r' && b != '\n' {
				p[w] = b
				w++
			}
		}
		if w > 0 || err != nil {
			return w, err
		}
	}
}
