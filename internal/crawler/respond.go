package crawler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// defaultCharset is the label used when a response declares no charset or an
// unknown one.
const defaultCharset = "utf-8"

// Respond is a fully materialized HTTP response.
// It is built once per successful fetch and never modified afterwards.
type Respond struct {
	// URL is the final address after redirects.
	URL *url.URL

	// ContentLength is the declared body length, -1 when the server did not
	// send one.
	ContentLength int64

	// Header holds the response headers.
	Header http.Header

	// StatusCode is the HTTP status code.
	StatusCode int

	// Charset is the canonical name of the encoding used to decode Text.
	Charset string

	// Text is the decoded body. It is always valid UTF-8.
	Text string
}

// HasContentLength reports whether the server declared a body length.
func (r *Respond) HasContentLength() bool {
	return r.ContentLength >= 0
}

// Materialize reads resp into a Respond and closes its body.
//
// URL, status, headers and content length are captured before the body is
// read. The body is decoded with the charset named in the Content-Type
// header. A missing or unrecognized charset falls back to UTF-8, and
// undecodable bytes become U+FFFD, so decoding itself never fails.
// The only error is a failed body read, reported as ErrInvalidContent.
//
// maxBodySize caps the number of bytes read. Zero or negative means no cap.
func Materialize(resp *http.Response, maxBodySize int64) (*Respond, error) {
	defer resp.Body.Close()

	r := &Respond{
		ContentLength: resp.ContentLength,
		Header:        resp.Header.Clone(),
		StatusCode:    resp.StatusCode,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		final := *resp.Request.URL
		r.URL = &final
	}

	enc, name := lookupEncoding(charsetFromContentType(resp.Header.Get("Content-Type")))

	var body io.Reader = resp.Body
	if maxBodySize > 0 {
		body = io.LimitReader(resp.Body, maxBodySize)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}

	r.Charset = name
	r.Text = decode(enc, raw)
	return r, nil
}

// charsetFromContentType extracts the charset parameter from a Content-Type
// header value. It returns "" when the header is absent or malformed.
func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

// lookupEncoding resolves a charset label using the WHATWG encoding index.
func lookupEncoding(label string) (encoding.Encoding, string) {
	if label == "" {
		return unicode.UTF8, defaultCharset
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return unicode.UTF8, defaultCharset
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return enc, strings.ToLower(label)
	}
	return enc, name
}

// decode converts raw bytes to UTF-8 text.
// The x/text decoders substitute U+FFFD for malformed input; the fallback
// only runs if a decoder rejects the input outright.
func decode(enc encoding.Encoding, raw []byte) string {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(out)
}
