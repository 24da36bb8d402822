package crawler

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

func newResponse(t *testing.T, contentType string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, "https://example.com/final", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode:    http.StatusOK,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestMaterialize(t *testing.T) {
	t.Parallel()

	t.Run("utf-8 is the default", func(t *testing.T) {
		t.Parallel()

		text := "<p>héllo 世界</p>"
		r, err := Materialize(newResponse(t, "text/html", []byte(text)), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Text != text {
			t.Errorf("Text = %q, want %q", r.Text, text)
		}
		if r.Charset != "utf-8" {
			t.Errorf("Charset = %q, want utf-8", r.Charset)
		}
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()

		r, err := Materialize(newResponse(t, "", []byte("plain")), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Text != "plain" || r.Charset != "utf-8" {
			t.Errorf("got %q/%q", r.Text, r.Charset)
		}
	})

	t.Run("invalid utf-8 is replaced", func(t *testing.T) {
		t.Parallel()

		r, err := Materialize(newResponse(t, "text/html", []byte("ok\xff\xfeok")), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !utf8.ValidString(r.Text) {
			t.Errorf("Text %q is not valid UTF-8", r.Text)
		}
		if !strings.Contains(r.Text, "�") {
			t.Errorf("Text %q has no replacement character", r.Text)
		}
	})

	t.Run("unknown charset falls back to utf-8", func(t *testing.T) {
		t.Parallel()

		r, err := Materialize(newResponse(t, "text/html; charset=x-klingon", []byte("qapla'")), 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Charset != "utf-8" || r.Text != "qapla'" {
			t.Errorf("got %q/%q", r.Text, r.Charset)
		}
	})

	t.Run("body read failure", func(t *testing.T) {
		t.Parallel()

		resp := newResponse(t, "text/html", nil)
		resp.Body = io.NopCloser(failingReader{})
		_, err := Materialize(resp, 0)
		if !errors.Is(err, ErrInvalidContent) {
			t.Errorf("expected ErrInvalidContent, got %v", err)
		}
	})

	t.Run("metadata is captured", func(t *testing.T) {
		t.Parallel()

		resp := newResponse(t, "text/html", []byte("abc"))
		resp.Header.Set("X-Test", "1")
		r, err := Materialize(resp, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.URL.String() != "https://example.com/final" {
			t.Errorf("URL = %s", r.URL)
		}
		if r.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", r.StatusCode)
		}
		if !r.HasContentLength() || r.ContentLength != 3 {
			t.Errorf("ContentLength = %d", r.ContentLength)
		}
		if r.Header.Get("X-Test") != "1" {
			t.Error("header not captured")
		}
	})

	t.Run("unknown content length", func(t *testing.T) {
		t.Parallel()

		resp := newResponse(t, "text/html", []byte("abc"))
		resp.ContentLength = -1
		r, err := Materialize(resp, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.HasContentLength() {
			t.Error("HasContentLength() = true for unknown length")
		}
	})

	t.Run("body size cap", func(t *testing.T) {
		t.Parallel()

		r, err := Materialize(newResponse(t, "text/html", []byte("0123456789")), 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Text != "0123" {
			t.Errorf("Text = %q, want %q", r.Text, "0123")
		}
	})
}

// TestMaterializeDeclaredCharset checks that declared charsets decode the
// same way as the x/text reference decoders.
func TestMaterializeDeclaredCharset(t *testing.T) {
	t.Parallel()

	sjis, err := japanese.ShiftJIS.NewEncoder().String("日本語のページ")
	if err != nil {
		t.Fatalf("encode Shift_JIS: %v", err)
	}
	latin, err := charmap.ISO8859_1.NewEncoder().String("café crème")
	if err != nil {
		t.Fatalf("encode ISO-8859-1: %v", err)
	}

	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
		wantCharset string
	}{
		{
			name:        "shift_jis",
			contentType: "text/html; charset=Shift_JIS",
			body:        sjis,
			want:        "日本語のページ",
			wantCharset: "shift_jis",
		},
		{
			name:        "iso-8859-1 maps to windows-1252",
			contentType: `text/html; charset="ISO-8859-1"`,
			body:        latin,
			want:        "café crème",
			wantCharset: "windows-1252",
		},
		{
			name:        "label is case-insensitive",
			contentType: "text/html; CHARSET=UTF-8",
			body:        "ünïcode",
			want:        "ünïcode",
			wantCharset: "utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := Materialize(newResponse(t, tt.contentType, []byte(tt.body)), 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Text != tt.want {
				t.Errorf("Text = %q, want %q", r.Text, tt.want)
			}
			if r.Charset != tt.wantCharset {
				t.Errorf("Charset = %q, want %q", r.Charset, tt.wantCharset)
			}
		})
	}
}
