// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package remote

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// form builds a multipart body in field order; the first error sticks.
type form struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *form {
	f := &form{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *form) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *form) coordinates(lat, lng float64) {
	f.field("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	f.field("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
}

func (f *form) file(name, uri, mimeType string) {
	f.namedFile(name, uri, "", mimeType)
}

func (f *form) namedFile(name, uri, fileName, mimeType string) {
	if f.err != nil {
		return
	}
	path, err := localPath(uri)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	if fileName == "" {
		fileName = filepath.Base(path)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	src, err := os.Open(path)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
		return
	}
	defer func() { _ = src.Close() }()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     name,
		"filename": fileName,
	}))
	h.Set("Content-Type", mimeType)
	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	if _, err := io.Copy(part, src); err != nil {
		f.err = fmt.Errorf("%s: %w", name, err)
	}
}

func (f *form) finish() (io.Reader, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	if err := f.w.Close(); err != nil {
		return nil, "", err
	}
	return bytes.NewReader(f.buf.Bytes()), f.w.FormDataContentType(), nil
}

// localPath accepts a plain path or a file:// URI.
func localPath(uri string) (string, error) {
	if uri == "" {
		return "", errors.New("empty file uri")
	}
	if !strings.Contains(uri, "://") {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported file uri scheme %q", u.Scheme)
	}
	return u.Path, nil
}
