// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recording

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultMIME is used for unknown extensions.
const DefaultMIME = "audio/mpeg"

const defaultExt = "m4a"

var mimeByExt = map[string]string{
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"aac":  "audio/aac",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"3gp":  "audio/3gpp",
	"amr":  "audio/amr",
	"ogg":  "audio/ogg",
	"opus": "audio/opus",
	"webm": "audio/webm",
	"caf":  "audio/x-caf",
	"flac": "audio/flac",
}

// extOf returns the lower-case extension of uri without the dot. Query and fragment are ignored.
func extOf(uri string) string {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.TrimPrefix(path.Ext(p), ".")
	return strings.ToLower(ext)
}

// MIMEForURI maps the artifact's extension to a MIME type.
func MIMEForURI(uri string) string {
	if m, ok := mimeByExt[extOf(uri)]; ok {
		return m
	}
	return DefaultMIME
}

// SuggestedFileName returns recording_<leadId>_<unix>.<ext>, defaulting ext to m4a.
func SuggestedFileName(leadID, uri string, at time.Time) string {
	ext := extOf(uri)
	if ext == "" {
		ext = defaultExt
	}
	if leadID == "" {
		leadID = "unknown"
	}
	return fmt.Sprintf("recording_%s_%d.%s", leadID, at.Unix(), ext)
}
