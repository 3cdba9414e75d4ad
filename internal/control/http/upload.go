// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ManuGH/fieldvisit/internal/capture"
	"github.com/ManuGH/fieldvisit/internal/domain/meeting/manager"
)

var allowedSelfieExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
	".webp": true,
}

// formProof is the check-in/out evidence the UI posted with a form.
type formProof struct {
	proof   manager.Proof
	cleanup func()
}

// parseProof reads the selfie part and the coordinates of a multipart form.
// A missing selfie or fix is not an input error here; the orchestrator
// reports it as a capture failure.
func (s *Server) parseProof(r *http.Request) (formProof, error) {
	out := formProof{cleanup: func() {}}

	var loc *capture.Location
	latRaw := strings.TrimSpace(r.FormValue("latitude"))
	lonRaw := strings.TrimSpace(r.FormValue("longitude"))
	if latRaw != "" || lonRaw != "" {
		lat, err := parseCoordinate(latRaw, 90)
		if err != nil {
			return out, fmt.Errorf("latitude: %w", err)
		}
		lon, err := parseCoordinate(lonRaw, 180)
		if err != nil {
			return out, fmt.Errorf("longitude: %w", err)
		}
		loc = &capture.Location{Latitude: lat, Longitude: lon}
	}

	selfie := ""
	file, hdr, err := r.FormFile("selfie")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return out, fmt.Errorf("selfie: %w", err)
	default:
		defer func() { _ = file.Close() }()
		path, err := s.storeUpload(file, hdr)
		if err != nil {
			return out, fmt.Errorf("selfie: %w", err)
		}
		selfie = path
		out.cleanup = func() { _ = os.Remove(path) }
	}

	out.proof = manager.Proof{
		Camera:  capture.StaticCamera(selfie),
		Locator: capture.StaticLocator{Fix: loc},
	}
	return out, nil
}

func parseCoordinate(raw string, limit float64) (float64, error) {
	if raw == "" {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("out of range [-%g, %g]", limit, limit)
	}
	return v, nil
}

// storeUpload copies the selfie into UploadDir under a random name.
func (s *Server) storeUpload(src multipart.File, hdr *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(hdr.Filename))
	if !allowedSelfieExt[ext] {
		return "", fmt.Errorf("unsupported image type %q", ext)
	}
	dir := s.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	path := filepath.Join(dir, "selfie-"+uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
