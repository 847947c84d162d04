// Package blob stores uploaded images under a media directory and hands back
// relative references that the API renders behind the media URL.
package blob

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	ErrMalformed     = errors.New("image payload is not valid base64")
	ErrUnsupported   = errors.New("unsupported image format")
	ErrTooLarge      = errors.New("image exceeds the upload limit")
	ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")
)

// DefaultMaxPixels bounds width*height of an accepted image.
const DefaultMaxPixels = 40_000_000

// Category decides the directory an image lands in.
type Category string

const (
	CategoryProfile Category = "profiles"
	CategoryID      Category = "ids"
)

var extensions = map[string]string{
	"png":  "png",
	"jpeg": "jpg",
	"gif":  "gif",
	"webp": "webp",
}

// Store writes images to the local filesystem.
type Store struct {
	root     string
	maxBytes int64
	// Profile pictures wider or taller than this are scaled down. Zero keeps
	// the original.
	maxDimension int
	maxPixels    int64
	log          *zap.Logger
}

// NewStore creates root if needed.
func NewStore(root string, maxBytes int64, maxDimension int, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Store{root: root, maxBytes: maxBytes, maxDimension: maxDimension, maxPixels: DefaultMaxPixels, log: log}, nil
}

// LimitPixels replaces DefaultMaxPixels. Non-positive values are ignored.
func (s *Store) LimitPixels(n int64) *Store {
	if n > 0 {
		s.maxPixels = n
	}
	return s
}

// Decode turns a base64 payload, optionally wrapped in a data URI, into raw
// bytes and the detected image format.
func (s *Store) Decode(payload string) ([]byte, string, error) {
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	payload = strings.TrimSpace(payload)
	if s.maxBytes > 0 && int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxBytes+2 {
		return nil, "", ErrTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", ErrMalformed
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		return nil, "", ErrTooLarge
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", ErrUnsupported
	}
	if _, ok := extensions[format]; !ok {
		return nil, "", ErrUnsupported
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", ErrUnsupported
	}
	// Checked before any full decode: a small compressed payload can declare
	// dimensions whose pixel buffer would not fit in memory.
	if int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		return nil, "", ErrTooManyPixels
	}
	return raw, format, nil
}

// Put validates payload and writes it for userID, returning the reference.
func (s *Store) Put(_ context.Context, cat Category, userID int64, payload string) (string, error) {
	raw, format, err := s.Decode(payload)
	if err != nil {
		return "", err
	}
	if cat == CategoryProfile && s.maxDimension > 0 {
		raw, format, err = s.fit(raw, format)
		if err != nil {
			return "", err
		}
	}

	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	ref := path.Join(string(cat), fmt.Sprint(userID), strings.ToLower(id.String())+"."+extensions[format])
	full := filepath.Join(s.root, filepath.FromSlash(ref))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store blob: %w", err)
	}
	s.log.Debug("blob stored", zap.String("ref", ref), zap.Int("bytes", len(raw)))
	return ref, nil
}

// Delete removes a stored reference. Missing files are not an error.
func (s *Store) Delete(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	clean := path.Clean("/" + ref)[1:]
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// fit scales an image down to maxDimension on its longer side.
func (s *Store) fit(raw []byte, format string) ([]byte, string, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", ErrUnsupported
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= s.maxDimension && h <= s.maxDimension {
		return raw, format, nil
	}
	if w >= h {
		h = h * s.maxDimension / w
		w = s.maxDimension
	} else {
		w = w * s.maxDimension / h
		h = s.maxDimension
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if format == "png" || format == "gif" {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "png", nil
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), "jpeg", nil
}
