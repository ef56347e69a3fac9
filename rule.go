package fxfer

import (
	"fmt"
	"regexp"
	"time"

	"github.com/derektruong/fxfer-upload/internal/fileinput"
	"github.com/derektruong/fxfer-upload/internal/fileutils"
	"github.com/derektruong/fxfer-upload/internal/sliceutils"
)

var (
	ErrMaxFileSizeExceeded = func(required, got int64) error {
		return fmt.Errorf("fxfer: file size exceeds the maximum allowed size: %d > %d bytes", got, required)
	}
	ErrMinFileSizeNotMet = func(required, got int64) error {
		return fmt.Errorf("fxfer: file size does not meet the minimum required size: %d < %d bytes", got, required)
	}
	ErrExtensionNotAllowed = func(ext string) error {
		return fmt.Errorf("fxfer: file extension is not allowed: %s", ext)
	}
	ErrExtensionBlocked = func(ext string) error {
		return fmt.Errorf("fxfer: file extension is blocked: %s", ext)
	}
	ErrModifiedBefore = func(t time.Time) error {
		return fmt.Errorf("fxfer: file was not modified before the required time: %s", t.Format(time.RFC3339))
	}
	ErrModifiedAfter = func(t time.Time) error {
		return fmt.Errorf("fxfer: file was not modified after the required time: %s", t.Format(time.RFC3339))
	}
	ErrFileNamePatternMismatch = func(pattern string) error {
		return fmt.Errorf("fxfer: file name does not match the required pattern: %s", pattern)
	}
)

// fileRule is an opt-in, client-side guard checked right after input
// normalization, before any handshake is attempted. It has no
// equivalent in the distilled spec's normalizer phase, but lets a
// caller reject an upload early on static file properties instead of
// discovering a server-side rejection after a handshake round trip.
type fileRule struct {
	MaxFileSize        int64
	MinFileSize        int64
	ExtensionWhitelist []string
	ExtensionBlacklist []string
	ModifiedAfter      time.Time
	ModifiedBefore     time.Time
	FileNamePattern    *regexp.Regexp
}

// Check validates a normalized descriptor against the rule. A
// descriptor with unknown size (streaming) only skips the size checks;
// every other check still applies.
func (r *fileRule) Check(d fileinput.Descriptor) (err error) {
	if d.Size != nil {
		if r.MaxFileSize > 0 && *d.Size > r.MaxFileSize {
			return ErrMaxFileSizeExceeded(r.MaxFileSize, *d.Size)
		}
		if r.MinFileSize > 0 && *d.Size < r.MinFileSize {
			return ErrMinFileSizeNotMet(r.MinFileSize, *d.Size)
		}
	}

	_, _, ext, extractErr := fileutils.ExtractFileParts(d.Name)
	if extractErr != nil {
		ext = ""
	}
	if len(r.ExtensionWhitelist) > 0 && !sliceutils.Contains(r.ExtensionWhitelist, ext) {
		return ErrExtensionNotAllowed(ext)
	}
	if len(r.ExtensionBlacklist) > 0 && sliceutils.Contains(r.ExtensionBlacklist, ext) {
		return ErrExtensionBlocked(ext)
	}

	if !r.ModifiedAfter.IsZero() && d.LastModified.Before(r.ModifiedAfter) {
		return ErrModifiedAfter(r.ModifiedAfter)
	}
	if !r.ModifiedBefore.IsZero() && d.LastModified.After(r.ModifiedBefore) {
		return ErrModifiedBefore(r.ModifiedBefore)
	}

	if r.FileNamePattern != nil && !r.FileNamePattern.MatchString(d.Name) {
		return ErrFileNamePatternMismatch(r.FileNamePattern.String())
	}
	return nil
}

// WithMaxFileSize rejects uploads whose (known) size exceeds size.
// Default is unlimited.
func WithMaxFileSize(size int64) UploaderOption {
	return func(c *uploaderConfig) { c.fileRule.MaxFileSize = size }
}

// WithMinFileSize rejects uploads whose (known) size is below size.
// Default is unlimited.
func WithMinFileSize(size int64) UploaderOption {
	return func(c *uploaderConfig) { c.fileRule.MinFileSize = size }
}

// WithExtensionWhitelist restricts uploads to the given extensions,
// without the leading dot (e.g. "png", not ".png").
// Default is empty (no restriction).
func WithExtensionWhitelist(extensions ...string) UploaderOption {
	return func(c *uploaderConfig) { c.fileRule.ExtensionWhitelist = extensions }
}

// WithExtensionBlacklist rejects uploads with the given extensions,
// without the leading dot. Default is empty (no restriction).
func WithExtensionBlacklist(extensions ...string) UploaderOption {
	return func(c *uploaderConfig) { c.fileRule.ExtensionBlacklist = extensions }
}

// WithModifiedAfter rejects uploads whose last-modified time is before t.
func WithModifiedAfter(t time.Time) UploaderOption {
	return func(c *uploaderConfig) { c.fileRule.ModifiedAfter = t }
}

// WithModifiedBefore rejects uploads whose last-modified time is after t.
func WithModifiedBefore(t time.Time) UploaderOption {
	return func(c *uploaderConfig) { c.fileRule.ModifiedBefore = t }
}

// WithFileNamePattern rejects uploads whose normalized name does not
// match pattern.
func WithFileNamePattern(pattern *regexp.Regexp) UploaderOption {
	return func(c *uploaderConfig) { c.fileRule.FileNamePattern = pattern }
}
