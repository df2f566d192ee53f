package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// coordinatePartRegex matches a single group, artifact or classifier.
// Dots and dashes are allowed since groups map to nested directories and
// artifacts often carry them.
var coordinatePartRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._+-]*$`)

// ValidateCoordinatePart validates one component of an artifact coordinate.
// Coordinates end up in file names and repository paths, so anything that
// could escape the target directory is rejected:
//   - No empty parts
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 256 characters
func ValidateCoordinatePart(kind, part string) error {
	if part == "" {
		return New(ErrCodeInvalidCoordinate, "%s cannot be empty", kind)
	}

	if len(part) > 256 {
		return New(ErrCodeInvalidCoordinate, "%s too long (max 256 characters)", kind)
	}

	for _, r := range part {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidCoordinate, "%s contains invalid control characters", kind)
		}
	}

	if strings.Contains(part, "..") {
		return New(ErrCodeInvalidCoordinate, "%s contains invalid characters: %q", kind, "..")
	}

	if !coordinatePartRegex.MatchString(part) {
		return New(ErrCodeInvalidCoordinate, "invalid %s: %q", kind, part)
	}

	return nil
}

// ValidatePath validates a path inside an archive or repository for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a repository URL string.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
