package assets

import (
	"fmt"
	"net/http"
	"path"
	"strings"
	"unicode"

	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
)

var allowedContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// AllowedExtensions lists the accepted file extensions.
func AllowedExtensions() []string {
	return []string{".jpeg", ".jpg", ".png", ".webp"}
}

// ValidateFile checks the extension and the sniffed content against the
// image allow-list and the per-file size ceiling. It returns the content type
// to store the file with.
func ValidateFile(data []byte, originalName string, maxBytes int64) (string, error) {
	name := strings.TrimSpace(originalName)
	if len(data) == 0 {
		return "", invalidAsset(name, "file is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", invalidAsset(name, fmt.Sprintf("file exceeds %d KB", maxBytes/1024))
	}

	ext := strings.ToLower(path.Ext(name))
	expected, ok := allowedContentTypes[ext]
	if !ok {
		return "", invalidAsset(name, "only jpeg, png or webp images are accepted")
	}

	sniffed := sniffContentType(data)
	if sniffed != expected {
		return "", invalidAsset(name, fmt.Sprintf("content looks like %s, not %s", sniffed, expected))
	}
	return sniffed, nil
}

func sniffContentType(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	contentType := http.DetectContentType(head)
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func invalidAsset(name, reason string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidAsset, reason).WithDetails(map[string]string{
		"file":   name,
		"reason": reason,
	})
}

// sanitizeFileName reduces name to a safe base name. The stem and the
// extension are cleaned separately so the extension survives a stem made
// only of replaced characters; such stems become "image".
func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	rawExt := path.Ext(clean)
	stem := sanitizeStem(strings.TrimSuffix(clean, rawExt))
	ext := sanitizeExt(rawExt)
	if stem == "" {
		if ext == "" {
			return ""
		}
		stem = "image"
	}
	return stem + ext
}

func sanitizeStem(stem string) string {
	var b strings.Builder
	b.Grow(len(stem))
	for _, r := range stem {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		case r > unicode.MaxASCII:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}

func sanitizeExt(ext string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimPrefix(ext, ".")) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "." + b.String()
}
