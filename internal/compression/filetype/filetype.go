// Package filetype classifies files into compression categories by
// extension and declared content type.
package filetype

import (
	"path/filepath"
	"strings"

	"github.com/shrinkray/compression-backend/internal/compression/domain"
)

type formatSet struct {
	extensions   []string
	contentTypes []string
}

var supportedFormats = map[domain.FileCategory]formatSet{
	domain.CategoryPDF: {
		extensions:   []string{".pdf"},
		contentTypes: []string{"application/pdf"},
	},
	domain.CategoryImage: {
		extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tiff", ".svg"},
		contentTypes: []string{
			"image/jpeg", "image/jpg", "image/png", "image/gif",
			"image/bmp", "image/webp", "image/tiff", "image/svg+xml",
		},
	},
	domain.CategoryText: {
		extensions: []string{".txt", ".md", ".json", ".xml", ".csv", ".log", ".rtf"},
		contentTypes: []string{
			"text/plain", "text/markdown", "application/json",
			"text/xml", "text/csv", "text/rtf",
		},
	},
	domain.CategoryDocument: {
		extensions: []string{".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".odp"},
		contentTypes: []string{
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.ms-excel",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/vnd.ms-powerpoint",
			"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			"application/vnd.oasis.opendocument.text",
			"application/vnd.oasis.opendocument.spreadsheet",
			"application/vnd.oasis.opendocument.presentation",
		},
	},
	domain.CategoryVideo: {
		extensions: []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".mkv"},
		contentTypes: []string{
			"video/mp4", "video/avi", "video/quicktime",
			"video/x-ms-wmv", "video/x-flv", "video/webm", "video/x-matroska",
		},
	},
	domain.CategoryAudio: {
		extensions: []string{".mp3", ".wav", ".aac", ".ogg", ".flac", ".m4a"},
		contentTypes: []string{
			"audio/mpeg", "audio/wav", "audio/aac",
			"audio/ogg", "audio/flac", "audio/mp4",
		},
	},
	domain.CategoryArchive: {
		extensions: []string{".zip", ".rar", ".7z", ".tar", ".gz"},
		contentTypes: []string{
			"application/zip", "application/x-rar-compressed",
			"application/x-7z-compressed", "application/x-tar", "application/gzip",
		},
	},
}

// DetectCategory maps a file to its category by extension first, then by
// declared content type. An empty category is the single "unsupported file"
// signal used everywhere else.
func DetectCategory(name, contentType string) (domain.FileCategory, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	ct := strings.ToLower(contentType)

	for _, category := range domain.AllCategories() {
		set := supportedFormats[category]
		for _, e := range set.extensions {
			if e == ext {
				return category, true
			}
		}
		for _, c := range set.contentTypes {
			if c == ct {
				return category, true
			}
		}
	}

	return "", false
}

// IsSupported reports whether a file maps to any category
func IsSupported(name, contentType string) bool {
	_, ok := DetectCategory(name, contentType)
	return ok
}

// Extensions returns the extension list for one category
func Extensions(category domain.FileCategory) []string {
	set, ok := supportedFormats[category]
	if !ok {
		return nil
	}
	out := make([]string, len(set.extensions))
	copy(out, set.extensions)
	return out
}

// ContentTypes returns the content-type list for one category
func ContentTypes(category domain.FileCategory) []string {
	set, ok := supportedFormats[category]
	if !ok {
		return nil
	}
	out := make([]string, len(set.contentTypes))
	copy(out, set.contentTypes)
	return out
}

// AllExtensions returns every supported extension, for UI file filters
func AllExtensions() []string {
	var out []string
	for _, category := range domain.AllCategories() {
		out = append(out, supportedFormats[category].extensions...)
	}
	return out
}

// AllContentTypes returns every supported content type
func AllContentTypes() []string {
	var out []string
	for _, category := range domain.AllCategories() {
		out = append(out, supportedFormats[category].contentTypes...)
	}
	return out
}
