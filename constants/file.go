package constants

import "strings"

const (
	PDF   = "PDF"
	XML   = "XML"
	IMAGE = "IMAGE"
)

// FileTypes holds the formats a document may have.
var FileTypes = []string{PDF, XML, IMAGE}

// AllowedExtensions holds the default allowed file extensions for expediente ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"xml":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps an extension (with or without dot) onto one of FileTypes, or "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "xml":
		return XML
	case "jpg", "jpeg", "png", "tif", "tiff":
		return IMAGE
	default:
		return ""
	}
}

// MediaType returns the MIME type for a format/extension pair.
func MediaType(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "xml":
		return "application/xml"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "tif", "tiff":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// Paginated reports whether a format is page-addressable.
func Paginated(format string) bool {
	return format == PDF
}
