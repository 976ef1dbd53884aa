package attach

import (
	"mime"
	"path/filepath"
	"strings"
)

// sourceMIMETypes fixes the MIME types of source-code and config extensions.
// It takes precedence over the platform table, which misclassifies several
// of these (.ts is an MPEG transport stream there, .conf varies by distro).
var sourceMIMETypes = map[string]string{
	".jsx":    "text/javascript",
	".tsx":    "text/typescript",
	".ts":     "text/typescript",
	".vue":    "text/html",
	".svelte": "text/html",
	".md":     "text/markdown",
	".json":   "application/json",
	".py":     "text/x-python",
	".js":     "text/javascript",
	".css":    "text/css",
	".html":   "text/html",
	".xml":    "text/xml",
	".yaml":   "text/yaml",
	".yml":    "text/yaml",
	".toml":   "text/plain",
	".ini":    "text/plain",
	".cfg":    "text/plain",
	".conf":   "text/plain",
	".sh":     "text/x-shellscript",
	".bat":    "text/plain",
	".sql":    "text/x-sql",
}

// DetectMIMEType infers a MIME type from the file extension: the fixed
// source-code table first, then the generic platform table, then plain text.
func DetectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := sourceMIMETypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "text/plain"
}
