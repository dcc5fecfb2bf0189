package download

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// placeholderExts are server-side script suffixes that show up in stream URL
// paths. They say nothing about the audio format, so they never become the
// file extension.
var placeholderExts = map[string]bool{
	".do":     true,
	".action": true,
	".jsp":    true,
	".php":    true,
	".asp":    true,
	".aspx":   true,
	".cgi":    true,
}

// contentTypeExts maps response content types to audio file extensions.
var contentTypeExts = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/mp4":    ".m4a",
	"audio/m4a":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/aac":    ".aac",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/ogg":    ".ogg",
}

// DefaultExt is used when nothing about the response reveals the format.
const DefaultExt = ".mp3"

// InferExtension picks a file extension for a downloaded stream. The URL
// path's own extension wins unless it is a script placeholder, then the
// Content-Disposition filename, then the Content-Type, then [DefaultExt].
func InferExtension(rawURL string, header http.Header) string {
	if ext := pathExt(rawURL); ext != "" {
		return ext
	}

	if ext := dispositionExt(header.Get("Content-Disposition")); ext != "" {
		return ext
	}

	ct := header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	if ext, ok := contentTypeExts[strings.TrimSpace(strings.ToLower(ct))]; ok {
		return ext
	}

	return DefaultExt
}

func pathExt(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	ext := strings.ToLower(path.Ext(parsed.Path))
	if ext == "" || placeholderExts[ext] {
		return ""
	}
	return ext
}

func dispositionExt(disposition string) string {
	if disposition == "" {
		return ""
	}

	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}

	filename := params["filename"]
	if filename == "" {
		return ""
	}

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" || placeholderExts[ext] {
		return ""
	}
	return ext
}
