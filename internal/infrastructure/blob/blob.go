package blob

import (
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds the object name for a submission file. The random segment
// keeps re-uploads of a same-named file from overwriting each other.
func ObjectKey(caseID string, fieldID string, fileName string) string {
	name := unsafeName.ReplaceAllString(strings.TrimSpace(fileName), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return path.Join("cases", sanitizeSegment(caseID), sanitizeSegment(fieldID), uuid.NewString()+"-"+name)
}

func sanitizeSegment(s string) string {
	s = unsafeName.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" || s == "." {
		return "_"
	}
	return s
}

func joinURL(base string, parts ...string) string {
	base = strings.TrimRight(base, "/")
	return base + "/" + strings.TrimLeft(path.Join(parts...), "/")
}
