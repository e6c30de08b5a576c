package submission

import (
	"sort"
	"strings"
)

// DedupeKey identifies a file within one (submission, field) pair: its name,
// or its url when the name is absent.
func DedupeKey(name string, url string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	return "url:" + url
}

func (f File) DedupeKey() string {
	return DedupeKey(f.Name, f.URL)
}

// PendingUpload is a file carrying local bytes that must reach the blob store
// before it can be recorded.
type PendingUpload struct {
	FieldID string
	File    FileInput
}

func (p PendingUpload) Resolved(url string) File {
	return File{
		FieldID:  p.FieldID,
		URL:      url,
		Name:     p.File.Name,
		MimeType: p.File.MimeType,
	}
}

// Partition splits the incoming files into those already carrying a persisted
// url and those that still need an upload. A url-less file whose name matches
// an existing row for the same field reuses that row's url, so repeated
// autosaves of an unchanged field never upload again.
func Partition(form Form, existing []File) (map[string][]File, []PendingUpload) {
	known := make(map[string]map[string]File)
	for _, row := range existing {
		key := row.DedupeKey()
		if key == "" {
			continue
		}
		if known[row.FieldID] == nil {
			known[row.FieldID] = make(map[string]File)
		}
		if _, ok := known[row.FieldID][key]; !ok {
			known[row.FieldID][key] = row
		}
	}

	ready := make(map[string][]File)
	pending := make([]PendingUpload, 0)
	for _, fieldID := range sortedFieldKeys(form.Fields) {
		seen := make(map[string]struct{})
		for _, in := range form.Fields[fieldID].Files {
			key := DedupeKey(in.Name, in.URL)
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}

			if in.Uploaded() {
				ready[fieldID] = append(ready[fieldID], File{
					FieldID:  fieldID,
					URL:      in.URL,
					Name:     in.Name,
					MimeType: in.MimeType,
				})
				continue
			}
			if row, ok := known[fieldID][key]; ok && key != "" {
				ready[fieldID] = append(ready[fieldID], row)
				continue
			}
			pending = append(pending, PendingUpload{FieldID: fieldID, File: in})
		}
	}
	return ready, pending
}

// DedupeForDisplay drops repeated attachments for rendering. Rows are keyed by
// url, falling back to id when the url is empty. First occurrence wins.
func DedupeForDisplay(files []File) []File {
	out := make([]File, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		key := strings.TrimSpace(f.URL)
		if key == "" {
			key = "id:" + f.ID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// FilesByField groups rows by field id preserving input order.
func FilesByField(files []File) map[string][]File {
	out := make(map[string][]File)
	for _, f := range files {
		out[f.FieldID] = append(out[f.FieldID], f)
	}
	return out
}

func sortedFieldKeys(fields map[string]FieldInput) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
