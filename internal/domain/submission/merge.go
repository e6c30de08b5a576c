package submission

import "sort"

// FieldValue is the decoded form of one submission data entry.
type FieldValue struct {
	Value any
	Files []File
}

// Merge applies the incoming form over existing data and returns a new
// mapping. Fields absent from the form are kept. For each incoming field the
// value is replaced (last write wins) while the file list is the union of the
// stored files and files, keyed by DedupeKey, so a save can never drop a file
// that was already recorded. existing is not modified.
func Merge(existing Data, form Form, files map[string][]File) Data {
	out := make(Data, len(existing)+len(form.Fields))
	for key, value := range existing {
		out[key] = value
	}

	for _, key := range sortedFieldKeys(form.Fields) {
		prev := DecodeEntry(existing[key])
		merged := unionFiles(prev.Files, files[key])
		out[key] = encodeEntry(form.Fields[key].Value, merged)
	}

	if len(form.Metadata) > 0 {
		meta := make(map[string]any)
		if prevMeta, ok := existing[MetadataKey].(map[string]any); ok {
			for k, v := range prevMeta {
				meta[k] = v
			}
		}
		for k, v := range form.Metadata {
			meta[k] = v
		}
		out[MetadataKey] = meta
	}
	return out
}

// DecodeEntry reads a stored entry. Entries written by Merge carry "value" and
// "files"; anything else is treated as a bare value.
func DecodeEntry(raw any) FieldValue {
	entry, ok := raw.(map[string]any)
	if !ok {
		return FieldValue{Value: raw}
	}
	_, hasValue := entry["value"]
	rawFiles, hasFiles := entry["files"]
	if !hasValue && !hasFiles {
		return FieldValue{Value: raw}
	}
	return FieldValue{Value: entry["value"], Files: decodeFiles(rawFiles)}
}

// Fields decodes every non-reserved entry of data.
func (d Data) Fields() map[string]FieldValue {
	out := make(map[string]FieldValue, len(d))
	for key, raw := range d {
		if key == MetadataKey {
			continue
		}
		fv := DecodeEntry(raw)
		for i := range fv.Files {
			fv.Files[i].FieldID = key
		}
		out[key] = fv
	}
	return out
}

func (d Data) Keys() []string {
	keys := make([]string, 0, len(d))
	for key := range d {
		if key != MetadataKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func unionFiles(stored []File, incoming []File) []File {
	out := make([]File, 0, len(stored)+len(incoming))
	seen := make(map[string]struct{}, len(stored)+len(incoming))
	for _, group := range [][]File{stored, incoming} {
		for _, f := range group {
			key := f.DedupeKey()
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

func encodeEntry(value any, files []File) map[string]any {
	encoded := make([]any, 0, len(files))
	for _, f := range files {
		item := map[string]any{"url": f.URL, "name": f.Name}
		if f.MimeType != "" {
			item["mime_type"] = f.MimeType
		}
		encoded = append(encoded, item)
	}
	return map[string]any{"value": value, "files": encoded}
}

func decodeFiles(raw any) []File {
	var items []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				items = append(items, m)
			}
		}
	case []map[string]any:
		items = v
	default:
		return nil
	}

	out := make([]File, 0, len(items))
	for _, item := range items {
		f := File{
			URL:      stringOf(item["url"]),
			Name:     stringOf(item["name"]),
			MimeType: stringOf(item["mime_type"]),
		}
		if f.URL == "" && f.Name == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}
