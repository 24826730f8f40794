package attributes

// DeepMerge merges b onto a and returns the result; neither input is
// modified. Mappings merge key by key, sequences concatenate with
// duplicates kept, and any other value from b replaces a.
func DeepMerge(a, b any) any {
	da, aIsDoc := asDocument(a)
	db, bIsDoc := asDocument(b)
	if aIsDoc && bIsDoc {
		return MergeDocuments(da, db)
	}

	la, aIsList := asList(a)
	lb, bIsList := asList(b)
	if aIsList && bIsList {
		out := make([]any, 0, len(la)+len(lb))
		out = append(out, la...)
		return append(out, lb...)
	}

	return normalize(b)
}

// MergeDocuments deep merges b onto a copy of a
func MergeDocuments(a, b *Document) *Document {
	out := a.Clone()
	if b == nil {
		return out
	}
	for _, k := range b.keys {
		if existing, ok := out.values[k]; ok {
			out.Set(k, DeepMerge(existing, b.values[k]))
			continue
		}
		out.Set(k, normalize(b.values[k]))
	}
	return out
}

func asDocument(v any) (*Document, bool) {
	switch t := v.(type) {
	case *Document:
		return t, t != nil
	case map[string]any:
		return FromMap(t), true
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch v.(type) {
	case []any, []string, []map[string]any:
		return normalize(v).([]any), true
	default:
		return nil, false
	}
}
