package wizard

import (
	"maps"
	"slices"
)

// FormState maps field names to collected values. Lookups are by name and key
// order carries no meaning.
type FormState map[string]Value

func (f FormState) Get(name string) (Value, bool) {
	v, ok := f[name]
	return v, ok
}

// Text returns the rendered value of a field, or "" when it is not set
func (f FormState) Text(name string) string {
	return f[name].String()
}

func (f FormState) Set(name string, v Value) {
	f[name] = v
}

// Merge copies every entry of other into f, overwriting existing keys
func (f FormState) Merge(other FormState) {
	maps.Copy(f, other)
}

// Clone returns a copy that shares no list storage with f
func (f FormState) Clone() FormState {
	out := make(FormState, len(f))
	for k, v := range f {
		if v.kind == KindList {
			v.list = slices.Clone(v.list)
		}
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order
func (f FormState) Keys() []string {
	return slices.Sorted(maps.Keys(f))
}

// Missing returns the names from required that are absent or empty, in the
// order they were given
func (f FormState) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if v, ok := f[name]; !ok || v.IsEmpty() {
			missing = append(missing, name)
		}
	}
	return missing
}

// Strings renders every field as text, the shape prompt templates consume
func (f FormState) Strings() map[string]string {
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v.String()
	}
	return out
}

// Filled reports whether any of the named fields holds a non-empty value
func (f FormState) Filled(names ...string) bool {
	for _, name := range names {
		if v, ok := f[name]; ok && !v.IsEmpty() {
			return true
		}
	}
	return false
}
