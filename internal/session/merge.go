package session

import "strings"

// Merge overlays fresh on cached. Fresh values win; keys only the cache holds
// are kept so client-side fields survive a refresh. Neither input is changed.
func Merge(cached, fresh Record) Record {
	out := make(Record, len(cached)+len(fresh))
	for k, v := range cached {
		out[k] = v
	}
	for k, v := range fresh {
		out[k] = v
	}
	return out
}

// DisplayName joins first and last name. It reports false when the record
// has no first name.
func DisplayName(rec Record) (string, bool) {
	first := stringField(rec, "first_name")
	if first == "" {
		return "", false
	}
	if last := stringField(rec, "last_name"); last != "" {
		return first + " " + last, true
	}
	return first, true
}

func stringField(rec Record, key string) string {
	s, _ := rec[key].(string)
	return strings.TrimSpace(s)
}
