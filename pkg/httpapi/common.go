package httpapi

import "strconv"

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// parseIncludeOther implements spec §6's "true"/"1" (default)/other rule:
// absent means true, present-and-unrecognised means false.
func parseIncludeOther(v string) bool {
	if v == "" {
		return true
	}
	return v == "true" || v == "1"
}
