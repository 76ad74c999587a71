package circuitid

import "strings"

// Normalize canonicalizes circuit names and their common aliases. Unknown
// names come back lowercased with underscores as separators.
func Normalize(name string) string {
	normalized := strings.TrimSpace(strings.ToLower(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.Trim(normalized, "_")
	if normalized == "" {
		return ""
	}
	for _, candidate := range aliasCandidates(normalized) {
		if canonical, ok := canonicalCircuitName(candidate); ok {
			return canonical
		}
	}
	return normalized
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	trimmed := strings.TrimPrefix(normalized, "stick_")
	trimmed = strings.TrimSuffix(trimmed, "_circuit")
	trimmed = strings.Trim(trimmed, "_")
	if trimmed != "" && trimmed != normalized {
		candidates = append(candidates, trimmed)
	}
	return candidates
}

func canonicalCircuitName(alias string) (string, bool) {
	switch strings.ReplaceAll(alias, "_", "") {
	case "memory", "mem":
		return "memory", true
	case "invertingmemory", "invmemory", "invmem", "inverting":
		return "inverting_memory", true
	case "signedmemory", "signedmem", "signed":
		return "signed_memory", true
	case "synchronizer", "synchroniser", "sync":
		return "synchronizer", true
	default:
		return "", false
	}
}
