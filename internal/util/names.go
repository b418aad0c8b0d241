package util

import "strings"

// maxDNSLabel is the Kubernetes limit for object names that must be DNS-1123 labels
const maxDNSLabel = 63

// DNSLabel converts a job name like "gen_2012_3" into a valid DNS-1123 label ("gen-2012-3").
// Characters outside [a-z0-9-] become '-', and leading/trailing dashes are trimmed.
func DNSLabel(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
	}

	label := strings.Trim(sb.String(), "-")
	if len(label) > maxDNSLabel {
		// Keep the tail: it carries the node index.
		label = strings.Trim(label[len(label)-maxDNSLabel:], "-")
	}
	if label == "" {
		return "job"
	}
	return label
}
