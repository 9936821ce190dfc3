// Package attribution builds and merges the deduplicated credit lines
// attached to lessons that carry imported content.
package attribution

import "strings"

// Compose builds one credit line ("Source · [License](url)"). It prefers
// attributionText over sourceName, and renders the license as a markdown link
// when licenseURL is present. Pure and deterministic.
func Compose(sourceName, lic, licenseURL, attributionText string) string {
	credit := strings.TrimSpace(attributionText)
	if credit == "" {
		credit = strings.TrimSpace(sourceName)
	}

	licensePart := strings.TrimSpace(lic)
	if licensePart != "" && strings.TrimSpace(licenseURL) != "" {
		licensePart = "[" + licensePart + "](" + strings.TrimSpace(licenseURL) + ")"
	}

	parts := make([]string, 0, 2)
	if credit != "" {
		parts = append(parts, credit)
	}
	if licensePart != "" {
		parts = append(parts, licensePart)
	}
	return strings.Join(parts, " · ")
}

// Split breaks an attribution block into its ordered list of trimmed,
// non-empty lines.
func Split(block string) []string {
	lines := strings.Split(block, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Build joins segments into a block, deduplicated by first occurrence.
// Merging new segments into an existing block never disturbs prior content
// and never introduces duplicates.
func Build(segments []string) string {
	seen := make(map[string]struct{}, len(segments))
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if _, dup := seen[seg]; dup {
			continue
		}
		seen[seg] = struct{}{}
		out = append(out, seg)
	}
	return strings.Join(out, "\n")
}
