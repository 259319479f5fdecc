package platforms

import "regexp"

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODuration converts an ISO 8601 duration like "PT4M13S" into whole
// seconds. Every component is optional. Returns nil when the value does not
// match, so callers store an unknown duration rather than a wrong one.
func parseISODuration(value string) *int {
	match := isoDurationPattern.FindStringSubmatch(value)
	if match == nil || (match[1] == "" && match[2] == "" && match[3] == "") {
		return nil
	}

	total := 0
	for i, unit := range []int{3600, 60, 1} {
		part := match[i+1]
		if part == "" {
			continue
		}
		n := 0
		for _, c := range part {
			n = n*10 + int(c-'0')
		}
		total += n * unit
	}
	return &total
}
