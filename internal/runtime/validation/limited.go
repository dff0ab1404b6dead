package validation

import (
	"fmt"
	"sort"
	"strings"
)

// LimitedDisplay renders a sorted set of user controlled strings as
// {"a", "b"}, eliding trailing elements so the result stays within maxLength
// where possible: {"a", ... 2 more} or {... 3 elements}.
func LimitedDisplay(elements []string, maxLength int) string {
	sorted := append([]string(nil), elements...)
	sort.Strings(sorted)
	return limitedCollection(sorted, maxLength, "{", "}")
}

// LimitedList is LimitedDisplay for ordered lists, keeping the given order and using brackets.
func LimitedList(elements []string, maxLength int) string {
	return limitedCollection(elements, maxLength, "[", "]")
}

func limitedCollection(elements []string, maxLength int, opening, closing string) string {
	var out strings.Builder
	out.WriteString(opening)
	// lengths[i] is the output length before element i was written
	lengths := make([]int, 0, len(elements))
	for i, e := range elements {
		lengths = append(lengths, out.Len())
		if i == 0 {
			out.WriteByte('"')
		} else {
			out.WriteString(", \"")
		}
		out.WriteString(e)
		out.WriteByte('"')
		if out.Len() > maxLength {
			break
		}
	}

	if out.Len()+len(closing) <= maxLength {
		return out.String() + closing
	}

	s := out.String()
	for len(lengths) > 0 {
		prev := lengths[len(lengths)-1]
		lengths = lengths[:len(lengths)-1]
		skipped := len(elements) - len(lengths)
		var skippedText string
		if len(lengths) == 0 {
			skippedText = fmt.Sprintf("... %d elements", skipped)
		} else {
			skippedText = fmt.Sprintf(", ... %d more", skipped)
		}
		if prev+len(skippedText)+len(closing) <= maxLength {
			return s[:prev] + skippedText + closing
		}
	}
	// nothing fits, fall back to the shortest form
	if len(elements) == 0 {
		return opening + closing
	}
	return fmt.Sprintf("%s... %d elements%s", opening, len(elements), closing)
}
