package pipeline

import "unicode/utf8"

// slice returns the characters [start:end) of s, clamping both bounds to the
// string like a Python slice does. Out-of-range or inverted bounds give "".
func slice(s string, start, end int) string {
	r := []rune(s)
	n := len(r)
	start = clamp(start, 0, n)
	end = clamp(end, 0, n)
	if end <= start {
		return ""
	}
	return string(r[start:end])
}

// lastN returns at most the final n characters of s.
func lastN(s string, n int) string {
	l := runeLen(s)
	return slice(s, l-n, l)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
