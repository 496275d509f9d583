package invoice

import (
	"fmt"
	"time"
)

// datePrefixLayout is the YYYYMMDD prefix of every invoice number
const datePrefixLayout = "20060102"

// DatePrefix returns the invoice number prefix for the UTC calendar day of t
func DatePrefix(t time.Time) string {
	return t.UTC().Format(datePrefixLayout)
}

// SequenceOf extracts the sequence that follows the date prefix.
// Leading digits are read until the first non-digit; anything unparsable counts as 0.
func SequenceOf(number string) int {
	if len(number) <= len(datePrefixLayout) {
		return 0
	}
	seq := 0
	for _, c := range number[len(datePrefixLayout):] {
		if c < '0' || c > '9' {
			break
		}
		seq = seq*10 + int(c-'0')
	}
	return seq
}

// NextNumber returns prefix followed by max(existing sequences)+1, padded to at least 3 digits.
// Past 999 the sequence widens instead of wrapping.
func NextNumber(prefix string, existing []string) string {
	highest := 0
	for _, n := range existing {
		if seq := SequenceOf(n); seq > highest {
			highest = seq
		}
	}
	return fmt.Sprintf("%s%03d", prefix, highest+1)
}
