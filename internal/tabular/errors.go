package tabular

import (
	"fmt"
	"strings"
)

// HeaderNotFoundError is returned when no row in the scan window carries all
// of the required header tokens.
type HeaderNotFoundError struct {
	Tokens  []string
	Scanned int
}

func (e *HeaderNotFoundError) Error() string {
	return fmt.Sprintf("could not find header row with %s columns in the first %d rows",
		strings.Join(titleCase(e.Tokens), ", "), e.Scanned)
}

// MissingColumnError names the required columns that could not be identified
// along with every column that was found.
type MissingColumnError struct {
	Missing []string
	Found   []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required columns %v; found columns: %v", e.Missing, e.Found)
}

func titleCase(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if t == "" {
			continue
		}
		out[i] = strings.ToUpper(t[:1]) + t[1:]
	}
	return out
}
