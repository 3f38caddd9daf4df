package checksum

import (
	"fmt"
	"io"
)

// WriteSums writes one "<sum>  <path>" line per successful result,
// in the format used by sha256sum and friends.
func WriteSums(w io.Writer, results []Result) error {
	for _, r := range results {
		if r.Error != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", r.Sum, r.File.Path); err != nil {
			return fmt.Errorf("failed to write checksum: %w", err)
		}
	}
	return nil
}
