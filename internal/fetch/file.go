package fetch

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"sort"
	"strings"
)

func createFile(path string) (*os.File, error) {
	return os.Create(path)
}

// hashFields returns an 8-char hex digest of the sorted field set, used as
// the cache filename's filter_sig component so two requests for different
// variable combinations against the same filter-capable product never
// collide on one cache entry.
func hashFields(fields []string) string {
	sorted := append([]string(nil), fields...)
	sort.Strings(sorted)
	sum := sha1.Sum([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])[:8]
}
