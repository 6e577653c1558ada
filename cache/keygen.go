package cache

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const maxKeyLength = 200

// KeyFor builds a stable cache key from a namespace path and parameters.
// Parameters are sorted so the same request always maps to the same key.
func KeyFor(path string, params map[string]string) string {
	var parts []string
	for k, v := range params {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	sort.Strings(parts)

	key := path
	if len(parts) > 0 {
		key = path + "?" + strings.Join(parts, "&")
	}

	// For very long keys, use hash to keep backend keys bounded
	if len(key) > maxKeyLength {
		return fmt.Sprintf("%s#%x", path, md5.Sum([]byte(key)))
	}
	return key
}
