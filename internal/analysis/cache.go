package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const cacheKeySeparator = "|"

// completionCache memoizes completions by content and request parameters.
// A nil cache stores nothing.
type completionCache struct {
	entries *lru.Cache[string, string]
}

func newCompletionCache(size int) (*completionCache, error) {
	if size <= 0 {
		return nil, nil
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &completionCache{entries: entries}, nil
}

func (cache *completionCache) get(key string) (string, bool) {
	if cache == nil {
		return "", false
	}
	return cache.entries.Get(key)
}

func (cache *completionCache) add(key string, recommendation string) {
	if cache == nil {
		return
	}
	cache.entries.Add(key, recommendation)
}

func completionCacheKey(content string, model string, temperature float32, maxTokens int) string {
	digest := sha256.Sum256([]byte(content))
	return strings.Join([]string{
		hex.EncodeToString(digest[:]),
		model,
		strconv.FormatFloat(float64(temperature), 'f', -1, 32),
		strconv.Itoa(maxTokens),
	}, cacheKeySeparator)
}
