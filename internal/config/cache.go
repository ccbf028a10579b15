package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// CacheConfig drives the Redis response cache.  The only cached endpoint is
// GET /v1/auth/password-policy: the policy is static per install and the SPA
// fetches it on every registration form render, so even a short TTL removes
// nearly all of that traffic.  Everything under /v1/auth besides the policy
// is a POST and never passes through the cache.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:     getenv("CACHE_ENABLED", "true") == "true",
        Methods:     parseMethods(getenv("CACHE_METHODS", "GET")),
        // The policy changes only on deploy; five minutes keeps restarts
        // from serving a stale one for long while still absorbing the
        // SPA's polling.
        TTL:         parseDur(getenv("CACHE_TTL", "5m")),
        KeyStrategy: getenv("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:      getenv("CACHE_PREFIX", "auth:cache"),
        // Policy responses are a few hundred bytes; 64 KiB leaves headroom
        // without letting a misrouted handler fill Redis.
        MaxBodyBytes: atoi(getenv("CACHE_MAX_BODY_BYTES", "65536")),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}

func getenv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func atoi(s string) int {
    i, _ := strconv.Atoi(s)
    return i
}

func parseDur(s string) time.Duration {
    d, err := time.ParseDuration(s)
    if err != nil {
        return time.Second
    }
    return d
}
