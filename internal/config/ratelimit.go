package config

// This file configures the token-bucket limiter that fronts the /v1/auth
// endpoints.  The defaults are deliberately tight: every request through the
// bucket carries credentials or a refresh cookie, so sustained traffic from
// one client is either a broken SPA or a credential-stuffing run.

import (
    "os"
    "strconv"
    "time"
)

type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // bucket size; burst allowance per key
    RefillTokens   int           // tokens added per interval
    RefillInterval time.Duration
    TTL            time.Duration // Redis key lifetime; idle buckets expire
    KeyStrategy    string        // which request parts form the bucket key
    Prefix         string
    Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:  envBool("RATE_LIMIT_ENABLED", true),
        // 10 requests of burst, one token back every 3 seconds.  A browser
        // doing register/login/refresh never gets near this; a password
        // guesser stalls after the first handful of attempts.
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 10),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 3*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 15*time.Minute),
        // Keyed by IP and route: most callers of /v1/auth are anonymous,
        // so a user-based key would collapse them all into one bucket.
        KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
        Prefix:      envStr("RATE_LIMIT_PREFIX", "auth:rl"),
        Debug:       envBool("RATE_LIMIT_DEBUG", false),
    }
    if def.Capacity < 1 { def.Capacity = 1 }
    if def.RefillTokens < 1 { def.RefillTokens = 1 }
    if def.RefillInterval <= 0 { def.RefillInterval = time.Second }
    // The key must outlive its refill cycle or a drained bucket resets
    // early and the limiter leaks tokens.
    minTTL := 5 * def.RefillInterval
    if def.TTL < minTTL { def.TTL = minTTL }
    return def
}

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" { return d }
    switch v {
    case "1","true","TRUE","True","yes","YES","on","ON": return true
    case "0","false","FALSE","False","no","NO","off","OFF": return false
    }
    return d
}
func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}
func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
