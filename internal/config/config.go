// Package config holds the compile-time defaults for the proxy core and the
// environment-variable overrides applied once at startup.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config collects every tunable named in the system overview. Each field has
// a compile-time default, and every field except ProxyIdent may be
// overridden by an identically-named environment variable (e.g.
// MAX_CLIENTS=4000).
type Config struct {
	MaxClients     int
	Workers        int
	QueueCapacity  int
	CacheMaxTotal  int64
	CacheMaxEntry  int64
	PoolCapacity   int
	PoolIdleMaxAge time.Duration
	ConnectTimeout time.Duration
	IOBufferBytes  int

	AdminAddr     string
	StatsInterval time.Duration
	BlocklistPath string
	ProxyIdent    string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxClients:     1200,
		Workers:        50,
		QueueCapacity:  2000,
		CacheMaxTotal:  200 * 1024 * 1024,
		CacheMaxEntry:  10 * 1024 * 1024,
		PoolCapacity:   100,
		PoolIdleMaxAge: 60 * time.Second,
		ConnectTimeout: 30 * time.Second,
		IOBufferBytes:  8192,

		AdminAddr:     ":9090",
		StatsInterval: 60 * time.Second,
		BlocklistPath: "blocked.json",
		ProxyIdent:    "cacheproxy/1.0",
	}
}

// FromEnv starts from Default and applies any overrides found in the
// process environment. Malformed values are ignored and the default is kept.
func FromEnv() Config {
	c := Default()

	overrideInt(&c.MaxClients, "MAX_CLIENTS")
	overrideInt(&c.Workers, "WORKERS")
	overrideInt(&c.QueueCapacity, "QUEUE_CAPACITY")
	overrideInt64(&c.CacheMaxTotal, "CACHE_MAX_TOTAL_BYTES")
	overrideInt64(&c.CacheMaxEntry, "CACHE_MAX_ENTRY_BYTES")
	overrideInt(&c.PoolCapacity, "POOL_CAPACITY")
	overrideDurationSeconds(&c.PoolIdleMaxAge, "POOL_IDLE_MAX_AGE_S")
	overrideDurationSeconds(&c.ConnectTimeout, "UPSTREAM_CONNECT_TIMEOUT_S")
	overrideInt(&c.IOBufferBytes, "IO_BUFFER_BYTES")

	overrideString(&c.AdminAddr, "ADMIN_ADDR")
	overrideDurationSeconds(&c.StatsInterval, "STATS_INTERVAL_S")
	overrideString(&c.BlocklistPath, "BLOCKLIST_PATH")

	return c
}

func overrideInt(dst *int, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func overrideInt64(dst *int64, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = n
	}
}

func overrideDurationSeconds(dst *time.Duration, env string) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}

func overrideString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = v
	}
}
