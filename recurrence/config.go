package recurrence

import "time"

// EngineConfig holds configuration options for the recurrence engine.
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxIterations bounds the frequency steps of one rule expansion.
	MaxIterations int
	// Workers limits how many entities ExpandAll evaluates at once; 0 means unlimited.
	Workers int
	// FloatingZone is the zone floating values are read in; empty means UTC.
	FloatingZone string
}

// DefaultEngineConfig provides sensible defaults for production use.
var DefaultEngineConfig = EngineConfig{
	CacheEnabled:  true,
	CacheConfig:   DefaultCacheConfig,
	MaxIterations: DefaultMaxIterations,
	Workers:       8,
}

// HighPerformanceConfig is optimized for high-traffic scenarios.
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute, // Longer cache TTL
		MaxEntries:      5000,             // More cache entries
		CleanupInterval: 10 * time.Minute, // Less frequent cleanup
	},
	MaxIterations: 100_000, // Give up on pathological rules sooner
	Workers:       32,
}

// LowMemoryConfig is optimized for memory-constrained environments.
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute, // Shorter cache TTL
		MaxEntries:      100,             // Fewer cache entries
		CleanupInterval: 2 * time.Minute, // More frequent cleanup
	},
	MaxIterations: DefaultMaxIterations,
	Workers:       2,
}

// DisabledCacheConfig turns off caching entirely.
var DisabledCacheConfig = EngineConfig{
	CacheEnabled:  false,
	MaxIterations: DefaultMaxIterations,
	Workers:       8,
}

// PresetConfig returns the named preset: "default", "high-performance", "low-memory" or
// "no-cache".
func PresetConfig(name string) (EngineConfig, bool) {
	switch name {
	case "", "default":
		return DefaultEngineConfig, true
	case "high-performance":
		return HighPerformanceConfig, true
	case "low-memory":
		return LowMemoryConfig, true
	case "no-cache":
		return DisabledCacheConfig, true
	}
	return EngineConfig{}, false
}
