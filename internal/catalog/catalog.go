// Package catalog is the static inventory of cache locations the cleaner
// knows about, per platform. Paths here are candidates only: everything still
// passes through the sentinel before any deletion.
package catalog

import (
	"os"
	"path/filepath"
	"runtime"
)

// Target represents one category of cache that can be scanned and cleaned.
type Target struct {
	// Name is the unique identifier for this target.
	Name string

	// Context is the policy allowed-roots context the target's deletions
	// run under.
	Context string

	// Paths is the list of candidate filesystem paths.
	Paths []string

	// Description is a human-readable description.
	Description string

	// Category groups related targets (e.g., "user", "browser", "dev", "game").
	Category string

	// RiskLevel is one of "low", "medium", "high".
	RiskLevel string
}

func home() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}

// xdgCache returns the Linux user cache directory.
func xdgCache() string {
	if c := os.Getenv("XDG_CACHE_HOME"); c != "" {
		return c
	}
	return filepath.Join(home(), ".cache")
}

// xdgConfig returns the Linux user config directory.
func xdgConfig() string {
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		return c
	}
	return filepath.Join(home(), ".config")
}

// Targets returns the cleanup targets for the running platform.
func Targets() []Target {
	switch runtime.GOOS {
	case "darwin":
		return darwinTargets()
	case "windows":
		return windowsTargets()
	default:
		return linuxTargets()
	}
}

// ByCategory returns targets filtered by category.
func ByCategory(category string) []Target {
	var result []Target
	for _, t := range Targets() {
		if t.Category == category {
			result = append(result, t)
		}
	}
	return result
}

// ByName returns the named target, if the platform defines it.
func ByName(name string) (Target, bool) {
	for _, t := range Targets() {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

func darwinTargets() []Target {
	h := home()
	lib := filepath.Join(h, "Library")
	caches := filepath.Join(lib, "Caches")

	return []Target{
		// ── Browser Caches ──────────────────────────────────────
		{
			Name:    "ChromeCache",
			Context: "chrome",
			Paths: []string{
				filepath.Join(caches, "Google", "Chrome"),
				filepath.Join(lib, "Application Support", "Google", "Chrome", "Default", "Cache"),
			},
			Description: "Google Chrome browser cache",
			Category:    "browser",
			RiskLevel:   "low",
		},
		{
			Name:        "FirefoxCache",
			Context:     "firefox",
			Paths:       []string{filepath.Join(caches, "Firefox")},
			Description: "Mozilla Firefox browser cache",
			Category:    "browser",
			RiskLevel:   "low",
		},

		// ── Game Engine Caches ──────────────────────────────────
		{
			Name:    "UnityCache",
			Context: "unity",
			Paths: []string{
				filepath.Join(caches, "Unity"),
				filepath.Join(lib, "Application Support", "Unity", "cache"),
			},
			Description: "Unity editor asset and GI caches",
			Category:    "game",
			RiskLevel:   "low",
		},
		{
			Name:    "UnrealCache",
			Context: "unreal",
			Paths: []string{
				filepath.Join(caches, "UnrealEngine"),
				filepath.Join(lib, "Application Support", "Epic", "UnrealEngine", "Common", "DerivedDataCache"),
			},
			Description: "Unreal Engine derived data cache",
			Category:    "game",
			RiskLevel:   "low",
		},

		// ── IDE Caches ──────────────────────────────────────────
		{
			Name:    "VSCodeCache",
			Context: "vscode",
			Paths: []string{
				filepath.Join(lib, "Application Support", "Code", "Cache"),
				filepath.Join(lib, "Application Support", "Code", "CachedData"),
			},
			Description: "Visual Studio Code cache",
			Category:    "dev",
			RiskLevel:   "low",
		},

		// ── Developer Caches ────────────────────────────────────
		{
			Name:        "NpmCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".npm", "_cacache")},
			Description: "npm package manager cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "PipCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(caches, "pip")},
			Description: "Python pip package cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "CargoCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".cargo", "registry", "cache")},
			Description: "Rust cargo registry cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "GradleCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".gradle", "caches")},
			Description: "Gradle build cache",
			Category:    "dev",
			RiskLevel:   "low",
		},

		// ── System ──────────────────────────────────────────────
		{
			Name:        "UserCaches",
			Context:     "system_caches",
			Paths:       []string{caches},
			Description: "User-level application caches (~/Library/Caches)",
			Category:    "user",
			RiskLevel:   "medium",
		},
	}
}

func linuxTargets() []Target {
	h := home()
	cache := xdgCache()
	config := xdgConfig()

	return []Target{
		// ── Browser Caches ──────────────────────────────────────
		{
			Name:        "ChromeCache",
			Context:     "chrome",
			Paths:       []string{filepath.Join(cache, "google-chrome")},
			Description: "Google Chrome browser cache",
			Category:    "browser",
			RiskLevel:   "low",
		},
		{
			Name:        "FirefoxCache",
			Context:     "firefox",
			Paths:       []string{filepath.Join(cache, "mozilla", "firefox")},
			Description: "Mozilla Firefox browser cache",
			Category:    "browser",
			RiskLevel:   "low",
		},

		// ── Game Engine Caches ──────────────────────────────────
		{
			Name:    "UnityCache",
			Context: "unity",
			Paths: []string{
				filepath.Join(cache, "unity3d"),
				filepath.Join(config, "unity3d", "cache"),
			},
			Description: "Unity editor asset and GI caches",
			Category:    "game",
			RiskLevel:   "low",
		},
		{
			Name:        "UnrealCache",
			Context:     "unreal",
			Paths:       []string{filepath.Join(config, "Epic", "UnrealEngine", "Common", "DerivedDataCache")},
			Description: "Unreal Engine derived data cache",
			Category:    "game",
			RiskLevel:   "low",
		},

		// ── IDE Caches ──────────────────────────────────────────
		{
			Name:    "VSCodeCache",
			Context: "vscode",
			Paths: []string{
				filepath.Join(config, "Code", "Cache"),
				filepath.Join(config, "Code", "CachedData"),
			},
			Description: "Visual Studio Code cache",
			Category:    "dev",
			RiskLevel:   "low",
		},

		// ── Developer Caches ────────────────────────────────────
		{
			Name:        "NpmCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".npm", "_cacache")},
			Description: "npm package manager cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "PipCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(cache, "pip")},
			Description: "Python pip package cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "CargoCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".cargo", "registry", "cache")},
			Description: "Rust cargo registry cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "GradleCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".gradle", "caches")},
			Description: "Gradle build cache",
			Category:    "dev",
			RiskLevel:   "low",
		},

		// ── System ──────────────────────────────────────────────
		{
			Name:        "UserCaches",
			Context:     "system_caches",
			Paths:       []string{cache},
			Description: "User-level application caches (~/.cache)",
			Category:    "user",
			RiskLevel:   "medium",
		},
		{
			Name:        "Thumbnails",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(cache, "thumbnails")},
			Description: "Desktop thumbnail cache (rebuilds automatically)",
			Category:    "user",
			RiskLevel:   "low",
		},
	}
}

func windowsTargets() []Target {
	local := os.Getenv("LOCALAPPDATA")
	roaming := os.Getenv("APPDATA")
	h := home()

	return []Target{
		// ── Browser Caches ──────────────────────────────────────
		{
			Name:    "ChromeCache",
			Context: "chrome",
			Paths: []string{
				filepath.Join(local, "Google", "Chrome", "User Data", "Default", "Cache"),
				filepath.Join(local, "Google", "Chrome", "User Data", "Default", "Code Cache"),
			},
			Description: "Google Chrome browser cache",
			Category:    "browser",
			RiskLevel:   "low",
		},
		{
			Name:        "FirefoxCache",
			Context:     "firefox",
			Paths:       []string{filepath.Join(local, "Mozilla", "Firefox", "Profiles")},
			Description: "Mozilla Firefox browser cache",
			Category:    "browser",
			RiskLevel:   "low",
		},

		// ── Game Engine Caches ──────────────────────────────────
		{
			Name:    "UnityCache",
			Context: "unity",
			Paths: []string{
				filepath.Join(local, "Unity", "cache"),
				filepath.Join(roaming, "Unity", "Asset Store-5.x"),
			},
			Description: "Unity editor asset and GI caches",
			Category:    "game",
			RiskLevel:   "low",
		},
		{
			Name:        "UnrealCache",
			Context:     "unreal",
			Paths:       []string{filepath.Join(local, "UnrealEngine", "Common", "DerivedDataCache")},
			Description: "Unreal Engine derived data cache",
			Category:    "game",
			RiskLevel:   "low",
		},

		// ── IDE Caches ──────────────────────────────────────────
		{
			Name:    "VSCodeCache",
			Context: "vscode",
			Paths: []string{
				filepath.Join(roaming, "Code", "Cache"),
				filepath.Join(roaming, "Code", "CachedData"),
			},
			Description: "Visual Studio Code cache",
			Category:    "dev",
			RiskLevel:   "low",
		},

		// ── Developer Caches ────────────────────────────────────
		{
			Name:        "NpmCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(roaming, "npm-cache")},
			Description: "npm package manager cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "PipCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(local, "pip", "Cache")},
			Description: "Python pip package cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "CargoCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".cargo", "registry", "cache")},
			Description: "Rust cargo registry cache",
			Category:    "dev",
			RiskLevel:   "low",
		},
		{
			Name:        "GradleCache",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(h, ".gradle", "caches")},
			Description: "Gradle build cache",
			Category:    "dev",
			RiskLevel:   "low",
		},

		// ── User Temp ───────────────────────────────────────────
		{
			Name:        "UserTemp",
			Context:     "system_caches",
			Paths:       []string{filepath.Join(local, "Temp")},
			Description: "User temporary files",
			Category:    "user",
			RiskLevel:   "low",
		},
	}
}
