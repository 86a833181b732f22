package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	// EnvFiles lists the .env files that were applied.
	EnvFiles []string
}

// Load resolves, reads, parses, and validates the runtime configuration. A .env file
// beside the config or in the working directory is applied first; variables already set
// in the environment win.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	envFiles, envWarnings := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env"), ".env")

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			warnings := append(envWarnings, Warning{
				Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
			})
			validated, err := Validate(base)
			if err != nil {
				return Loaded{}, err
			}
			return Loaded{
				Path:     resolvedPath,
				Config:   base,
				Warnings: append(warnings, validated...),
				Exists:   false,
				EnvFiles: envFiles,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: append(envWarnings, warnings...),
		Exists:   true,
		EnvFiles: envFiles,
	}, nil
}

// loadDotEnv applies each existing, distinct path in order.
func loadDotEnv(paths ...string) ([]string, []Warning) {
	var (
		applied  []string
		warnings []Warning
		seen     = make(map[string]bool)
	)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("ignoring env file %q: %v", abs, err)})
			continue
		}
		applied = append(applied, abs)
	}
	return applied, warnings
}
