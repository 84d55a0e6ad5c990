package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalPath returns the path of the local override for a config file,
// `librus.json5` becomes `librus.local.json5`.
func LocalPath(name string) string {
	prefixname, ext := splitExt(filepath.Base(name))
	return filepath.Join(
		filepath.Dir(name),
		fmt.Sprintf("%s.local.%s", prefixname, ext),
	)
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
//
// os.ErrNotExist is returned only if neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	allNotFound := true

	defaultFile, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(defaultFile) > 0 {
		err = json5.Unmarshal(defaultFile, &out)
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", name, err)
		}
		allNotFound = false
	}

	localFilepath := LocalPath(name)
	localFile, err := os.ReadFile(localFilepath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(localFile) > 0 {
		var override T
		err = json5.Unmarshal(localFile, &override)
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", localFilepath, err)
		}
		err = mergo.Merge(&out, override, mergo.WithOverride, mergo.WithoutDereference)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localFilepath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}

	return out, nil
}

// ReadConfigWithDefaults is ReadConfig, except that a missing file is not an
// error and every zero field left after reading is filled from `defaults`.
//
// Pointer fields are not dereferenced: a non-nil pointer is kept (and a local
// override wins) even when it points at a zero value.
func ReadConfigWithDefaults[T any](name string, defaults T) (T, error) {
	out, err := ReadConfig[T](name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	err = mergo.Merge(&out, defaults, mergo.WithoutDereference)
	if err != nil {
		return out, err
	}
	return out, nil
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	root, err := filepath.Abs("/")
	if err != nil {
		return defaultOut, err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Dir(current)
			continue
		}
		if err != nil {
			return defaultOut, err
		}

		return config, nil
	}

	return defaultOut, os.ErrNotExist
}
