// Package env provides the process environment accessor used by the rest of
// the module.
//
// An Env is built once at startup with Load and then passed explicitly to the
// code that needs it (config loading, pool construction). Values defined in a
// local .env file are read a single time; process variables always take
// precedence over file values, and a missing key is never an error.
package env

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-backend-kit/internal/sysutil"
)

// DefaultFile is read by Load when no file names are given.
const DefaultFile = ".env"

// Env resolves environment keys against the live process environment and a
// snapshot of .env file values taken at construction time.
type Env struct {
	file map[string]string
}

// Load reads the given .env files (DefaultFile when none) and returns an Env.
// Files that do not exist or fail to parse are skipped; Load never fails.
// Earlier files win over later ones, matching godotenv.Load.
func Load(files ...string) *Env {
	if len(files) == 0 {
		files = []string{DefaultFile}
	}
	merged := make(map[string]string)
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Debug().Err(err).Str("file", f).Msg("env file skipped")
			}
			continue
		}
		for k, v := range vals {
			if _, seen := merged[k]; !seen {
				merged[k] = v
			}
		}
	}
	return &Env{file: merged}
}

// FromMap returns an Env whose file layer is a copy of m.
func FromMap(m map[string]string) *Env {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &Env{file: cp}
}

// Lookup reports the value for key and whether it is defined at all.
// A variable set in the process (even to "") shadows the file value.
func (e *Env) Lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	if e == nil {
		return "", false
	}
	v, ok := e.file[key]
	return v, ok
}

// Get returns the value for key, or def when the key is not defined.
func (e *Env) Get(key, def string) string {
	if v, ok := e.Lookup(key); ok {
		return v
	}
	return def
}

// The typed getters below treat empty and malformed values as unset.

func (e *Env) nonEmpty(key string) (string, bool) {
	v, ok := e.Lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// String is Get with empty values treated as unset.
func (e *Env) String(key, def string) string {
	if v, ok := e.nonEmpty(key); ok {
		return v
	}
	return def
}

func (e *Env) Int(key string, def int) int {
	if v, ok := e.nonEmpty(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (e *Env) Float(key string, def float64) float64 {
	if v, ok := e.nonEmpty(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Bool accepts 1/true/yes/y/on and 0/false/no/n/off, case-insensitively.
func (e *Env) Bool(key string, def bool) bool {
	v, ok := e.nonEmpty(key)
	if !ok {
		return def
	}
	if sysutil.IsTruthy(v) {
		return true
	}
	if sysutil.IsFalsy(v) {
		return false
	}
	return def
}

func (e *Env) Duration(key string, def time.Duration) time.Duration {
	if v, ok := e.nonEmpty(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// CSV splits a comma separated value, dropping blank entries.
// It returns nil when the key is unset or holds no entries.
func (e *Env) CSV(key string) []string {
	v, ok := e.nonEmpty(key)
	if !ok {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
