package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/persistorai/auditscope/client"
)

// Keys persisted in the .env store.
const (
	KeyAPIKey   = "SNYK_API_KEY"
	KeyOrgID    = "SNYK_ORG_ID"
	KeyGroupID  = "SNYK_GROUP_ID"
	KeyFromDate = "FROM_DATE"
	KeyToDate   = "TO_DATE"
)

// StoreKeys lists the keys the store accepts, in display order.
var StoreKeys = []string{KeyAPIKey, KeyOrgID, KeyGroupID, KeyFromDate, KeyToDate}

// Store validation errors.
var (
	ErrUnknownKey    = errors.New("unknown config key")
	ErrMissingAPIKey = errors.New(KeyAPIKey + " is required")
)

// EnvStore reads and writes the persisted .env configuration file.
type EnvStore struct {
	path string
}

// NewEnvStore returns a store backed by the file at path.
func NewEnvStore(path string) *EnvStore {
	if path == "" {
		path = DefaultConfigFile
	}
	return &EnvStore{path: path}
}

// Path returns the backing file path.
func (s *EnvStore) Path() string { return s.path }

// Read returns the stored values. A missing file yields an empty map.
func (s *EnvStore) Read() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return values, nil
}

// Redacted returns the stored values with the API key masked, suitable for
// display or an HTTP response.
func (s *EnvStore) Redacted() (map[string]string, error) {
	values, err := s.Read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(StoreKeys))
	for _, k := range StoreKeys {
		out[k] = values[k]
	}
	if out[KeyAPIKey] != "" {
		out[KeyAPIKey] = Secret(out[KeyAPIKey]).String()
	}
	return out, nil
}

// Set merges updates into the stored values and rewrites the file. An
// empty value removes the key. The merged result must still carry an API
// key, and dates must be in the upstream format.
func (s *EnvStore) Set(updates map[string]string) error {
	values, err := s.Read()
	if err != nil {
		return err
	}

	for k, v := range updates {
		if !isStoreKey(k) {
			return fmt.Errorf("%q: %w", k, ErrUnknownKey)
		}
		if (k == KeyFromDate || k == KeyToDate) && v != "" && !client.ValidDate(v) {
			return fmt.Errorf("%s: %q: %w", k, v, client.ErrInvalidDateFormat)
		}
		if v == "" {
			delete(values, k)
			continue
		}
		values[k] = v
	}

	if values[KeyAPIKey] == "" {
		return ErrMissingAPIKey
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("securing %s: %w", s.path, err)
	}
	return nil
}

func isStoreKey(k string) bool {
	for _, sk := range StoreKeys {
		if sk == k {
			return true
		}
	}
	return false
}
