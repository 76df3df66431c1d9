// Package auth stores named cookie sessions that jobs replay on both the
// HTTP and the browser fetch paths.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "harvest"
	// FallbackDir holds session files when no keyring is reachable
	FallbackDir = ".harvest/sessions"

	manifestKey = "_manifest"
)

// ErrExpired is returned when loading a session past its expiry
var ErrExpired = errors.New("session expired")

var (
	storageOnce sync.Once
	fileStorage bool
)

// useFileStorage reports whether sessions live on disk. Codespaces, CI and
// hosts without a keyring daemon fall back to files.
func useFileStorage() bool {
	storageOnce.Do(func() {
		if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" || os.Getenv("HARVEST_SESSION_FILES") != "" {
			fileStorage = true
			return
		}
		check := "_keyring_check_"
		if err := keyring.Set(KeyringService, check, "ok"); err != nil {
			fileStorage = true
			return
		}
		_ = keyring.Delete(KeyringService, check)
	})
	return fileStorage
}

func sessionDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, FallbackDir)
	return dir, os.MkdirAll(dir, 0700)
}

func sessionPath(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	dir, err := sessionDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".json"), nil
}

// SessionData is one saved session
type SessionData struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Cookies   []Cookie          `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// Cookie is a browser cookie in the shape DevTools exports
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// HTTPCookies converts the session cookies for a net/http cookie jar
func (s *SessionData) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			hc.SameSite = http.SameSiteStrictMode
		case "lax":
			hc.SameSite = http.SameSiteLaxMode
		case "none":
			hc.SameSite = http.SameSiteNoneMode
		}
		out = append(out, hc)
	}
	return out
}

// SaveSession writes a session to the keyring, or to a file when no
// keyring is available, and records it in the manifest
func SaveSession(session *SessionData) error {
	if session.Name == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if useFileStorage() {
		path, err := sessionPath(session.Name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to save session file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, session.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return updateManifest(session.Name, true)
}

// LoadSession reads a saved session. Expired sessions return ErrExpired.
func LoadSession(name string) (*SessionData, error) {
	if name == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}

	var data []byte
	if useFileStorage() {
		path, err := sessionPath(name)
		if err != nil {
			return nil, err
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load session file: %w", err)
		}
	} else {
		raw, err := keyring.Get(KeyringService, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load from keyring: %w", err)
		}
		data = []byte(raw)
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	if !session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("%s: %w", name, ErrExpired)
	}
	return &session, nil
}

// DeleteSession removes a saved session
func DeleteSession(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	if useFileStorage() {
		path, err := sessionPath(name)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, name); err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return updateManifest(name, false)
}

// ListSessions returns the saved session names in lexical order
func ListSessions() ([]string, error) {
	var names []string
	if useFileStorage() {
		dir, err := sessionDir()
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
				names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
			}
		}
	} else {
		raw, err := keyring.Get(KeyringService, manifestKey)
		if err != nil {
			return []string{}, nil
		}
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ImportFile reads a session from a JSON file holding either a saved
// session or a bare DevTools cookie array, and saves it under name
func ImportFile(name, path string) (*SessionData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	session := &SessionData{}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &session.Cookies); err != nil {
			return nil, fmt.Errorf("parse cookies: %w", err)
		}
	} else if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if len(session.Cookies) == 0 {
		return nil, fmt.Errorf("%s holds no cookies", path)
	}
	session.Name = name
	session.CreatedAt = time.Now()
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = ExpiryOf(session.Cookies)
	}
	if err := SaveSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

func updateManifest(name string, add bool) error {
	names, _ := ListSessions()
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if add {
		kept = append(kept, name)
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, manifestKey, string(data))
}
