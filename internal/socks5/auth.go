package socks5

import (
	"bufio"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"
)

// CredentialChecker decides whether a username/password pair is accepted.
type CredentialChecker interface {
	CheckCredentials(username, password string) bool
}

// CredentialCheckerFunc adapts a function to CredentialChecker.
type CredentialCheckerFunc func(username, password string) bool

// CheckCredentials calls f(username, password).
func (f CredentialCheckerFunc) CheckCredentials(username, password string) bool {
	return f(username, password)
}

// StaticCredentials maps usernames to passwords.
type StaticCredentials map[string]string

// CheckCredentials compares the password in constant time.
func (s StaticCredentials) CheckCredentials(username, password string) bool {
	want, ok := s[username]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}

// Add parses a "user:password" entry. The password may itself contain colons.
func (s StaticCredentials) Add(entry string) error {
	user, pass, ok := strings.Cut(entry, ":")
	if !ok || user == "" {
		return fmt.Errorf("credential %q: expected user:password", entry)
	}
	if len(user) > 255 || len(pass) > 255 {
		return fmt.Errorf("credential for %q: username and password are limited to 255 bytes", user)
	}
	s[user] = pass
	return nil
}

// ParseCredentials reads "user:password" lines. Blank lines and lines starting
// with '#' are skipped.
func ParseCredentials(r io.Reader) (StaticCredentials, error) {
	creds := StaticCredentials{}
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := creds.Add(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return creds, nil
}
