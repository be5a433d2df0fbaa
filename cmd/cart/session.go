package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/erp/storefront/internal/domain/cart"
	"gopkg.in/yaml.v3"
)

// session is the identity remembered between invocations
type session struct {
	User  string `yaml:"user,omitempty"`
	Token string `yaml:"token,omitempty"`
}

// loadSession reads the session file. A missing file is the guest session.
func loadSession(path string) (session, error) {
	var s session
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("read session %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse session %s: %w", path, err)
	}
	return s, nil
}

func (s session) save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

func (s session) scope() cart.Scope {
	return cart.UserScope(s.User)
}
