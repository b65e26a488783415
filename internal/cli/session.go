package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ent0n29/katibim/internal/client"
)

// savedSession is the login kept between katibimctl invocations.
type savedSession struct {
	Server      string `json:"server"`
	AccessToken string `json:"access_token"`
	Email       string `json:"email"`
}

type sessionFile struct {
	dir string
}

func (f sessionFile) path() (string, error) {
	dir := f.dir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("locate config dir: %w", err)
		}
		dir = filepath.Join(base, "katibim")
	}
	return filepath.Join(dir, "session.json"), nil
}

func (f sessionFile) Load() (savedSession, error) {
	p, err := f.path()
	if err != nil {
		return savedSession{}, err
	}
	raw, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return savedSession{}, fmt.Errorf("%w: run `katibimctl login` first", client.ErrUnauthenticated)
	}
	if err != nil {
		return savedSession{}, fmt.Errorf("read session: %w", err)
	}
	var s savedSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return savedSession{}, fmt.Errorf("parse session %s: %w", p, err)
	}
	if s.AccessToken == "" {
		return savedSession{}, fmt.Errorf("%w: run `katibimctl login` first", client.ErrUnauthenticated)
	}
	return s, nil
}

// Save writes the session readable by the owner only.
func (f sessionFile) Save(s savedSession) error {
	p, err := f.path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, p)
}

func (f sessionFile) Remove() error {
	p, err := f.path()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
