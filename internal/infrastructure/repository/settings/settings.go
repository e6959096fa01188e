package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	settings_domain "github.com/huavcjj/followup/internal/domain/settings"
)

type tomlRepo struct {
	path string
}

var _ settings_domain.Repo = (*tomlRepo)(nil)

func NewTOMLRepo(path string) settings_domain.Repo {
	return &tomlRepo{path: path}
}

func (r *tomlRepo) Load(ctx context.Context) (settings_domain.Settings, error) {
	s := settings_domain.Defaults()

	if _, err := toml.DecodeFile(r.path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings_domain.Defaults(), nil
		}
		return settings_domain.Defaults(), fmt.Errorf("failed to read settings %s: %w", r.path, err)
	}

	if err := s.Validate(); err != nil {
		return settings_domain.Defaults(), fmt.Errorf("invalid settings %s: %w", r.path, err)
	}
	return s, nil
}

func (r *tomlRepo) Save(ctx context.Context, s settings_domain.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
