package canvas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"canvascli/internal"
	"canvascli/utils"
)

const credentialFileName = "config.yaml"

// AuthProbe validates a credential with a lightweight authenticated request
type AuthProbe interface {
	WhoAmI(ctx context.Context, cred *internal.Credential) (*internal.UserIdentity, error)
}

// FileCredentialStore persists exactly one credential record in the user's
// configuration directory. Writes go through a temp file and a rename, so a
// failed save never leaves a half-written or unvalidated credential behind.
type FileCredentialStore struct {
	dir     string
	probe   AuthProbe
	fileOps *utils.FileOperations
}

// NewFileCredentialStore creates a store rooted at the per-user config
// directory (e.g. ~/.config/canvas-cli)
func NewFileCredentialStore(probe AuthProbe) (*FileCredentialStore, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("cannot locate user config directory: %w", err)
	}
	return NewFileCredentialStoreAt(filepath.Join(base, "canvas-cli"), probe), nil
}

// NewFileCredentialStoreAt creates a store rooted at an explicit directory
func NewFileCredentialStoreAt(dir string, probe AuthProbe) *FileCredentialStore {
	return &FileCredentialStore{
		dir:     dir,
		probe:   probe,
		fileOps: utils.NewFileOperations(),
	}
}

// Path returns the location of the credential file
func (s *FileCredentialStore) Path() string {
	return filepath.Join(s.dir, credentialFileName)
}

// Save validates the credential with the auth probe and persists it,
// overwriting any prior value. A failed probe performs no write.
func (s *FileCredentialStore) Save(ctx context.Context, cred *internal.Credential) (*internal.UserIdentity, error) {
	if err := cred.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.probe.WhoAmI(ctx, cred)
	if err != nil {
		if internal.IsType(err, internal.ErrTransient) || internal.IsType(err, internal.ErrProtocol) {
			return nil, err
		}
		return nil, internal.NewAuthenticationFailedError(0,
			fmt.Sprintf("credential validation failed: %v", err))
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("cannot create config directory %s: %w", s.dir, err)
	}

	v := viper.New()
	v.Set("base_url", cred.BaseURL)
	v.Set("access_token", cred.AccessToken)

	tmpPath := s.Path() + ".tmp"
	if err := v.WriteConfigAs(tmpPath); err != nil {
		return nil, fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to restrict credential file permissions: %w", err)
	}
	if err := s.fileOps.AtomicRename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to finalize credential file: %w", err)
	}

	internal.LogInfo("Stored credential for %s", cred.BaseURL)
	return identity, nil
}

// Load returns the persisted credential, or NotAuthenticated if none exists
// or the backing file is unreadable or corrupt
func (s *FileCredentialStore) Load() (*internal.Credential, error) {
	v := viper.New()
	v.SetConfigFile(s.Path())

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, internal.NewNotAuthenticatedError("no stored credential")
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, internal.NewNotAuthenticatedError("no stored credential")
		}
		return nil, internal.NewNotAuthenticatedError(fmt.Sprintf("credential store is unreadable: %v", err))
	}

	cred := &internal.Credential{
		BaseURL:     v.GetString("base_url"),
		AccessToken: v.GetString("access_token"),
	}
	if err := cred.Validate(); err != nil {
		return nil, internal.NewNotAuthenticatedError("credential store is incomplete")
	}

	return cred, nil
}

// Clear removes the stored credential. Idempotent: clearing an empty store
// is not an error.
func (s *FileCredentialStore) Clear() error {
	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}
