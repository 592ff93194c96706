package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"github.com/tablewise/portal/pkg/remote"
)

var ErrNotLoggedIn = errors.New("not logged in, run `tablewise login` first")

// storedLogin is what login leaves on disk for the other commands.
type storedLogin struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

func credentialsPath() (string, error) {
	if p := viper.GetString("credentials_file"); p != "" {
		return p, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config dir: %w", err)
	}

	return filepath.Join(dir, "tablewise", "credentials.json"), nil
}

func saveLogin(path string, login *storedLogin) error {
	err := os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := json.Marshal(login)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func loadLogin(path string) (*storedLogin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotLoggedIn
		}

		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	login := &storedLogin{}

	err = json.Unmarshal(data, login)
	if err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}

	if login.AccessToken == "" {
		return nil, ErrNotLoggedIn
	}

	return login, nil
}

// authenticated returns the stored login and a context carrying its
// access token.
func authenticated(ctx context.Context) (context.Context, *storedLogin, error) {
	path, err := credentialsPath()
	if err != nil {
		return nil, nil, err
	}

	login, err := loadLogin(path)
	if err != nil {
		return nil, nil, err
	}

	return remote.WithAccessToken(ctx, login.AccessToken), login, nil
}
