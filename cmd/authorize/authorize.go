package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"image-review/backend/internal/dropbox"
)

var (
	configPath string
	appKey     string
	appSecret  string
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file to update")
	rootCmd.Flags().StringVar(&appKey, "app-key", "", "Dropbox app key (default: dropbox.app_key from the config)")
	rootCmd.Flags().StringVar(&appSecret, "app-secret", "", "Dropbox app secret (default: dropbox.app_secret from the config)")
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	v, err := readConfig(configPath)
	if err != nil {
		return err
	}

	key := firstNonEmpty(appKey, v.GetString("dropbox.app_key"))
	if key == "" {
		return errors.New("dropbox app key is required: pass --app-key or set dropbox.app_key")
	}
	secret := firstNonEmpty(appSecret, v.GetString("dropbox.app_secret"))

	a := &authorizer{conf: dropbox.OAuthConfig(key, secret), in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	token, err := a.run(cmd.Context())
	if err != nil {
		return err
	}

	v.Set("dropbox.app_key", key)
	v.Set("dropbox.refresh_token", token.RefreshToken)
	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	fmt.Fprintf(a.out, "Refresh token saved to %s\n", configPath)
	return nil
}

// authorizer drives the no-redirect PKCE flow: the user opens the URL, Dropbox
// shows a code, and the code is exchanged together with the verifier.
type authorizer struct {
	conf *oauth2.Config
	in   io.Reader
	out  io.Writer
}

func (a *authorizer) run(ctx context.Context) (*oauth2.Token, error) {
	verifier := oauth2.GenerateVerifier()
	url := a.conf.AuthCodeURL("",
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("token_access_type", "offline"),
	)

	fmt.Fprintln(a.out, "1. Go to:", url)
	fmt.Fprintln(a.out, "2. Click \"Allow\" (you might have to log in first).")
	fmt.Fprint(a.out, "3. Enter the authorization code here: ")

	code, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("no authorization code entered")
	}

	token, err := a.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, errors.New("dropbox returned no refresh token, check that the app allows offline access")
	}
	return token, nil
}

// readConfig loads path on its own viper instance so only keys present in the
// file are written back. A missing file starts empty.
func readConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return v, nil
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
