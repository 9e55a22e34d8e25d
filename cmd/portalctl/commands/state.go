package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

// State is what the HTTP API would hand back to the UI between calls.
type State struct {
	Cookies      portal.Jar        `json:"cookies"`
	HiddenFields map[string]string `json:"hidden_fields"`
	LoginURL     string            `json:"login_url"`
	// Session holds the authenticated cookies after a successful list.
	Session   portal.Jar `json:"session,omitempty"`
	Username  string     `json:"username,omitempty"`
	OrgCode   string     `json:"org_code,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s *State) challenge() *portal.Challenge {
	return &portal.Challenge{
		Cookies:      s.Cookies,
		HiddenFields: s.HiddenFields,
		LoginURL:     s.LoginURL,
	}
}

func loadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no state at %s: run 'portalctl challenge' first", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var state State
	if err := sonic.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", path, err)
	}
	return &state, nil
}

func saveState(path string, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := sonic.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	// Session cookies are credentials.
	return os.WriteFile(path, data, 0o600)
}

func printJSON(v any) error {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(rootCmd.OutOrStdout(), string(data))
	return err
}
