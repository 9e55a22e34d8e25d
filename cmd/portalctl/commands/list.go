package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmos-desktop/sei-gateway/internal/enrich"
	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

var (
	username      string
	orgCode       string
	captchaAnswer string
	enrichRecords bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Log in with the saved challenge and print the case listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		listing, state, err := login(cmd)
		if err != nil {
			return err
		}
		if err := saveState(statePath, state); err != nil {
			return err
		}

		out := map[string]any{
			"processos": listing.Processes,
			"total":     len(listing.Processes),
			"debug":     listing.Diagnostics,
		}
		if enrichRecords {
			records := enrich.New(time.Now).EnrichAll(listing.Processes)
			out["processos"] = records
			out["resumo_geral"] = enrich.Summarize(records)
		}
		return printJSON(out)
	},
}

// login consumes the saved challenge and records the session in its place.
func login(cmd *cobra.Command) (*portal.Listing, *State, error) {
	state, err := loadState(statePath)
	if err != nil {
		return nil, nil, err
	}
	if state.LoginURL == "" {
		return nil, nil, fmt.Errorf("state %s holds no challenge: run 'portalctl challenge' first", statePath)
	}
	pw, err := password()
	if err != nil {
		return nil, nil, err
	}
	client, err := newClient()
	if err != nil {
		return nil, nil, err
	}

	listing, err := client.Authenticate(cmd.Context(), portal.Credentials{
		Username:      username,
		Password:      pw,
		OrgCode:       orgCode,
		CaptchaAnswer: captchaAnswer,
	}, state.challenge())
	if err != nil {
		return nil, nil, err
	}

	// A challenge is single use.
	return listing, &State{
		Session:  listing.Session.Cookies,
		Username: username,
		OrgCode:  orgCode,
	}, nil
}

func addLoginFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&username, "user", "u", "", "Portal username.")
	cmd.Flags().StringVar(&orgCode, "org", "", "Organization code (defaults to the profile's).")
	cmd.Flags().StringVar(&captchaAnswer, "captcha", "", "Captcha answer read from the saved image.")
	_ = cmd.MarkFlagRequired("user")
}

func init() {
	addLoginFlags(listCmd)
	listCmd.Flags().BoolVar(&enrichRecords, "enrich", false, "Add priority, category, age, summary and deadline.")
	rootCmd.AddCommand(listCmd)
}
