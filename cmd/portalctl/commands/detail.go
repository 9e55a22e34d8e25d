package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

var caseLink string

var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Print a case's document tree and history",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := loadState(statePath)
		if err != nil {
			return err
		}
		if len(state.Session) == 0 {
			return fmt.Errorf("state %s holds no session: run 'portalctl list' first", statePath)
		}
		client, err := newClient()
		if err != nil {
			return err
		}

		// Without a password the Portal can't re-login on an expired session.
		detail, err := client.Detail(cmd.Context(), portal.DetailRequest{
			Credentials: portal.Credentials{
				Username: state.Username,
				Password: os.Getenv(PasswordEnv),
				OrgCode:  state.OrgCode,
			},
			Cookies: state.Session,
			Link:    caseLink,
		})
		if err != nil {
			return err
		}
		return printJSON(detail)
	},
}

func init() {
	detailCmd.Flags().StringVar(&caseLink, "link", "", "Case link as returned by 'list'.")
	_ = detailCmd.MarkFlagRequired("link")
	rootCmd.AddCommand(detailCmd)
}
