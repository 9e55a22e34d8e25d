package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var captchaOut string

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Fetch a fresh login page and captcha into the state file",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		ch, err := client.Challenge(cmd.Context())
		if err != nil {
			return err
		}

		state := &State{
			Cookies:      ch.Cookies,
			HiddenFields: ch.HiddenFields,
			LoginURL:     ch.LoginURL,
		}
		if err := saveState(statePath, state); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Challenge saved to %s (%d cookies, %d hidden fields)\n",
			statePath, len(ch.Cookies), len(ch.HiddenFields))

		if len(ch.CaptchaImage) == 0 {
			fmt.Fprintln(out, "No captcha on the login page")
			return nil
		}
		if err := os.WriteFile(captchaOut, ch.CaptchaImage, 0o644); err != nil {
			return fmt.Errorf("write captcha: %w", err)
		}
		fmt.Fprintf(out, "Captcha (%s) written to %s\n", ch.CaptchaMIME, captchaOut)
		return nil
	},
}

func init() {
	challengeCmd.Flags().StringVar(&captchaOut, "captcha-out", "captcha.png", "Where to write the captcha image.")
	rootCmd.AddCommand(challengeCmd)
}
