package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/actiontoken"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/auth/jwtverifier"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
)

func newTokenCommand(rt *runtimeState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint API bearer tokens and inspect action tokens",
	}
	cmd.AddCommand(newTokenMintCommand(rt), newTokenInspectCommand(rt))
	return cmd
}

func newTokenMintCommand(rt *runtimeState) *cobra.Command {
	var (
		sub string
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a bearer token for the internal API (local development)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadAPIAuthConfigFromEnv()
			if err != nil {
				return err
			}
			token, err := jwtverifier.Mint(cfg, sub, time.Now().UTC(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(rt.writer, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*time.Minute, "Token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func newTokenInspectCommand(rt *runtimeState) *cobra.Command {
	var purpose string
	cmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Validate an action token and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.LoadNotifyConfigFromEnv()
			if err != nil {
				return err
			}
			p, err := newTokenIssuer(cfg).Verify(args[0], actiontoken.Purpose(purpose))
			if err != nil {
				return err
			}
			return printJSON(rt, map[string]string{
				"sub":     p.SubjectID,
				"purpose": string(p.Purpose),
				"action":  string(p.Action),
			})
		},
	}
	cmd.Flags().StringVar(&purpose, "purpose", string(actiontoken.PurposeVerifyEmail), "Expected purpose: verify_email|participation_action")
	return cmd
}
