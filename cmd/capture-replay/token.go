package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/interceptors"
)

func newTokenCmd(v *viper.Viper) *cobra.Command {
	var (
		deviceID string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a device bearer token for the ingest endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := v.GetString("AUTH_JWT_SECRET")
			if secret == "" {
				return errors.New("AUTH_JWT_SECRET is not set")
			}
			token, err := interceptors.IssueDeviceToken([]byte(secret), deviceID, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "device id placed in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 365*24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}
