package main

import (
	"context"
	"fmt"
	"time"

	"voice-outreach/internal/app"
	"voice-outreach/internal/auth"
	"voice-outreach/internal/rbac"

	"github.com/spf13/cobra"
)

func dispatchCommand(e env) *cobra.Command {
	var (
		campaignID string
		all        bool
		batchSize  int
		skipWindow bool
	)
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "place the next batch of calls for one or every CALLING campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if all {
					results, err := a.DispatchAll(ctx, batchSize, skipWindow)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), results)
				}
				n, err := a.Dispatcher.ProcessNextCalls(ctx, campaignID, batchSize, skipWindow)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), app.DispatchResult{CampaignID: campaignID, Dispatched: n})
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	cmd.Flags().BoolVar(&all, "all", false, "dispatch every CALLING campaign")
	cmd.Flags().IntVar(&batchSize, "max", 0, "batch size (1-5); 0 uses the voice config")
	cmd.Flags().BoolVar(&skipWindow, "skip-window", false, "ignore the calling window (testing only)")
	cmd.MarkFlagsOneRequired("campaign", "all")
	cmd.MarkFlagsMutuallyExclusive("campaign", "all")
	return cmd
}

func screenCommand(e env) *cobra.Command {
	var campaignID string
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "run the do-not-call check over a campaign's pending businesses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Screener.ScreenCampaign(ctx, campaignID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func statsCommand(e env) *cobra.Command {
	var campaignID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "print per-status counts for a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				stats, err := a.Reporting.CampaignStats(ctx, campaignID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func tokenCommand(e env) *cobra.Command {
	var (
		userID  string
		role    string
		service bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "mint an API token; --service for the dispatch scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !rbac.IsKnown(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			_, cfg, _, err := e.setup(cmd)
			if err != nil {
				return err
			}
			m, err := auth.NewManager(cfg.Auth)
			if err != nil {
				return err
			}
			issue := m.IssueAccess
			if service {
				issue = m.IssueService
			}
			tok, err := issue(time.Now(), userID, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject user id")
	cmd.Flags().StringVar(&role, "role", "", "admin, operator, viewer or scheduler")
	cmd.Flags().BoolVar(&service, "service", false, "issue a long-lived service token")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
