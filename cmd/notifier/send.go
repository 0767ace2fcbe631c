package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Overland-East-Bay/trip-notifier/internal/app/notifications"
	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
)

const dateFlagLayout = "2006-01-02"

func newSendCommand(rt *runtimeState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one notification using the configured storage and mail provider",
	}
	cmd.AddCommand(newSendVerifyCommand(rt), newSendPendingCommand(rt), newSendTripDatesCommand(rt))
	return cmd
}

func newSendVerifyCommand(rt *runtimeState) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Send the email-verification message to a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApplication(cmd.Context(), rt.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.notifier.NotifyVerifyEmail(cmd.Context(), domain.UserID(userID)); err != nil {
				return err
			}
			fmt.Fprintln(rt.writer, "verification email dispatched")
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSendPendingCommand(rt *runtimeState) *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Email the trip creator about a pending participation request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := buildApplication(cmd.Context(), rt.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			rec, err := app.notifier.NotifyPendingRequest(cmd.Context(), domain.ParticipationID(requestID))
			if err != nil {
				return err
			}
			return printJSON(rt, rec)
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Participation request ID")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}

func newSendTripDatesCommand(rt *runtimeState) *cobra.Command {
	var tripID, oldStart, oldEnd, oldTitle string
	cmd := &cobra.Command{
		Use:   "trip-dates",
		Short: "Notify participants that a trip's dates changed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			previous, err := previousTrip(oldStart, oldEnd, oldTitle)
			if err != nil {
				return err
			}

			app, err := buildApplication(cmd.Context(), rt.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.notifier.NotifyTripDatesChanged(cmd.Context(), notifications.TripDatesChange{
				TripID:   domain.TripID(tripID),
				Previous: previous,
			})
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Fprintln(rt.writer, "no participants notified")
				return nil
			}
			return printJSON(rt, res)
		},
	}
	cmd.Flags().StringVar(&tripID, "trip", "", "Trip ID")
	cmd.Flags().StringVar(&oldStart, "old-start", "", "Previous start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&oldEnd, "old-end", "", "Previous end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&oldTitle, "old-title", "", "Previous title (defaults to the current title)")
	_ = cmd.MarkFlagRequired("trip")
	_ = cmd.MarkFlagRequired("old-start")
	_ = cmd.MarkFlagRequired("old-end")
	return cmd
}

func previousTrip(start, end, title string) (domain.Trip, error) {
	s, err := time.Parse(dateFlagLayout, strings.TrimSpace(start))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("--old-start: %w", err)
	}
	e, err := time.Parse(dateFlagLayout, strings.TrimSpace(end))
	if err != nil {
		return domain.Trip{}, fmt.Errorf("--old-end: %w", err)
	}
	if e.Before(s) {
		return domain.Trip{}, fmt.Errorf("--old-end %s is before --old-start %s", end, start)
	}
	return domain.Trip{Title: strings.TrimSpace(title), StartDate: s, EndDate: e}, nil
}

func printJSON(rt *runtimeState, v any) error {
	enc := json.NewEncoder(rt.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
