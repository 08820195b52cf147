package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sudo-init-do/juggle/internal/bootstrap"
	"github.com/sudo-init-do/juggle/internal/config"
	"github.com/sudo-init-do/juggle/internal/fanout"
	"github.com/sudo-init-do/juggle/internal/log"
	"github.com/sudo-init-do/juggle/internal/marketplace"
	"github.com/sudo-init-do/juggle/internal/realtime"
	"github.com/sudo-init-do/juggle/internal/session"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "adminutil",
	Short: "Maintenance commands for the Juggle data tree",
	Long: `adminutil operates directly on the configured store backend.

It reads the same environment (or .env file) as the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(rebuildInboxCmd)
	rootCmd.AddCommand(ratingCmd)
	rootCmd.AddCommand(deleteTaskCmd)
}

// withStore opens the configured store, runs fn and closes it again.
func withStore(cmd *cobra.Command, fn func(store realtime.Store, writer *fanout.Writer) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON, Output: os.Stderr})

	ctx := cmd.Context()
	app, err := bootstrap.FirebaseApp(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := bootstrap.OpenStore(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer store.Close()

	mode, err := fanout.ParseMode(cfg.FanoutMode)
	if err != nil {
		return err
	}
	return fn(store, fanout.NewWriter(store, mode))
}

var rebuildInboxCmd = &cobra.Command{
	Use:   "rebuild-inbox <uid>",
	Short: "Recompute a user's inbox from their message back-references",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(_ realtime.Store, writer *fanout.Writer) error {
			n, err := writer.RebuildConversations(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Rebuilt %d conversation(s) for %s\n", n, args[0])
			return nil
		})
	},
}

var ratingCmd = &cobra.Command{
	Use:   "rating <uid>",
	Short: "Print a user's aggregate rating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store realtime.Store, writer *fanout.Writer) error {
			s, err := marketplace.NewService(store, writer).Summary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("User:    %s\n", s.UserID)
			fmt.Printf("Reviews: %d\n", s.TotalReviews)
			fmt.Printf("Average: %.2f\n", s.AverageRating)
			c := s.RatingCounts
			fmt.Printf("Stars:   5:%d 4:%d 3:%d 2:%d 1:%d\n", c.FiveStar, c.FourStar, c.ThreeStar, c.TwoStar, c.OneStar)
			return nil
		})
	},
}

var deleteTaskCmd = &cobra.Command{
	Use:   "delete-task <owner> <task-id>",
	Short: "Delete a task from the owner's list and the public listing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store realtime.Store, writer *fanout.Writer) error {
			owner := session.Session{UserID: args[0]}
			if err := marketplace.NewService(store, writer).DeleteTask(cmd.Context(), owner, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Task %s deleted.\n", args[1])
			return nil
		})
	},
}
