package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// UserCommands returns the user administration commands.
func UserCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:      "create-user",
			Usage:     "Create a user that can be flagged",
			ArgsUsage: "USERNAME",
			Action:    handleCreateUser(deps),
		},
		{
			Name:      "get-user",
			Usage:     "Show a user's trust state",
			ArgsUsage: "USER_ID",
			Action:    handleGetUser(deps),
		},
		{
			Name:   "user-stats",
			Usage:  "Show user counts by trust state",
			Action: handleUserStats(deps),
		},
	}
}

// handleCreateUser handles the 'create-user' command.
func handleCreateUser(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrUsernameRequired
		}

		user, err := deps.DB.Service().User().CreateUser(ctx, c.Args().First())
		if err != nil {
			return err
		}

		deps.Logger.Info("Created user",
			zap.Int64("id", user.ID),
			zap.String("username", user.Username),
		)

		return nil
	}
}

// handleGetUser handles the 'get-user' command.
func handleGetUser(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() != 1 {
			return ErrUserIDRequired
		}

		id, err := strconv.ParseInt(c.Args().First(), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user ID: %w", err)
		}

		user, err := deps.DB.Service().User().GetUser(ctx, id)
		if err != nil {
			return err
		}

		deps.Logger.Info("User",
			zap.Int64("id", user.ID),
			zap.String("username", user.Username),
			zap.Int("flagCount", user.FlagCount),
			zap.Bool("banned", user.Banned),
			zap.Time("updatedAt", user.UpdatedAt),
		)

		return nil
	}
}

// handleUserStats handles the 'user-stats' command.
func handleUserStats(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		counts, err := deps.DB.Model().User().GetUserCounts(ctx)
		if err != nil {
			return err
		}

		deps.Logger.Info("User counts",
			zap.Int("total", counts.Total),
			zap.Int("flagged", counts.Flagged),
			zap.Int("banned", counts.Banned),
		)

		return nil
	}
}
