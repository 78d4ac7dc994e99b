package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/repository"
	"github.com/d60-Lab/yatube/pkg/database"
)

var (
	groupDescription string
	userEmail        string

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := database.Migrate(a.db); err != nil {
				return err
			}
			fmt.Println("schema is up to date")
			return nil
		}),
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Manage the page cache",
	}
	cacheClearCmd = &cobra.Command{
		Use:   "clear [route-key...]",
		Short: "Drop cached pages; with no arguments drops every page",
		Example: "  yatube cache clear\n" +
			"  yatube cache clear '/?page=1'",
		RunE: withApp(func(ctx context.Context, a *app, keys []string) error {
			if len(keys) == 0 {
				return a.pages.ClearAll(ctx)
			}
			for _, k := range keys {
				if err := a.pages.Invalidate(ctx, k); err != nil {
					return err
				}
			}
			return nil
		}),
	}

	groupCmd = &cobra.Command{
		Use:   "group",
		Short: "Manage communities",
	}
	groupAddCmd = &cobra.Command{
		Use:   "add <slug> <title>",
		Short: "Create a community",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			g := &model.Group{ID: uuid.NewString(), Slug: args[0], Title: args[1], Description: groupDescription}
			if err := repository.NewGroupRepository(a.db).Create(ctx, g); err != nil {
				return fmt.Errorf("create group %s: %w", g.Slug, err)
			}
			fmt.Println(g.ID)
			return nil
		}),
	}
	groupListCmd = &cobra.Command{
		Use:   "list",
		Short: "List communities",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			groups, err := repository.NewGroupRepository(a.db).List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tTITLE")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%s\n", g.ID, g.Slug, g.Title)
			}
			return w.Flush()
		}),
	}

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Mirror directory users into the local database",
	}
	userAddCmd = &cobra.Command{
		Use:   "add <username>",
		Short: "Register a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			u := &model.User{ID: uuid.NewString(), Username: args[0], Email: userEmail}
			if err := repository.NewUserRepository(a.db).Create(ctx, u); err != nil {
				return fmt.Errorf("create user %s: %w", u.Username, err)
			}
			fmt.Println(u.ID)
			return nil
		}),
	}
	userDeleteCmd = &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user together with their posts, comments and follows",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			users := repository.NewUserRepository(a.db)
			u, err := users.GetByUsername(ctx, args[0])
			if err != nil {
				return fmt.Errorf("find user %s: %w", args[0], err)
			}
			return users.Delete(ctx, u.ID)
		}),
	}

	tokenCmd = &cobra.Command{
		Use:   "token <username>",
		Short: "Issue an access token for a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			u, err := repository.NewUserRepository(a.db).GetByUsername(ctx, args[0])
			if err != nil {
				return fmt.Errorf("find user %s: %w", args[0], err)
			}
			token, err := a.authenticator().IssueToken(u)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		}),
	}
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	groupAddCmd.Flags().StringVar(&groupDescription, "description", "", "community description")
	groupCmd.AddCommand(groupAddCmd, groupListCmd)
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "user email")
	userCmd.AddCommand(userAddCmd, userDeleteCmd)
}

// withApp 为命令构建依赖并在结束时释放
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(ctx, a, args)
	}
}
