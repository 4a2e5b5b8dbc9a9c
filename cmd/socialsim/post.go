package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quailyquaily/socialsim/internal/clifmt"
	"github.com/quailyquaily/socialsim/post"
	"github.com/spf13/cobra"
)

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Manage stored posts",
	}
	cmd.AddCommand(newPostCreateCmd())
	cmd.AddCommand(newPostListCmd())
	cmd.AddCommand(newPostShowCmd())
	cmd.AddCommand(newPostDeleteCmd())
	cmd.AddCommand(newPostDeleteCommentCmd())
	return cmd
}

func newPostCreateCmd() *cobra.Command {
	var author string
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "create <text>",
		Short: "Publish a post as a persona",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), depsOptions{posts: true})
			if err != nil {
				return err
			}
			defer d.Close()

			who, err := d.persona(author)
			if err != nil {
				return err
			}
			p, err := d.posts.Create(cmd.Context(), post.Post{Author: who.Name, Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			if err := d.newAgent(who).RecordPost(cmd.Context(), p.Text); err != nil {
				d.log.Warn("manual_post_memory_failed", "error", err.Error())
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", clifmt.Success("created"), p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Persona name (defaults to the first roster entry)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print as JSON")
	return cmd
}

func newPostListCmd() *cobra.Command {
	var limit int
	var oldest bool
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), depsOptions{posts: true})
			if err != nil {
				return err
			}
			defer d.Close()

			opts := post.ListOptions{Order: post.OrderNewest, Limit: limit}
			if oldest {
				opts.Order = post.OrderOldest
			}
			posts, err := d.posts.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), posts)
			}
			rows := make([][]string, 0, len(posts))
			for _, p := range posts {
				rows = append(rows, []string{
					p.ID,
					p.Author,
					strconv.Itoa(p.Likes),
					strconv.Itoa(len(p.Comments)),
					p.CreatedAt.Local().Format(time.DateTime),
					p.Text,
				})
			}
			clifmt.PrintTable(cmd.OutOrStdout(), clifmt.TableOptions{
				Title:     "Posts",
				Headers:   []string{"ID", "AUTHOR", "LIKES", "COMMENTS", "CREATED", "TEXT"},
				Rows:      rows,
				EmptyText: "No posts.",
			})
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum posts (0 = all)")
	cmd.Flags().BoolVar(&oldest, "oldest", false, "Oldest first")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print as JSON")
	return cmd
}

func newPostShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <post_id>",
		Short: "Print a post with its comments as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), depsOptions{posts: true})
			if err != nil {
				return err
			}
			defer d.Close()
			p, err := d.posts.Get(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newPostDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post_id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), depsOptions{posts: true})
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.posts.Delete(cmd.Context(), strings.TrimSpace(args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), clifmt.Success("deleted"))
			return nil
		},
	}
}

func newPostDeleteCommentCmd() *cobra.Command {
	var ifVersion int64
	cmd := &cobra.Command{
		Use:   "delete-comment <post_id> <index>",
		Short: "Delete the comment at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(strings.TrimSpace(args[1]))
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[1], err)
			}
			d, err := loadDeps(cmd.Context(), depsOptions{posts: true})
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.posts.DeleteComment(cmd.Context(), strings.TrimSpace(args[0]), index, ifVersion); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), clifmt.Success("deleted"))
			return nil
		},
	}
	cmd.Flags().Int64Var(&ifVersion, "if-version", 0, "Only delete if the post is at this version")
	return cmd
}
