package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/quailyquaily/socialsim/interact"
	"github.com/quailyquaily/socialsim/internal/clifmt"
	"github.com/spf13/cobra"
)

func newInteractCmd() *cobra.Command {
	var mode string
	var limit int
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "interact [post_id]",
		Short: "Let personas like and comment on posts",
		Long: "Modes:\n" +
			"  random  one random persona reacts to post_id\n" +
			"  all     every persona reacts to post_id\n" +
			"  global  every persona reacts to every post, newest first",
		Args: cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode = strings.ToLower(strings.TrimSpace(mode))
			postID := ""
			if len(args) > 0 {
				postID = strings.TrimSpace(args[0])
			}
			if mode != "global" && postID == "" {
				return fmt.Errorf("mode %q needs a post_id", mode)
			}

			d, err := loadDeps(cmd.Context(), depsOptions{posts: true})
			if err != nil {
				return err
			}
			defer d.Close()
			o := d.orchestrator()

			var sum interact.Summary
			switch mode {
			case "random":
				sum, err = o.RunRandom(cmd.Context(), postID)
			case "all":
				sum, err = o.RunAllBots(cmd.Context(), postID)
			case "global":
				sum, err = o.RunGlobal(cmd.Context(), limit)
			default:
				return fmt.Errorf("unknown mode %q (want random|all|global)", mode)
			}
			if outputJSON {
				if werr := writeJSON(cmd.OutOrStdout(), sum); werr != nil {
					return werr
				}
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "all", "random|all|global")
	cmd.Flags().IntVar(&limit, "limit", 20, "Global mode: number of newest posts (0 = all)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print as JSON")
	return cmd
}

func printSummary(out io.Writer, sum interact.Summary) {
	rows := make([][]string, 0, len(sum.Outcomes))
	for _, o := range sum.Outcomes {
		rows = append(rows, []string{shortID(o.PostID), o.Persona, string(o.Type), o.Message})
	}
	clifmt.PrintTable(out, clifmt.TableOptions{
		Title:     "Interactions",
		Headers:   []string{"POST", "PERSONA", "ACTION", "DETAIL"},
		Rows:      rows,
		EmptyText: "No interactions.",
	})
	_, _ = fmt.Fprintf(out, "\n%s likes=%d comments=%d both=%d ignored=%d comments_skipped=%d\n",
		clifmt.Key("total"), sum.Likes, sum.Comments, sum.Both, sum.Ignored, sum.CommentsSkipped)
}

func newOwnerRepliesCmd() *cobra.Command {
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "owner-replies <post_id>",
		Short: "Let a post's author answer its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), depsOptions{posts: true})
			if err != nil {
				return err
			}
			defer d.Close()

			sum, err := d.orchestrator().OwnerReplies(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			rows := make([][]string, 0, len(sum.Outcomes))
			for _, o := range sum.Outcomes {
				status := clifmt.Dim("declined")
				detail := o.Reason
				if o.Replied {
					status = clifmt.Success("replied")
					detail = o.Text
				}
				rows = append(rows, []string{shortID(o.CommentID), o.Commenter, status, detail})
			}
			clifmt.PrintTable(cmd.OutOrStdout(), clifmt.TableOptions{
				Title:     "Owner replies",
				Headers:   []string{"COMMENT", "COMMENTER", "STATUS", "DETAIL"},
				Rows:      rows,
				EmptyText: "Nothing to answer.",
			})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n%s replied=%d declined=%d skipped=%d\n",
				clifmt.Key("total"), sum.Replied, sum.Declined, sum.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
