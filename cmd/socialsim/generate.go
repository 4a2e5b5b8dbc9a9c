package main

import (
	"fmt"

	"github.com/quailyquaily/socialsim/agent"
	"github.com/quailyquaily/socialsim/internal/clifmt"
	"github.com/quailyquaily/socialsim/post"
	"github.com/quailyquaily/socialsim/strategy"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var author string
	var strategyName string
	var publish bool
	var listStrategies bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a post following an authoring strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listStrategies {
				rows := make([][]string, 0, strategy.Count())
				for _, s := range strategy.All() {
					rows = append(rows, []string{fmt.Sprint(s.Index), s.Name, s.Instruction})
				}
				clifmt.PrintTable(cmd.OutOrStdout(), clifmt.TableOptions{
					Title:   "Strategies",
					Headers: []string{"#", "NAME", "INSTRUCTION"},
					Rows:    rows,
				})
				return nil
			}

			d, err := loadDeps(cmd.Context(), depsOptions{posts: publish})
			if err != nil {
				return err
			}
			defer d.Close()

			who, err := d.persona(author)
			if err != nil {
				return err
			}
			if _, ok := strategy.ByName(strategyName); !ok {
				d.log.Warn("unknown_strategy", "strategy", strategyName)
			}
			text, err := d.newAgent(who).GenerateFromStrategy(cmd.Context(), strategyName)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			if !publish {
				return nil
			}
			if text == agent.PlaceholderPost(strategyName) {
				return fmt.Errorf("not publishing placeholder post")
			}
			p, err := d.posts.Create(cmd.Context(), post.Post{Author: who.Name, Text: text})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", clifmt.Success("published"), p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "persona", "", "Persona name (defaults to the first roster entry)")
	cmd.Flags().StringVar(&strategyName, "strategy", "Humorous-Meme", "Strategy name")
	cmd.Flags().BoolVar(&publish, "publish", false, "Store the generated post")
	cmd.Flags().BoolVar(&listStrategies, "list", false, "List strategies and exit")
	return cmd
}
