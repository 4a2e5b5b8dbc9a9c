package main

import (
	"fmt"

	"github.com/quailyquaily/socialsim/environment"
	"github.com/quailyquaily/socialsim/internal/clifmt"
	"github.com/quailyquaily/socialsim/internal/statepaths"
	"github.com/quailyquaily/socialsim/learner"
	"github.com/quailyquaily/socialsim/strategy"
	"github.com/spf13/cobra"
)

func newPredictCmd() *cobra.Command {
	var obs environment.Observation
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Pick the best strategy for an engagement state",
		RunE: func(cmd *cobra.Command, args []string) error {
			predictor := learner.Predictor{Dir: statepaths.PolicyDir()}
			action, err := predictor.Predict(obs.Clamp())
			if err != nil {
				return err
			}
			s, _ := strategy.ByIndex(action)
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"action":   action,
					"strategy": s.Name,
					"trained":  predictor.Trained(),
				})
			}
			if !predictor.Trained() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), clifmt.Warn("no trained policy; using action 0"))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s\n", clifmt.Key("action:"), action, s.Name)
			return nil
		},
	}
	cmd.Flags().Float64Var(&obs.Likes, "likes", 0, "Observed likes")
	cmd.Flags().Float64Var(&obs.Comments, "comments", 0, "Observed comments")
	cmd.Flags().Float64Var(&obs.Sentiment, "sentiment", 0, "Observed sentiment in [0,1]")
	cmd.Flags().Float64Var(&obs.InteractionRate, "interaction-rate", 0, "Observed interaction rate in [0,1]")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print as JSON")
	return cmd
}
