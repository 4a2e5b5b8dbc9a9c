package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quailyquaily/socialsim/internal/clifmt"
	"github.com/quailyquaily/socialsim/internal/statepaths"
	"github.com/quailyquaily/socialsim/learner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTrainCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Learn which authoring strategy earns the most engagement",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd.Context(), depsOptions{})
			if err != nil {
				return err
			}
			defer d.Close()

			who, err := d.persona(author)
			if err != nil {
				return err
			}
			seed := seedFromViper()
			env, err := d.environment(who, seed)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dir := statepaths.PolicyDir()
			task := learner.Start(runCtx, learner.TaskConfig{
				Env: env,
				Train: learner.Config{
					Steps:  viper.GetInt("train.steps"),
					Seed:   seed,
					Logger: d.log,
				},
				Dir:    dir,
				Buffer: viper.GetInt("train.progress_buffer"),
			})

			out := cmd.OutOrStdout()
			var last learner.Status
			for msg := range task.Messages() {
				last = msg
				if !msg.Terminal() {
					_, _ = fmt.Fprintln(out, clifmt.Dim(msg.Message))
					continue
				}
				switch msg.Kind {
				case learner.StatusFinished:
					_, _ = fmt.Fprintln(out, clifmt.Success(msg.Message))
					_, _ = fmt.Fprintf(out, "%s %s\n", clifmt.Key("artifact:"), learner.ArtifactPath(dir))
				default:
					_, _ = fmt.Fprintln(out, clifmt.Warn(msg.Message))
				}
			}
			if n := task.Dropped(); n > 0 {
				d.log.Info("train_progress_dropped", "messages", n)
			}
			return last.Err
		},
	}
	cmd.Flags().StringVar(&author, "persona", "", "Persona that writes the posts (defaults to the first roster entry)")
	cmd.Flags().Int("steps", 0, "Training steps (defaults to train.steps)")
	cmd.Flags().Uint64("seed", 0, "Exploration seed (0 = time based)")
	_ = viper.BindPFlag("train.steps", cmd.Flags().Lookup("steps"))
	_ = viper.BindPFlag("train.seed", cmd.Flags().Lookup("seed"))
	return cmd
}
