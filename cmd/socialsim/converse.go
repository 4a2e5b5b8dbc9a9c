package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quailyquaily/socialsim/interact"
	"github.com/quailyquaily/socialsim/internal/clifmt"
	"github.com/quailyquaily/socialsim/internal/fsstore"
	"github.com/quailyquaily/socialsim/internal/statepaths"
	"github.com/spf13/cobra"
)

// conversationEntry is one line of the conversation log.
type conversationEntry struct {
	Session string    `json:"session"`
	Round   int       `json:"round"`
	Bot     string    `json:"bot"`
	Reply   string    `json:"reply"`
	At      time.Time `json:"at"`
}

func newConverseCmd() *cobra.Command {
	var rounds int
	var message string
	var showLog bool
	cmd := &cobra.Command{
		Use:   "converse",
		Short: "Pass a message round-robin through the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showLog {
				entries, err := fsstore.ReadJSONL[conversationEntry](statepaths.ConversationLogPath())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{shortID(e.Session), fmt.Sprint(e.Round), e.Bot, e.Reply})
				}
				clifmt.PrintTable(cmd.OutOrStdout(), clifmt.TableOptions{
					Title:     "Conversation log",
					Headers:   []string{"SESSION", "ROUND", "BOT", "REPLY"},
					Rows:      rows,
					EmptyText: "No conversations yet.",
				})
				return nil
			}

			d, err := loadDeps(cmd.Context(), depsOptions{})
			if err != nil {
				return err
			}
			defer d.Close()

			turns, convErr := d.orchestrator().Converse(cmd.Context(), rounds, message)

			w, err := fsstore.NewJSONLWriter(statepaths.ConversationLogPath(), fsstore.JSONLOptions{})
			if err != nil {
				return err
			}
			defer w.Close()
			session := uuid.NewString()
			now := time.Now().UTC()
			for _, t := range turns {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", clifmt.Key(fmt.Sprintf("[%d] %s:", t.Round, t.Persona)), t.Reply)
				if err := w.AppendJSON(conversationEntry{Session: session, Round: t.Round, Bot: t.Persona, Reply: t.Reply, At: now}); err != nil {
					return err
				}
			}
			return convErr
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 5, "Number of replies")
	cmd.Flags().StringVar(&message, "message", interact.DefaultOpening, "Opening message")
	cmd.Flags().BoolVar(&showLog, "log", false, "Print the stored conversation log and exit")
	return cmd
}
