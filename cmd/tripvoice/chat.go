package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"
	"github.com/tbxark/tripvoice/agent"
	"github.com/tbxark/tripvoice/campaign"
	"github.com/tbxark/tripvoice/session"
	"github.com/tbxark/tripvoice/transport"
	"github.com/tbxark/tripvoice/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Plan a trip on the console",
	Long: `Runs one conversation on stdin/stdout, one line per utterance. With --runner
the conversation runs through the eino agent runner and keeps a transcript.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = campaign.NewRoomName()
		}
		if useRunner, _ := cmd.Flags().GetBool("runner"); useRunner {
			return runAgentChat(ctx, a, id, cmd.InOrStdin(), cmd.OutOrStdout())
		}

		console := transport.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
		listenErr := make(chan error, 1)
		go func() { listenErr <- console.Listen(ctx) }()
		if err := a.coordinator.Serve(ctx, id, console); err != nil {
			return err
		}
		return <-listenErr
	},
}

func runAgentChat(ctx context.Context, a *app, id string, in io.Reader, out io.Writer) error {
	ctx = session.WithConversationID(ctx, id)
	historyStore := agent.NewHistoryStore(a.history, agent.KeepSystemLastNTrimmer{N: 50})
	tripAgent := agent.NewAgent(
		"TripPlanner",
		"An agent that plans a trip from the traveler's budget, activities and travel style",
		a.coordinator,
	)
	runner := adk.NewRunner(ctx, adk.RunnerConfig{
		Agent: tripAgent,
	})

	run := func(history []*schema.Message) error {
		iter := runner.Run(ctx, history)
		for {
			event, ok := iter.Next()
			if !ok {
				return nil
			}
			if event.Err != nil {
				return event.Err
			}
			msg, err := event.Output.MessageOutput.GetMessage()
			if err != nil {
				return err
			}
			if _, err := historyStore.Append(ctx, msg); err != nil {
				return err
			}
			fmt.Fprintf(out, "Agent: %s\n", msg.Content)
		}
	}

	history, err := historyStore.Load(ctx)
	if err != nil {
		return err
	}
	if err := run(history); err != nil {
		return err
	}

	reader := bufio.NewScanner(in)
	for reader.Scan() {
		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}
		history, err := historyStore.Append(ctx, schema.UserMessage(input))
		if err != nil {
			return err
		}
		if err := run(history); err != nil {
			return err
		}
		rec, err := a.coordinator.Record(ctx, id)
		if err != nil {
			return err
		}
		if rec.Stage == types.StageComplete {
			_ = historyStore.Clear(ctx)
			return nil
		}
	}
	return reader.Err()
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("id", "", "Conversation ID to start or resume (default: a new room name)")
	chatCmd.Flags().Bool("runner", false, "Run the conversation through the eino agent runner")
}
