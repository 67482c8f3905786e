package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/tui"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/tui/api"
)

var (
	assessmentFlag   int64
	journeyFlag      bool
	conversationFlag string
	renderFlag       bool
	plainHistory     bool
	widthFlag        int
)

var chatCmd = &cobra.Command{
	Use:   "chat MESSAGE",
	Short: "Ask the advisor about an assessment",
	Long: `Sends one message and streams the reply. Pass --conversation to continue
an earlier thread; the id of a new thread is printed after the reply.

With --journey the advisor also reports suggested updates to projects,
backlog items, sprints and risks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List earlier conversations for an assessment",
	RunE:  runHistory,
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, historyCmd} {
		c.Flags().Int64VarP(&assessmentFlag, "assessment", "a", 0, "Assessment id")
		c.Flags().BoolVar(&journeyFlag, "journey", false, "Use the journey workspace chat")
		_ = c.MarkFlagRequired("assessment")
	}
	chatCmd.Flags().StringVarP(&conversationFlag, "conversation", "c", "", "Continue this conversation id")
	chatCmd.Flags().BoolVar(&renderFlag, "render", false, "Render the finished reply as markdown instead of streaming it")
	historyCmd.Flags().BoolVar(&plainHistory, "plain", false, "Print assistant replies without markdown rendering")
	for _, c := range []*cobra.Command{chatCmd, historyCmd} {
		c.Flags().IntVar(&widthFlag, "width", 80, "Wrap width for rendered markdown")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	message := strings.Join(args, " ")
	printer := tui.NewChatPrinter(cmd.OutOrStdout(), !renderFlag, widthFlag)

	err := newClient().Chat(ctx, assessmentFlag, message, api.ChatOptions{
		Journey:        journeyFlag,
		ConversationID: conversationFlag,
	}, printer.Handle)
	if err != nil {
		return describeAPIError(err)
	}
	if printer.Err != "" {
		return fail("advisor: %s", printer.Err)
	}

	if conversationFlag == "" && printer.ConversationID != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nconversation %s · continue with --conversation %s\n", printer.ConversationID, printer.ConversationID)
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	conversations, err := newClient().History(ctx, assessmentFlag, journeyFlag)
	if err != nil {
		return describeAPIError(err)
	}
	if len(conversations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
		return nil
	}

	var renderer *glamour.TermRenderer
	if !plainHistory {
		renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(widthFlag))
	}

	out := cmd.OutOrStdout()
	for _, conv := range conversations {
		fmt.Fprintf(out, "── %s (#%d, %s)\n", conv.Title, conv.ID, conv.UpdatedAt.Local().Format("2006-01-02 15:04"))
		for _, msg := range conv.Messages {
			fmt.Fprintf(out, "%s:\n", msg.Role)
			body := msg.Content
			if renderer != nil && msg.Role == "assistant" {
				if r, err := renderer.Render(body); err == nil {
					body = r
				}
			}
			fmt.Fprintln(out, strings.TrimRight(body, "\n"))
			if msg.Metadata != nil && len(msg.Metadata.Insights) > 0 {
				fmt.Fprint(out, tui.FormatInsights(msg.Metadata.Insights))
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}

func describeAPIError(err error) error {
	switch {
	case api.IsStatus(err, http.StatusNotFound):
		return fail("not found: %w", err)
	case api.IsStatus(err, http.StatusForbidden):
		return fail("this assessment belongs to another user; pass --token: %w", err)
	case api.IsStatus(err, http.StatusUnauthorized):
		return fail("authentication failed: %w", err)
	}
	return err
}
