package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jayasaisrikar/spoc-agent/internal/knowledge"
	"github.com/jayasaisrikar/spoc-agent/internal/report"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// chatHistoryTurns is how many earlier messages are replayed into a prompt.
const chatHistoryTurns = 10

var (
	askSession  string
	askSessions bool
	askClear    bool
	askRaw      bool
)

var askCmd = &cobra.Command{
	Use:   "ask <repo> [question]",
	Short: "Ask a question about a stored repository",
	Long: `Answer a question using the stored knowledge of a repository. Messages
are kept per session; pass --session to continue a conversation.

  spoc ask api "where is authentication handled?"
  spoc ask api --sessions        list sessions
  spoc ask api --clear           clear every session of the repository`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAsk,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <repo> <feature description>",
	Short: "Suggest where a new feature belongs in a stored repository",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSuggest,
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Session ID (default: a new session)")
	askCmd.Flags().BoolVar(&askSessions, "sessions", false, "List chat sessions")
	askCmd.Flags().BoolVar(&askClear, "clear", false, "Clear chat history (one session with --session)")
	askCmd.Flags().BoolVar(&askRaw, "raw", false, "Print the answer without terminal styling")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	repo := args[0]

	switch {
	case askSessions:
		sessions, err := a.knowledge.ListChatSessions(ctx, repo)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			fmt.Printf("%s  %3d messages  last %s\n", s.SessionID, s.MessageCount, s.LastMessage.Local().Format("2006-01-02 15:04"))
		}
		return nil
	case askClear:
		n, err := a.knowledge.ClearChatHistory(ctx, repo, askSession)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Removed %d messages", n), color.FgGreen)
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("a question is required")
	}
	k, err := a.knowledge.GetRepositoryKnowledge(ctx, repo)
	if err != nil {
		return err
	}
	if k.Empty() {
		return fmt.Errorf("repository %q is not stored; run 'spoc ingest' first", repo)
	}

	session := askSession
	if session == "" {
		session = uuid.New().String()[:8]
	}
	past, err := a.knowledge.GetChatHistory(ctx, repo, session)
	if err != nil {
		return err
	}

	question := args[1]
	answer, err := a.withAI(ctx).GenerateResponse(ctx, chatPrompt(repo, k, past, question))
	if err != nil {
		return err
	}

	for _, msg := range []knowledge.ChatMessage{
		{RepoName: repo, SessionID: session, MessageID: uuid.New().String(), Role: "user", Content: question},
		{RepoName: repo, SessionID: session, MessageID: uuid.New().String(), Role: "assistant", Content: answer},
	} {
		if err := a.knowledge.StoreChatMessage(ctx, msg); err != nil {
			return err
		}
	}

	printAnswer(answer, askRaw)
	printStatus("·", fmt.Sprintf("session %s", session), color.FgHiBlack)
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	repo := args[0]
	feature := strings.Join(args[1:], " ")

	k, err := a.knowledge.GetRepositoryKnowledge(ctx, repo)
	if err != nil {
		return err
	}
	if k.Empty() {
		return fmt.Errorf("repository %q is not stored; run 'spoc ingest' first", repo)
	}

	answer, err := a.suggestFeature(ctx, repo, k, feature)
	if err != nil {
		return err
	}
	printAnswer(answer, false)
	return nil
}

func (a *app) suggestFeature(ctx context.Context, repo string, k *models.RepositoryKnowledge, feature string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest how to add a feature to the repository %q.\n\nFeature: %s\n\n", repo, feature)
	writeKnowledge(&b, k)
	b.WriteString("\nName the files to change or create, where the new code belongs, and the patterns it should follow.\n")

	answer, err := a.withAI(ctx).GenerateResponse(ctx, b.String())
	if err != nil {
		return "", err
	}
	if _, err := a.knowledge.StoreFeatureSuggestion(ctx, repo, feature, answer); err != nil {
		return "", err
	}
	return answer, nil
}

func chatPrompt(repo string, k *models.RepositoryKnowledge, past []knowledge.ChatMessage, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are answering questions about the repository %q.\n\n", repo)
	writeKnowledge(&b, k)

	if len(past) > chatHistoryTurns {
		past = past[len(past)-chatHistoryTurns:]
	}
	if len(past) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range past {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return b.String()
}

// writeKnowledge adds the stored summary, layout and diagram to a prompt.
func writeKnowledge(b *strings.Builder, k *models.RepositoryKnowledge) {
	if summary, _ := k.Analysis["architecture_summary"].(string); summary != "" {
		fmt.Fprintf(b, "Architecture summary:\n%s\n\n", summary)
	}
	if tech := k.Analysis["tech_stack"]; tech != nil {
		fmt.Fprintf(b, "Tech stack: %v\n\n", tech)
	}
	paths := k.FileStructure
	if len(paths) > 50 {
		paths = paths[:50]
	}
	fmt.Fprintf(b, "Files (%d total):\n%s\n", len(k.FileStructure), strings.Join(paths, "\n"))
	if k.MermaidDiagram != "" {
		fmt.Fprintf(b, "\nDiagram:\n%s\n", k.MermaidDiagram)
	}
}

func printAnswer(answer string, raw bool) {
	if raw || color.NoColor {
		fmt.Println(answer)
		return
	}
	out, err := report.RenderTerminal(answer, "", report.DefaultWordWrap)
	if err != nil {
		fmt.Println(answer)
		return
	}
	fmt.Print(out)
}
