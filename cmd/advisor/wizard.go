package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/catalog"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/progress"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/tui"
	"github.com/Tcrowley128/TCrowleyPersonalSite-sub002/internal/wizard"
)

var (
	sessionFlag string
	freshFlag   bool
	offlineFlag bool
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Fill in the assessment questionnaire",
	Long: `Runs the questionnaire step by step. Answers are saved locally as you go,
so an interrupted session resumes where it stopped.`,
	RunE: runWizard,
}

func init() {
	wizardCmd.Flags().StringVar(&sessionFlag, "session", "", "Resume a specific session id")
	wizardCmd.Flags().BoolVar(&freshFlag, "new", false, "Start a new session instead of resuming the last one")
	wizardCmd.Flags().BoolVar(&offlineFlag, "offline-catalog", false, "Use the built-in questions instead of fetching them")
}

func runWizard(cmd *cobra.Command, _ []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	client := newClient()

	cat := catalog.Default()
	if !offlineFlag {
		remote, err := client.Catalog(ctx)
		if err != nil {
			slog.WarnContext(ctx, "catalog fetch failed, using built-in questions", "error", err)
		} else {
			cat = remote
		}
	}

	local, err := progress.OpenLocalStore(filepath.Join(stateDir, "progress.db"))
	if err != nil {
		return fail("opening progress store: %w", err)
	}
	defer local.Close()
	store := progress.NewResilient(local)

	session, err := pickSession(cmd, local)
	if err != nil {
		return err
	}

	ctrl := wizard.New(cat, session)
	if snap, err := store.Load(ctx, session); err == nil {
		ctrl.Restore(*snap)
		fmt.Fprintf(cmd.OutOrStdout(), "Resuming session %s at step %d\n", session, ctrl.CurrentStep())
	}

	saver := wizard.StartAutosaver(ctx, store, wizard.AutosaverOptions{
		Debounce:      2 * time.Second,
		ForceInterval: 30 * time.Second,
	})
	defer saver.Close()

	model := tui.NewWizard(ctx, ctrl, saver, client.Submit)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		saver.Flush()
		return fail("running wizard: %w", err)
	}

	switch {
	case model.AssessmentID != 0:
		if err := local.Delete(ctx, session); err != nil {
			slog.WarnContext(ctx, "failed to clear saved progress", "session_id", session, "error", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Assessment submitted: %d\n", model.AssessmentID)
		fmt.Fprintf(cmd.OutOrStdout(), "Chat about it with: advisor chat --assessment %d \"...\"\n", model.AssessmentID)
	case model.Quit:
		fmt.Fprintf(cmd.OutOrStdout(), "Progress saved. Resume with: advisor wizard --session %s\n", session)
	}
	return nil
}

// pickSession resolves --session, else the last saved session unless --new.
func pickSession(cmd *cobra.Command, local *progress.LocalStore) (progress.SessionID, error) {
	if sessionFlag != "" {
		id, err := progress.ParseSessionID(sessionFlag)
		if err != nil {
			return "", fail("--session: %w", err)
		}
		return id, nil
	}
	if !freshFlag {
		id, err := local.LastSession(cmd.Context())
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, progress.ErrNoSnapshot) {
			slog.Warn("could not look up last session", "error", err)
		}
	}
	return progress.NewSessionID(), nil
}
