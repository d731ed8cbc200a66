// Package tui provides the terminal progress display for analysis runs.
//
// The display is read-only apart from pause/resume and quit keys. It
// follows a run by consuming orchestrator events:
//
//	program, app := tui.NewAnalyzeProgram("my-repo", orch)
//	go func() {
//	    result := orch.AnalyzeRepository(ctx, "my-repo", data, request)
//	    program.Send(tui.DoneMsg{Result: result})
//	}()
//	_, err := program.Run()
//
// Keys: p pauses or resumes the run, q (or ctrl+c) stops it and exits.
package tui
