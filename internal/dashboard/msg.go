// Package dashboard implements the two-pane terminal front-end for browsing
// environments and packages. It drives a session.Session from the Bubble Tea
// update loop and receives backend output through a channel.Adapter.
package dashboard

// Mode represents the current dashboard interaction mode.
type Mode int

const (
	ModeBrowse  Mode = iota // Navigating environments and packages.
	ModeFilter              // Editing the package filter query.
	ModePrompt              // Entering a name or file path for an operation.
	ModeConfirm             // Confirming environment removal.
)

// Focus represents which pane has keyboard focus.
type Focus int

const (
	PaneEnvironments Focus = iota // Left pane (environment list) has focus.
	PanePackages                  // Right pane (package list) has focus.
)

// bootstrapMsg asks the update loop to run the startup probe and listing.
// Session calls must happen inside Update, never inside a tea.Cmd.
type bootstrapMsg struct{}

// copiedMsg reports the outcome of a clipboard write.
type copiedMsg struct {
	Text string
	Err  error
}
