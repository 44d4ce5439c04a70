// Package launcher starts creative applications as detached processes.
//
// A launch looks the application up in the application store, composes the
// process environment through the launch environment pipeline on top of the
// inherited environment, and spawns
//
//	[executable] + launch_arguments + [work file]
//
// with the executable's directory as working directory. The child runs in
// its own session (Unix) or console and process group (Windows), so it
// outlives slate.
//
// Failures never surface as errors: an unknown application or a spawn
// failure becomes Result{Success: false} with a user-facing message.
package launcher
