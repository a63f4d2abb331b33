// Package viz renders continuation results in the terminal.
//
//   - [Diagram]: braille branch diagram in the (λ, measure) plane with
//     bifurcation markers (F fold, B branch point, H Hopf)
//   - [Model]: Bubble Tea live view that steps a driver frame by frame
//   - [App]: problem and preset picker in front of the live view
//
// # Key Bindings
//
//	Space - Pause/Resume continuation
//	N     - Single state transition
//	+/-   - Transitions per frame
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
