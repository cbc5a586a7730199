// Package viz provides a terminal monitor for a running forward-backward
// iteration.
//
// The monitor is a Bubble Tea program that advances the driver on every tick
// and shows the convergence history, the tip position and one activation
// sparkline per muscle. It does not draw the rod.
//
// # Key Bindings
//
//	Space - Pause/Resume iteration
//	T     - Cycle color themes
//	Q     - Quit
package viz
