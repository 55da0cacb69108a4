// Package game implements the shell game engine: a token is placed under
// one of several containers, the containers are shuffled by a timed
// sequence of swaps, and the player guesses which position holds the token.
//
// The main type is Engine. It owns the authoritative state, accepts the
// commands Start, Select, Advance and Restart, and publishes a Snapshot
// after every mutation. Commands that are not valid for the current phase
// are ignored.
//
// # Basic Usage
//
//	e := game.NewEngine(
//		game.WithStore(scorestore.NewFile("scores.json", logger)),
//		game.WithLogger(logger),
//	)
//	defer e.Close()
//	unsubscribe := e.Subscribe(func(s game.Snapshot) { render(s) })
//	defer unsubscribe()
//	e.Start()
//
// # Timing
//
// Placing lasts the placing delay (1500ms by default). Shuffling then
// applies one swap every step duration and, after the last swap, waits one
// more step duration before entering Selecting. Every timed transition is
// scheduled on a quartz.Clock, so tests drive the engine with quartz.NewMock
// instead of sleeping.
//
// At most one timer is pending per engine. Starting a new level or closing
// the engine bumps a generation counter and stops the pending timer; a
// callback that still fires with a stale generation does nothing.
//
// # Variants
//
// Progressive grows the container count, step count and speed with the
// level and persists the highest level reached. Classic keeps three
// containers and five shuffles and persists the best win count.
package game
