package ws

import "log"

// effect is one best-effort fan-out step run after a handler's critical
// state change succeeded. A failing effect is logged and skipped; later
// effects still run and the client never sees an error for it.
type effect struct {
	name string
	run  func() error
}

func runEffects(effects ...effect) {
	for _, e := range effects {
		if err := e.run(); err != nil {
			log.Printf("ws: effect %s failed: %v", e.name, err)
		}
	}
}
