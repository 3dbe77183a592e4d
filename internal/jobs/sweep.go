// The stale-session sweep is the backstop for processors that crash
// mid-batch without writing a terminal state: active sessions past the
// staleness threshold become errors, and terminal sessions past the grace
// period are garbage-collected.

package jobs

import (
	"log"
	"time"

	"github.com/panicsense/panicsense-go/internal/store"
)

const JobSessionSweep = "session-sweep"

// terminalGrace is how long terminal sessions stay queryable before the
// sweep garbage-collects them. Clients reconnecting after a restart need the
// terminal row to learn the outcome.
const terminalGrace = 24 * time.Hour

func sweepSessions(ctx JobContext) {
	st := store.New(ctx.DB())

	swept, err := st.SweepStale(ctx.Config().StaleAfter())
	if err != nil {
		log.Printf("Session sweep failed: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("Session sweep marked %d stale session(s) as errored", swept)
	}

	purged, err := st.PurgeTerminal(terminalGrace)
	if err != nil {
		log.Printf("Terminal session purge failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Session sweep purged %d old terminal session(s)", purged)
	}
}
