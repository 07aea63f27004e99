package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/classpulse/presence-monitor/internal/enrich"
	"github.com/classpulse/presence-monitor/internal/moodle"
)

// Reporter renders the per-cycle snapshot of online users as a fixed-width
// table. Pure presentation: it never fails and touches nothing but the
// writer it was given.
type Reporter struct {
	out    io.Writer
	window time.Duration
	now    func() time.Time
}

// New builds a reporter writing to out, labelling the snapshot with the
// presence window it covers.
func New(out io.Writer, window time.Duration) *Reporter {
	return &Reporter{out: out, window: window, now: time.Now}
}

// Snapshot prints the current online users with their enriched fields.
func (r *Reporter) Snapshot(users []moodle.OnlineUser, addresses map[int64]string) {
	rule := strings.Repeat("=", 80)
	now := r.now().Format("2006-01-02 15:04:05")

	fmt.Fprintf(r.out, "\n%s\n", rule)
	fmt.Fprintf(r.out, "  Online Users (active in last %d min)  -  %s\n", int(r.window.Minutes()), now)
	fmt.Fprintf(r.out, "%s\n", rule)

	if len(users) == 0 {
		fmt.Fprintln(r.out, "  No users currently online.")
		fmt.Fprintf(r.out, "%s\n", rule)
		return
	}

	fmt.Fprintf(r.out, "  Total online: %d\n\n", len(users))
	fmt.Fprintf(r.out, "  %-10s  %-25s  %-20s  %-10s  %-20s  %s\n", "Hash", "Full Name", "Username", "Last Seen", "IP", "Classroom")
	fmt.Fprintf(r.out, "  %s  %s  %s  %s  %s  %s\n",
		strings.Repeat("-", 10), strings.Repeat("-", 25), strings.Repeat("-", 20),
		strings.Repeat("-", 10), strings.Repeat("-", 20), strings.Repeat("-", 12))

	for _, u := range users {
		lastSeen := "N/A"
		if u.LastAccess != 0 {
			lastSeen = time.Unix(u.LastAccess, 0).Format("15:04:05")
		}

		addr, ok := addresses[u.ID]
		if !ok || addr == "" {
			addr = "N/A"
		}

		fmt.Fprintf(r.out, "  %-10s  %-25s  %-20s  %-10s  %-20s  %s\n",
			enrich.HashUserID(u.ID), u.FullName, u.Username, lastSeen, addr, enrich.ClassroomLabel(addr))
	}

	fmt.Fprintf(r.out, "%s\n", rule)
}
