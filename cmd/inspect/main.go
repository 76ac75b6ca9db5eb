package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/living-blueprint/internal/audit"
	"github.com/danielpatrickdp/living-blueprint/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to blueprint.db")
	last := flag.Int("last", 20, "show N most recent sessions")
	session := flag.String("session", "", "show single session detail with cycle history")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/blueprint.db [--last N] [--session id] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if *session != "" {
		if err := runDetailMode(st, *session, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runListMode(st, *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region list-mode

func runListMode(st *store.Store, last int, jsonOut bool) error {
	sessions, err := st.ListSessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}
	if last < len(sessions) {
		sessions = sessions[:last]
	}

	if jsonOut {
		return printJSON(sessions)
	}

	fmt.Printf("%-12s  %8s  %6s  %-24s  %s\n", "Session", "Position", "Cycles", "Updated", "Created")
	fmt.Printf("%-12s+-%8s+-%6s+-%-24s+-%s\n", "------------", "--------", "------", "------------------------", "------------------------")
	for _, s := range sessions {
		fmt.Printf("%-12s  %8.3f  %6d  %-24s  %s\n",
			shortID(s.ID), s.CurrentPosition, s.ActiveCycleIndex,
			s.UpdatedAt.Format("2006-01-02T15:04:05Z"), s.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type sessionDetail struct {
	Session     store.Session       `json:"session"`
	Stages      []string            `json:"stages"`
	Cycles      []store.ActionCycle `json:"cycles"`
	Generations []audit.Entry       `json:"generations,omitempty"`
}

func runDetailMode(st *store.Store, sessionID string, jsonOut bool) error {
	sess, err := st.GetSession(sessionID)
	if err != nil {
		return err
	}
	cycles, err := st.ListCycles(sessionID)
	if err != nil {
		return err
	}

	detail := sessionDetail{Session: sess, Cycles: cycles}
	if bp, err := st.GetBlueprintBySession(sessionID); err == nil {
		for _, seg := range bp.Definition.MainPath {
			detail.Stages = append(detail.Stages, seg.StageName)
		}
	}
	if al, err := audit.NewLog(st.DB()); err == nil {
		if entries, err := al.BySession(sessionID); err == nil {
			detail.Generations = entries
		}
	}

	if jsonOut {
		return printJSON(detail)
	}

	fmt.Printf("Session:   %s\n", sess.ID)
	fmt.Printf("Created:   %s\n", sess.CreatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Updated:   %s\n", sess.UpdatedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Position:  %.3f\n", sess.CurrentPosition)
	fmt.Printf("Cycles:    %d\n", sess.ActiveCycleIndex)
	if len(detail.Stages) > 0 {
		fmt.Printf("Stages:    %v\n", detail.Stages)
	}

	if len(cycles) > 0 {
		fmt.Printf("\nCycle history:\n")
		fmt.Printf("  %-5s  %8s  %8s  %5s  %s\n", "Cycle", "From", "To", "Lines", "Time")
		for _, c := range cycles {
			fmt.Printf("  %-5d  %8.3f  %8.3f  %5d  %s\n",
				c.CycleIndex, c.PreviousPosition, c.NewPosition, len(c.ActionLines),
				c.CreatedAt.Format("2006-01-02T15:04:05Z"))
		}
	}

	if len(detail.Generations) > 0 {
		fmt.Printf("\nGeneration log:\n")
		fmt.Printf("  %-10s  %-5s  %-7s  %8s  %s\n", "Operation", "Cycle", "Outcome", "Elapsed", "Detail")
		for _, g := range detail.Generations {
			fmt.Printf("  %-10s  %-5d  %-7s  %8s  %s\n",
				g.Operation, g.CycleIndex, g.Outcome, g.Elapsed.Round(time.Millisecond), g.Detail)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
