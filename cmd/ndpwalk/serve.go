package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gorilla/mux"
	"github.com/sarchlab/ndpwalk/telemetry"
	"github.com/spf13/cobra"
)

var (
	serveDBPath string
	serveAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the most recently recorded run's stats as read-only JSON.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDBPath, "db", "", "path to a stats SQLite database")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.MarkFlagRequired("db")
}

type latestRunResponse struct {
	RunID     string `json:"run_id"`
	Cycle     uint64 `json:"cycle"`
	Walks     uint64 `json:"walks"`
	WalkReads uint64 `json:"walk_reads"`
	Hits      uint64 `json:"hits"`
	Fails     uint64 `json:"fails"`
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := sql.Open("sqlite3", serveDBPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", serveDBPath, err)
	}
	defer db.Close()

	r := mux.NewRouter()
	r.HandleFunc("/stats/latest", latestRunHandler(db)).Methods(http.MethodGet)

	fmt.Printf("serving stats from %s on %s\n", serveDBPath, serveAddr)

	return http.ListenAndServe(serveAddr, r)
}

func latestRunHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		runID, snap, err := telemetry.LatestRun(db)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(latestRunResponse{
			RunID:     runID,
			Cycle:     snap.Cycle,
			Walks:     snap.Walks,
			WalkReads: snap.WalkReads,
			Hits:      snap.Hits,
			Fails:     snap.Fails,
		})
	}
}
