package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/capgate/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing classification and capsule inspection.

Endpoints:
  GET  /health                        — Health check
  POST /api/classify                  — Classify a diff by risk
  POST /api/parse                     — Parse a diff into structured files
  GET  /api/capsules/{session}/{id}   — Fetch a stored capsule
  GET  /api/ws                        — WebSocket for remote review verdicts`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "127.0.0.1", "address to listen on")
	serveCmd.Flags().IntP("port", "p", 6142, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	port, _ := cmd.Flags().GetInt("port")

	store, err := storeFromConfig()
	if err != nil {
		return err
	}

	listen := fmt.Sprintf("%s:%d", addr, port)
	srv := api.New(listen, store)
	return srv.ListenAndServe()
}
