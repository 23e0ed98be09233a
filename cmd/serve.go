package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"prodintel/internal/ocr"
	"prodintel/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagAddr != "" {
			cfg.Server.Addr = flagAddr
		}

		m := newMatcher(cfg)
		engine, err := newEngine(cfg)
		if err != nil {
			return err
		}
		defer engine.Close()

		gen, err := newGenerator(cfg)
		if err != nil {
			return err
		}

		srv := server.New(m, engine, ocr.NewTesseract(cfg.OCR.TesseractPath), gen)
		fmt.Printf("Listening on %s\n", cfg.Server.Addr)
		return http.ListenAndServe(cfg.Server.Addr, srv)
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
