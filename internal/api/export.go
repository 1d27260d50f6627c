package api

import (
	"log/slog"
	"net/http"

	"github.com/cautiouskurns/FinalRound/internal/export"
)

// handleExportCatalog streams the catalog as a download. ?format=jsonl
// yields flat question cards; the default is the re-importable document.
func (a *API) handleExportCatalog(w http.ResponseWriter, r *http.Request) {
	exporter := export.NewExporter(a.db)

	switch r.URL.Query().Get("format") {
	case "jsonl":
		w.Header().Set("Content-Type", "application/jsonl")
		w.Header().Set("Content-Disposition", `attachment; filename="catalog-cards.jsonl"`)
		if err := exporter.WriteCards(w); err != nil {
			slog.Error("exporting cards", "error", err)
		}
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="catalog.json"`)
		if err := exporter.WriteDocument(w); err != nil {
			slog.Error("exporting catalog", "error", err)
		}
	}
}
