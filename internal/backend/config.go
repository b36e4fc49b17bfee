package backend

import (
	"context"
	"fmt"

	"fintrack/internal/ai"
	"fintrack/internal/ai/bayes"
	"fintrack/internal/ai/gemini"
	"fintrack/internal/config"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
)

// collaborators resolves the suggester and chat responder. The responder is
// Gemini whenever an API key is present, whatever suggester is selected.
// Nil results are returned as untyped nils.
func (f *Factory) collaborators(ctx context.Context, cfg *config.Config) (ai.Suggester, ai.Responder, error) {
	var (
		client *gemini.Client
		err    error
	)
	if cfg.GeminiAPIKey != "" {
		client, err = gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			if cfg.Suggester == config.SuggesterGemini {
				return nil, nil, fmt.Errorf("create gemini client: %w", err)
			}
			f.logger.Warn("Gemini unavailable, chat will use the fallback reply", "error", err)
		}
	}

	var responder ai.Responder
	if client != nil {
		responder = client
	}

	switch cfg.Suggester {
	case config.SuggesterGemini:
		if client == nil {
			return nil, nil, fmt.Errorf("suggester %q requires GEMINI_API_KEY", cfg.Suggester)
		}
		return client, responder, nil
	case config.SuggesterBayes:
		return bayes.New(), responder, nil
	case config.SuggesterNone, "":
		return nil, responder, nil
	default:
		return nil, nil, fmt.Errorf("unknown suggester %q", cfg.Suggester)
	}
}

// exporter picks the Google Sheets sink when a spreadsheet is configured.
func (f *Factory) exporter(ctx context.Context, cfg *config.Config) (sheets.ExportWriter, error) {
	if cfg.GoogleSpreadsheetID == "" {
		f.logger.Info("No spreadsheet configured, exports stay in memory")
		return memory.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets exporter",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, nil
}
