package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"studycards-backend/internal/apperr"
	"studycards-backend/models"
)

// DeckExport is the JSON export payload for one deck.
type DeckExport struct {
	Deck       models.Deck            `json:"deck"`
	Cards      []models.ScheduledCard `json:"cards"`
	ExportedAt time.Time              `json:"exported_at"`
}

// ExportService renders a deck with all its cards as JSON or as an XLSX
// workbook for download.
type ExportService struct {
	Decks *DeckService
}

func NewExportService(decks *DeckService) *ExportService {
	return &ExportService{Decks: decks}
}

func (es *ExportService) collect(ctx context.Context, deckID string) (*DeckExport, error) {
	deck, err := es.Decks.GetDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}
	cards, err := es.Decks.ListCards(ctx, deckID)
	if err != nil {
		return nil, err
	}
	return &DeckExport{Deck: *deck, Cards: cards, ExportedAt: time.Now()}, nil
}

// ExportJSON returns the deck export as indented JSON.
func (es *ExportService) ExportJSON(ctx context.Context, deckID string) ([]byte, error) {
	export, err := es.collect(ctx, deckID)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal deck export: %w", err)
	}
	return data, nil
}

var exportHeaders = []string{
	"Front", "Back", "Hint", "Last Rating",
	"Ease Factor", "Interval (days)", "Repetitions", "Next Review", "Review Count",
}

// ExportXLSX returns the deck as a workbook with one card per row plus a
// summary sheet.
func (es *ExportService) ExportXLSX(ctx context.Context, deckID string) ([]byte, error) {
	export, err := es.collect(ctx, deckID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Cards"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, card := range export.Cards {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), card.Front)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), card.Back)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), card.Hint)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), string(card.Difficulty))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), card.EaseFactor)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), card.Interval)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), card.Repetitions)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), card.NextReviewAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), card.ReviewCount)
	}

	f.SetColWidth(sheetName, "A", "B", 40)
	f.SetColWidth(sheetName, "C", "I", 15)

	summaryName := "Summary"
	if _, err := f.NewSheet(summaryName); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	summaryRows := [][]interface{}{
		{"Deck", export.Deck.Title},
		{"Cards", len(export.Cards)},
		{"Exported", export.ExportedAt.Format("2006-01-02 15:04:05")},
	}
	for i, row := range summaryRows {
		for j, cell := range row {
			f.SetCellValue(summaryName, fmt.Sprintf("%c%d", 'A'+j, i+1), cell)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Export dispatches on format. Supported values are "json" and "xlsx".
func (es *ExportService) Export(ctx context.Context, deckID, format string) ([]byte, string, error) {
	switch format {
	case "", "json":
		data, err := es.ExportJSON(ctx, deckID)
		return data, "application/json", err
	case "xlsx", "excel":
		data, err := es.ExportXLSX(ctx, deckID)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	default:
		return nil, "", fmt.Errorf("%w: unsupported export format %q", apperr.ErrValidation, format)
	}
}
