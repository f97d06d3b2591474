package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/flashdeck/internal/flashcards"
)

// ParseCSV reads front,back rows. A leading "front,back" header is skipped.
// Rows with a single column become cards with an empty back, which the
// import reports as invalid.
func ParseCSV(r io.Reader) ([]flashcards.CardInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return fromRows(rows), nil
}

// ParseXLSX reads columns A and B of the workbook's first sheet.
func ParseXLSX(path string) ([]flashcards.CardInput, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of %s: %w", sheet, err)
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) []flashcards.CardInput {
	var cards []flashcards.CardInput
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if isBlank(row) {
			continue
		}
		var in flashcards.CardInput
		in.Front = strings.TrimSpace(row[0])
		if len(row) > 1 {
			in.Back = strings.TrimSpace(row[1])
		}
		cards = append(cards, in)
	}
	return cards
}

func isHeader(row []string) bool {
	return len(row) >= 2 &&
		strings.EqualFold(strings.TrimSpace(row[0]), "front") &&
		strings.EqualFold(strings.TrimSpace(row[1]), "back")
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
