package sheets

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Service appends rows to and creates Google spreadsheets
type Service struct {
	opts []option.ClientOption
}

func NewService(opts ...option.ClientOption) *Service {
	return &Service{opts: opts}
}

func (s *Service) client(ctx context.Context, accessToken string) (*sheets.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, s.opts...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return srv, nil
}

// AppendRow appends one row below the table found at rng
func (s *Service) AppendRow(ctx context.Context, accessToken, spreadsheetID, rng string, values []interface{}) error {
	srv, err := s.client(ctx, accessToken)
	if err != nil {
		return err
	}

	body := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err = srv.Spreadsheets.Values.Append(spreadsheetID, rng, body).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to append row: %w", err)
	}
	return nil
}

// CreateSpreadsheet creates a spreadsheet with one sheet whose first row
// holds bold, centered, frozen headers
func (s *Service) CreateSpreadsheet(ctx context.Context, accessToken, title, sheetName string, headers []string) (string, error) {
	srv, err := s.client(ctx, accessToken)
	if err != nil {
		return "", err
	}

	cells := make([]*sheets.CellData, 0, len(headers))
	for _, h := range headers {
		value := h
		cells = append(cells, &sheets.CellData{
			UserEnteredValue: &sheets.ExtendedValue{StringValue: &value},
			UserEnteredFormat: &sheets.CellFormat{
				TextFormat:          &sheets.TextFormat{Bold: true},
				HorizontalAlignment: "CENTER",
			},
		})
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{{
			Properties: &sheets.SheetProperties{
				Title:          sheetName,
				GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
			},
			Data: []*sheets.GridData{{
				RowData: []*sheets.RowData{{Values: cells}},
			}},
		}},
	}

	created, err := srv.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create spreadsheet: %w", err)
	}
	return created.SpreadsheetId, nil
}

// A1Range builds "<sheet>!<cell>", quoting sheet names that need it
func A1Range(sheetName, cell string) string {
	if strings.ContainsAny(sheetName, " '!-") {
		sheetName = "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	}
	return sheetName + "!" + cell
}
