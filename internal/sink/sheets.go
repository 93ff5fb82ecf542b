package sink

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore implements Tabular against one worksheet of a Google
// spreadsheet.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
}

// OpenSheets connects with a service-account credentials file, opens the
// spreadsheet by name (creating it when absent) and provisions the named
// worksheet.
func OpenSheets(ctx context.Context, credentialsPath, spreadsheetName, worksheet string, log *zap.Logger) (*SheetsStore, error) {
	opts := []option.ClientOption{
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveScope),
	}

	sheetsSvc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}

	id, err := findSpreadsheet(ctx, driveSvc, spreadsheetName)
	if err != nil {
		return nil, err
	}
	if id == "" {
		created, err := sheetsSvc.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{Title: spreadsheetName},
		}).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("create spreadsheet %q: %w", spreadsheetName, err)
		}
		id = created.SpreadsheetId
		log.Info("created spreadsheet", zap.String("name", spreadsheetName))
	} else {
		log.Info("connected to spreadsheet", zap.String("name", spreadsheetName))
	}

	st := &SheetsStore{svc: sheetsSvc, spreadsheetID: id, worksheet: worksheet}
	if err := st.ensureWorksheet(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func findSpreadsheet(ctx context.Context, svc *drive.Service, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`))
	list, err := svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("look up spreadsheet %q: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func (s *SheetsStore) ensureWorksheet(ctx context.Context) error {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("inspect spreadsheet: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.worksheet {
			return nil
		}
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.worksheet},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add worksheet %q: %w", s.worksheet, err)
	}
	return nil
}

func (s *SheetsStore) ReadHeader(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!1:1", s.worksheet)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	header := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		header = append(header, fmt.Sprint(cell))
	}
	return header, nil
}

func (s *SheetsStore) WriteHeader(ctx context.Context, header []string) error {
	rng := fmt.Sprintf("%s!A1", s.worksheet)
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{toCells(header)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *SheetsStore) AppendRow(ctx context.Context, row []string) error {
	rng := fmt.Sprintf("%s!A1", s.worksheet)
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{toCells(row)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
