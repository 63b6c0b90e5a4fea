package adapter

import (
	"context"

	"github.com/m-mizutani/bulletin/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets mirrors new updates into a spreadsheet
type Sheets interface {
	AppendUpdate(ctx context.Context, update *model.Update) error
}

// SheetsClient appends rows of [date, title, description, time] to a sheet
type SheetsClient struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
}

var _ Sheets = (*SheetsClient)(nil)

type SheetsOption func(*SheetsClient)

// WithWriteRange overrides the A1 range rows are appended to (default
// "Sheet1!A:D")
func WithWriteRange(r string) SheetsOption {
	return func(s *SheetsClient) {
		s.writeRange = r
	}
}

// NewSheets creates a client authorized by a service account key in JSON
func NewSheets(ctx context.Context, spreadsheetID string, credentialsJSON []byte, opts ...SheetsOption) (*SheetsClient, error) {
	if spreadsheetID == "" {
		return nil, goerr.New("spreadsheet ID is required")
	}
	if len(credentialsJSON) == 0 {
		return nil, goerr.New("service account credentials are required")
	}

	service, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets service")
	}

	s := &SheetsClient{
		service:       service,
		spreadsheetID: spreadsheetID,
		writeRange:    "Sheet1!A:D",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SheetsClient) AppendUpdate(ctx context.Context, update *model.Update) error {
	row := &sheets.ValueRange{
		Values: [][]any{
			{update.Date, update.Title, update.Description, update.Time},
		},
	}

	_, err := s.service.Spreadsheets.Values.
		Append(s.spreadsheetID, s.writeRange, row).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return goerr.Wrap(err, "failed to append row to sheet",
			goerr.V("spreadsheet_id", s.spreadsheetID),
			goerr.V("update_id", update.ID))
	}
	return nil
}
