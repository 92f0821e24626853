// Package importer loads rabies vaccination spreadsheets into the store.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// SheetOptions configures spreadsheet reading.
type SheetOptions struct {
	SheetName string // xlsx only; default is the first sheet
	Delimiter rune   // csv only; 0 sniffs ',' or ';' from the first line
}

// Row is one spreadsheet line. Line is 1-based, counting the header.
type Row struct {
	Line  int
	Cells []string
}

// StreamRows reads an .xlsx or .csv file and sends its rows, header
// included, to a channel. Both channels are closed when reading completes.
func StreamRows(ctx context.Context, path string, opts SheetOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		send := func(r Row) bool {
			select {
			case rowCh <- r:
				return true
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "importer: context cancelled")
				return false
			}
		}

		var err error
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			err = readXLSX(path, opts, send)
		case ".csv", ".txt":
			err = readCSV(path, opts, send)
		default:
			err = eris.Errorf("importer: unsupported file type %q", filepath.Ext(path))
		}
		if err != nil {
			errCh <- err
		}
	}()

	return rowCh, errCh
}

func readXLSX(path string, opts SheetOptions, send func(Row) bool) error {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return eris.Wrap(err, "importer: open xlsx")
	}

	sheet, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return err
	}

	for i, row := range sheet.Rows {
		if row == nil {
			continue
		}
		// Raw values keep date cells as Excel serials instead of
		// locale-formatted text.
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.Value)
		}
		if !send(Row{Line: i + 1, Cells: cells}) {
			return nil
		}
	}
	return nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("importer: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func readCSV(path string, opts SheetOptions, send func(Row) bool) error {
	file, err := os.Open(path)
	if err != nil {
		return eris.Wrap(err, "importer: open csv")
	}
	defer file.Close() //nolint:errcheck

	br := bufio.NewReader(file)
	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(br)
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "importer: read csv line %d", line)
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(strings.TrimPrefix(field, "\ufeff"))
		}
		if !send(Row{Line: line, Cells: record}) {
			return nil
		}
	}
}

// sniffDelimiter picks ';' when the first line has more semicolons than
// commas, as exported by spreadsheet software in pt-BR locales.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	first, _, _ := strings.Cut(string(peek), "\n")
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}
