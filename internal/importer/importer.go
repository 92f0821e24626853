package importer

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ccz-paraguacu/zoonoses/internal/model"
	"github.com/ccz-paraguacu/zoonoses/internal/records"
	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

// Writer persists a batch of vaccinations, replacing rows with the same ID.
type Writer interface {
	ImportVaccinations(ctx context.Context, vs []model.RabiesVaccination) (int64, error)
}

// Options configures an import run.
type Options struct {
	Sheet     SheetOptions
	Campaign  string // used when the sheet has no campaign column or the cell is empty
	Geocode   bool   // resolve each row before writing
	BatchSize int    // rows per write; default 500
}

// Stats summarizes one import run.
type Stats struct {
	Rows        int `json:"rows"`
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	Geocoded    int `json:"geocoded"`
	Synthesized int `json:"synthesized"`
}

// Importer reads vaccination spreadsheets.
type Importer struct {
	writer  Writer
	locator *records.Locator
	opts    Options
}

// New creates an Importer. locator may be nil when opts.Geocode is false.
func New(w Writer, locator *records.Locator, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Importer{writer: w, locator: locator, opts: opts}
}

// column identifiers, in header-alias order.
const (
	colAnimal   = "animal"
	colSpecies  = "species"
	colOwner    = "owner"
	colDate     = "date"
	colLot      = "lot"
	colCampaign = "campaign"
	colAddress  = "address"
	colArea     = "area"
	colBlock    = "block"
)

var headerAliases = map[string]string{
	"animal": colAnimal, "nome": colAnimal, "nome do animal": colAnimal, "animal_name": colAnimal,
	"especie": colSpecies, "species": colSpecies,
	"tutor": colOwner, "proprietario": colOwner, "owner": colOwner, "owner_name": colOwner,
	"data": colDate, "date": colDate, "data da vacinacao": colDate, "vaccinated_at": colDate,
	"lote": colLot, "lot": colLot, "vaccine_lot": colLot,
	"campanha": colCampaign, "campaign": colCampaign,
	"endereco": colAddress, "address": colAddress,
	"area": colArea,
	"quadra": colBlock, "block": colBlock,
}

var requiredColumns = []string{colAnimal, colSpecies, colDate}

// importNamespace seeds deterministic vaccination IDs, so re-importing a
// sheet updates rows instead of duplicating them.
var importNamespace = uuid.MustParse("6f1c2b0e-8a43-4b8e-9d6f-3c1a7e5d2b90")

// Import reads path and writes its vaccinations.
func (im *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rowCh, errCh := StreamRows(ctx, path, im.opts.Sheet)

	stats := &Stats{}
	var (
		cols  map[string]int
		batch []model.RabiesVaccination
		// Postgres rejects a merge that touches one ID twice, so a batch
		// holds each ID once.
		inBatch = make(map[string]int)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.writer.ImportVaccinations(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "importer: write batch")
		}
		stats.Imported += int(n)
		batch = batch[:0]
		clear(inBatch)
		return nil
	}

	for row := range rowCh {
		if cols == nil {
			var err error
			if cols, err = headerIndex(row.Cells); err != nil {
				return nil, err
			}
			continue
		}
		if blank(row.Cells) {
			continue
		}
		stats.Rows++

		v, err := im.parseRow(cols, row.Cells)
		if err != nil {
			zap.L().Warn("importer: skipping row",
				zap.String("file", path),
				zap.Int("line", row.Line),
				zap.Error(err),
			)
			stats.Skipped++
			continue
		}

		if i, dup := inBatch[v.ID]; dup {
			zap.L().Warn("importer: duplicate row replaces an earlier one",
				zap.String("file", path),
				zap.Int("line", row.Line),
				zap.String("id", v.ID),
			)
			// Same ID means the same location fields, so the earlier
			// resolution still holds.
			v.Location = batch[i].Location
			batch[i] = *v
			stats.Skipped++
			continue
		}

		if im.opts.Geocode && im.locator != nil {
			res := im.locator.Locate(ctx, &v.Location)
			if res.Succeeded {
				stats.Geocoded++
				if res.Provider == geocode.ProviderSynthesis {
					stats.Synthesized++
				}
			}
		}

		inBatch[v.ID] = len(batch)
		batch = append(batch, *v)
		if len(batch) >= im.opts.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return stats, err
	}
	if cols == nil {
		return stats, eris.Errorf("importer: %s is empty", path)
	}
	if err := flush(); err != nil {
		return stats, err
	}

	zap.L().Info("importer: import complete",
		zap.String("file", path),
		zap.Int("rows", stats.Rows),
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Int("geocoded", stats.Geocoded),
	)
	return stats, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// headerIndex maps column identifiers to cell positions.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		if id, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := cols[id]; !dup {
				cols[id] = i
			}
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("importer: missing columns: %s", strings.Join(missing, ", "))
	}
	_, hasAddr := cols[colAddress]
	_, hasArea := cols[colArea]
	_, hasBlock := cols[colBlock]
	if !hasAddr && !(hasArea && hasBlock) {
		return nil, eris.New("importer: sheet needs an address column or area and block columns")
	}
	return cols, nil
}

func normalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, h)
	if err != nil {
		folded = h
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

func (im *Importer) parseRow(cols map[string]int, cells []string) (*model.RabiesVaccination, error) {
	get := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	species, ok := model.ParseSpecies(get(colSpecies))
	if !ok {
		return nil, eris.Errorf("importer: unknown species %q", get(colSpecies))
	}
	at, err := parseDate(get(colDate))
	if err != nil {
		return nil, err
	}
	campaign := get(colCampaign)
	if campaign == "" {
		campaign = im.opts.Campaign
	}

	v := &model.RabiesVaccination{
		AnimalName:   get(colAnimal),
		Species:      species,
		OwnerName:    get(colOwner),
		VaccinatedAt: at,
		VaccineLot:   get(colLot),
		Campaign:     campaign,
		Location: model.Location{
			Address: get(colAddress),
			Area:    get(colArea),
			Block:   get(colBlock),
		},
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	v.ID = rowID(v)
	return v, nil
}

func rowID(v *model.RabiesVaccination) string {
	key := strings.Join([]string{
		normalizeHeader(v.AnimalName),
		normalizeHeader(v.OwnerName),
		v.VaccinatedAt.Format("2006-01-02"),
		normalizeHeader(v.VaccineLot),
		normalizeHeader(v.Location.Address),
		v.Location.Area,
		v.Location.Block,
	}, "|")
	return uuid.NewSHA1(importNamespace, []byte(key)).String()
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02/01/06",
	time.RFC3339,
}

// parseDate accepts ISO and day-first dates, and Excel serial numbers from
// cells without a date format.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.New("importer: date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		t := xlsx.TimeFromExcelTime(serial, false)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, eris.Errorf("importer: unrecognized date %q", s)
}
