// Package importer loads catalog products from CSV.
//
// The first row is a header. A row with a key starts a product; rows with an
// empty key add option choices to the product above them:
//
//	key,name,basePrice,minOrderQuantity,difficulty,active,option.attribute,option.customizable,option.value,option.surcharge,option.available
//	cake,Layer cake,100,1,2,true,size,false,small,0,true
//	,,,,,,size,,large,20,true
//	,,,,,,inscription,true,,,
//
// Option group and choice ids are derived from the product key, attribute and
// value, so re-importing a file keeps the ids that baskets already refer to.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"orderdesk/internal/domain"
	"orderdesk/internal/logging"
)

var catalogNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("orderdesk:catalog"))

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads product CSV files and inserts or updates products by key.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	logger      *zap.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		logger:      logging.OrNop(logger).Named("importer"),
	}
}

// Run parses CSV rows and upserts products grouped by product key. It
// returns the number of products written before the first failure.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"key", "name", "basePrice"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	var (
		current  *domain.Product
		imported int
		line     = 1
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := i.save(ctx, current); err != nil {
			return err
		}
		imported++
		return nil
	}

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		if key := pick(record, index, "key"); key != "" {
			if err := flush(); err != nil {
				return imported, err
			}
			current, err = parseProduct(record, index)
			if err != nil {
				return imported, fmt.Errorf("line %d: %w", line, err)
			}
		}
		if current == nil {
			continue
		}
		if err := addOption(current, record, index); err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := flush(); err != nil {
		return imported, err
	}
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, p *domain.Product) error {
	if p.Name == "" {
		return fmt.Errorf("invalid product row (missing name) for key %q", p.Key)
	}
	if _, err := i.productRepo.Upsert(ctx, *p); err != nil {
		return fmt.Errorf("upsert product %q: %w", p.Key, err)
	}
	i.logger.Info("product imported",
		zap.String("key", p.Key),
		zap.Int("optionGroups", len(p.OptionGroups)))
	return nil
}

func parseProduct(record []string, index map[string]int) (*domain.Product, error) {
	key := pick(record, index, "key")
	price, err := parseInt(pick(record, index, "basePrice"), 0)
	if err != nil || price < 0 {
		return nil, fmt.Errorf("invalid basePrice for %q", key)
	}
	minQty, err := parseInt(pick(record, index, "minOrderQuantity"), 1)
	if err != nil || minQty < 1 {
		return nil, fmt.Errorf("invalid minOrderQuantity for %q", key)
	}
	difficulty, err := parseInt(pick(record, index, "difficulty"), 1)
	if err != nil || difficulty < 1 || difficulty > 3 {
		return nil, fmt.Errorf("difficulty for %q must be 1, 2 or 3", key)
	}
	active, err := parseBool(pick(record, index, "active"), true)
	if err != nil {
		return nil, fmt.Errorf("invalid active flag for %q", key)
	}
	return &domain.Product{
		Key:              key,
		Name:             pick(record, index, "name"),
		IsActive:         active,
		BasePrice:        price,
		MinOrderQuantity: int(minQty),
		Difficulty:       int(difficulty),
		OptionGroups:     []domain.OptionGroup{},
	}, nil
}

// addOption folds the option columns of record into p. A row naming a new
// attribute opens a group; a value adds a choice to it.
func addOption(p *domain.Product, record []string, index map[string]int) error {
	attribute := pick(record, index, "option.attribute")
	if attribute == "" {
		return nil
	}

	groupID := uuid.NewSHA1(catalogNamespace, []byte(p.Key+"/"+attribute))
	pos := -1
	for i, g := range p.OptionGroups {
		if g.Attribute == attribute {
			pos = i
			break
		}
	}
	if pos < 0 {
		customizable, err := parseBool(pick(record, index, "option.customizable"), false)
		if err != nil {
			return fmt.Errorf("invalid option.customizable for %q", attribute)
		}
		other, err := parseInt(pick(record, index, "option.otherSurcharge"), 0)
		if err != nil {
			return fmt.Errorf("invalid option.otherSurcharge for %q", attribute)
		}
		p.OptionGroups = append(p.OptionGroups, domain.OptionGroup{
			ID:             groupID.String(),
			Attribute:      attribute,
			Customizable:   customizable,
			OtherSurcharge: other,
			Choices:        []domain.OptionChoice{},
		})
		pos = len(p.OptionGroups) - 1
	}

	value := pick(record, index, "option.value")
	if value == "" {
		return nil
	}
	surcharge, err := parseInt(pick(record, index, "option.surcharge"), 0)
	if err != nil {
		return fmt.Errorf("invalid option.surcharge for %s=%s", attribute, value)
	}
	available, err := parseBool(pick(record, index, "option.available"), true)
	if err != nil {
		return fmt.Errorf("invalid option.available for %s=%s", attribute, value)
	}
	group := &p.OptionGroups[pos]
	choiceID := uuid.NewSHA1(groupID, []byte(value)).String()
	if _, dup := group.Choice(choiceID); dup {
		return fmt.Errorf("duplicate option %s=%s", attribute, value)
	}
	group.Choices = append(group.Choices, domain.OptionChoice{
		ID:        choiceID,
		Value:     value,
		Surcharge: surcharge,
		Available: available,
	})
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func parseInt(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseBool(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}
