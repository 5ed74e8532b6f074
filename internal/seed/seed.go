// Package seed loads demo data for manual testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"orderdesk/internal/domain"
	"orderdesk/internal/importer"
	"orderdesk/internal/logging"
	customerrepo "orderdesk/internal/repository/customer"
	productrepo "orderdesk/internal/repository/product"
)

const (
	DemoEmail    = "demo@orderdesk.local"
	DemoPassword = "demo-password"
)

const demoCatalog = `key,name,basePrice,minOrderQuantity,difficulty,active,option.attribute,option.customizable,option.value,option.surcharge,option.available,option.otherSurcharge
layer-cake,Layer cake,3200,1,3,true,size,false,6 inch,0,true,
,,,,,,size,,8 inch,900,true,
,,,,,,size,,10 inch,1600,true,
,,,,,,inscription,true,,,,250
sugar-cookies,Decorated sugar cookies,250,12,1,true,shape,false,round,0,true,
,,,,,,shape,,heart,25,true,
,,,,,,shape,,custom,,true,
`

// Apply inserts the demo catalog, a storewide discount and a demo customer.
// Running it again leaves existing rows in place.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("seed")
	if err := ensureStatuses(ctx, pool); err != nil {
		return fmt.Errorf("ensure statuses: %w", err)
	}

	products := productrepo.NewPostgres(pool, logger)
	if _, err := importer.NewCSVImporter(strings.NewReader(demoCatalog), products, logger).Run(ctx); err != nil {
		return fmt.Errorf("import demo catalog: %w", err)
	}
	if err := ensureDiscount(ctx, products); err != nil {
		return fmt.Errorf("ensure discount: %w", err)
	}
	if err := ensureCustomer(ctx, customerrepo.NewPostgres(pool, logger)); err != nil {
		return fmt.Errorf("ensure customer: %w", err)
	}
	logger.Info("seed applied", zap.String("customer", DemoEmail))
	return nil
}

func ensureStatuses(ctx context.Context, pool *pgxpool.Pool) error {
	const q = `
INSERT INTO order_statuses (name, step)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET step = EXCLUDED.step
`
	for name, step := range domain.StatusSteps {
		if _, err := pool.Exec(ctx, q, name, step); err != nil {
			return err
		}
	}
	return nil
}

func ensureDiscount(ctx context.Context, products productrepo.Repository) error {
	list, err := products.List(ctx, true)
	if err != nil {
		return err
	}
	var cake *domain.Product
	for i := range list {
		if list[i].Key == "layer-cake" {
			cake = &list[i]
		}
	}
	if cake == nil {
		return errors.New("layer-cake missing after import")
	}
	if len(cake.Discounts) > 0 {
		return nil
	}
	start := time.Now().UTC().Truncate(24 * time.Hour)
	_, err = products.CreateDiscount(ctx, domain.Discount{
		Start:      start,
		End:        start.AddDate(0, 3, 0),
		Target:     domain.AudienceAll,
		Percent:    10,
		ProductIDs: []string{cake.ID},
	})
	return err
}

func ensureCustomer(ctx context.Context, customers customerrepo.Repository) error {
	_, err := customers.GetByEmail(ctx, DemoEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = customers.Create(ctx, domain.Customer{
		Email:         DemoEmail,
		PasswordHash:  string(hash),
		FirstName:     "Demo",
		LastName:      "Customer",
		AudienceClass: domain.AudienceRegular,
		IsActive:      true,
		EmailAllowed:  true,
	})
	return err
}
