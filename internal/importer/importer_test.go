package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"orderdesk/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
	err   error
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, p)
	return &p, nil
}

const catalogCSV = `key,name,basePrice,minOrderQuantity,difficulty,active,option.attribute,option.customizable,option.value,option.surcharge,option.available
cake,Layer cake,100,2,3,true,size,false,small,0,true
,,,,,,size,,large,20,true
,,,,,,inscription,true,,,
cookie,Cookie box,40,,,,,,,,
retired,Old tart,55,1,1,false,,,,,
`

func TestCSVImporter_Run(t *testing.T) {
	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(catalogCSV), repo, nil)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 products imported, got %d", count)
	}

	cake := repo.items[0]
	if cake.Key != "cake" || cake.BasePrice != 100 || cake.MinOrderQuantity != 2 || cake.Difficulty != 3 || !cake.IsActive {
		t.Fatalf("unexpected product data: %+v", cake)
	}
	if len(cake.OptionGroups) != 2 {
		t.Fatalf("expected 2 option groups, got %d", len(cake.OptionGroups))
	}
	size := cake.OptionGroups[0]
	if size.Attribute != "size" || len(size.Choices) != 2 || size.Choices[1].Surcharge != 20 {
		t.Fatalf("unexpected size group: %+v", size)
	}
	if inscription := cake.OptionGroups[1]; !inscription.Customizable || len(inscription.Choices) != 0 {
		t.Fatalf("unexpected inscription group: %+v", inscription)
	}

	cookie := repo.items[1]
	if cookie.MinOrderQuantity != 1 || cookie.Difficulty != 1 || !cookie.IsActive {
		t.Fatalf("expected defaults on cookie, got %+v", cookie)
	}
	if repo.items[2].IsActive {
		t.Fatalf("expected retired product to be inactive")
	}
}

func TestCSVImporter_StableOptionIDs(t *testing.T) {
	first := &stubProductRepo{}
	second := &stubProductRepo{}
	if _, err := NewCSVImporter(strings.NewReader(catalogCSV), first, nil).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := NewCSVImporter(strings.NewReader(catalogCSV), second, nil).Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	a, b := first.items[0].OptionGroups[0], second.items[0].OptionGroups[0]
	if a.ID != b.ID || a.Choices[1].ID != b.Choices[1].ID {
		t.Fatalf("expected stable ids across imports")
	}
	if a.Choices[0].ID == a.Choices[1].ID {
		t.Fatalf("expected distinct choice ids")
	}
}

func TestCSVImporter_Errors(t *testing.T) {
	cases := map[string]string{
		"bad difficulty": "key,name,basePrice,difficulty\ncake,Cake,10,4\n",
		"bad price":      "key,name,basePrice\ncake,Cake,ten\n",
		"missing name":   "key,name,basePrice\ncake,,10\n",
		"missing column": "key,name\ncake,Cake\n",
		"duplicate option": "key,name,basePrice,option.attribute,option.value\n" +
			"cake,Cake,10,size,large\n,,,size,large\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubProductRepo{}
			if _, err := NewCSVImporter(strings.NewReader(data), repo, nil).Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			if len(repo.items) != 0 {
				t.Fatalf("expected nothing written, got %d", len(repo.items))
			}
		})
	}
}

func TestCSVImporter_UpsertFailure(t *testing.T) {
	repo := &stubProductRepo{err: errors.New("db down")}
	count, err := NewCSVImporter(strings.NewReader(catalogCSV), repo, nil).Run(context.Background())
	if err == nil || count != 0 {
		t.Fatalf("expected failure before any import, got count=%d err=%v", count, err)
	}
}
