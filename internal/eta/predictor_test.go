package eta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"orderdesk/internal/config"
	"orderdesk/internal/domain"
)

func TestPredictMatchesModel(t *testing.T) {
	p := NewPredictor(config.DefaultETA())

	got := p.Predict(Input{Tier2: 2, Workload: 3, DeliveryType: domain.DeliveryPickup})

	// -9.74 + 14.172*3 + 3.832*2 + 2.89*1 = 43.33
	assert.Equal(t, 43, got.Hours)
	assert.InDelta(t, 30.17, got.Low, 1e-9)
	assert.InDelta(t, 55.83, got.High, 1e-9)
}

func TestPredictDeliveryAddsTypeWeight(t *testing.T) {
	p := NewPredictor(config.DefaultETA())
	in := Input{Tier1: 10, Tier3: 1, Workload: 1}

	pickup := p.Predict(in)
	in.DeliveryType = domain.DeliveryDelivery
	delivery := p.Predict(in)

	// pickup raw: -9.74 + 14.172 + 0.87 + 8.53 + 2.89 = 16.722
	assert.Equal(t, 17, pickup.Hours)
	assert.Equal(t, 20, delivery.Hours)
}

func TestWorkloadIsCapped(t *testing.T) {
	p := NewPredictor(config.DefaultETA())

	assert.Equal(t, 1.75, p.Workload(NearbyCounts{SameDay: 1, PriorDay: 1, Earlier: 1}))
	assert.Equal(t, 5.0, p.Workload(NearbyCounts{SameDay: 9}))
	assert.Equal(t, 0.0, p.Workload(NearbyCounts{}))
}

func TestTiers(t *testing.T) {
	products := map[string]*domain.Product{
		"easy":  {ID: "easy", Difficulty: 1},
		"mid":   {ID: "mid", Difficulty: 2},
		"hard":  {ID: "hard", Difficulty: 3},
		"weird": {ID: "weird", Difficulty: 7},
	}
	items := []domain.LineItem{
		{ProductID: "easy", Quantity: 4},
		{ProductID: "mid", Quantity: 2},
		{ProductID: "hard", Quantity: 1},
		{ProductID: "weird", Quantity: 1},
		{ProductID: "unknown", Quantity: 3},
	}

	t1, t2, t3 := Tiers(items, products)

	assert.Equal(t, 7, t1)
	assert.Equal(t, 2, t2)
	assert.Equal(t, 2, t3)
}

func TestBucket(t *testing.T) {
	requested := time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC)
	var c NearbyCounts

	Bucket(requested, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), &c)
	Bucket(requested, time.Date(2026, 6, 10, 23, 0, 0, 0, time.UTC), &c)
	Bucket(requested, time.Date(2026, 6, 9, 8, 0, 0, 0, time.UTC), &c)
	Bucket(requested, time.Date(2026, 6, 8, 8, 0, 0, 0, time.UTC), &c)
	Bucket(requested, time.Date(2026, 6, 7, 23, 59, 0, 0, time.UTC), &c)
	Bucket(requested, time.Date(2026, 6, 11, 0, 0, 0, 0, time.UTC), &c)

	assert.Equal(t, NearbyCounts{SameDay: 2, PriorDay: 1, Earlier: 1}, c)
}
