// Package eta predicts order turnaround in hours from basket composition and
// current shop workload using a fitted linear model.
package eta

import (
	"math"
	"time"

	"orderdesk/internal/config"
	"orderdesk/internal/domain"
)

// Delivery type codes used as the model's categorical input.
const (
	PickupCode   = 1
	DeliveryCode = 2
)

// Input is one prediction request.
type Input struct {
	Tier1        int
	Tier2        int
	Tier3        int
	Workload     float64
	DeliveryType domain.DeliveryType
}

// Estimate is a point prediction with its two-sigma band, in hours.
type Estimate struct {
	Hours    int     `json:"hours"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Workload float64 `json:"workload"`
}

// NearbyCounts are active orders targeting the requested day and the two
// days before it.
type NearbyCounts struct {
	SameDay  int
	PriorDay int
	Earlier  int
}

// Predictor evaluates the model with configured coefficients.
type Predictor struct {
	cfg config.ETAConfig
}

// NewPredictor builds a Predictor.
func NewPredictor(cfg config.ETAConfig) *Predictor {
	return &Predictor{cfg: cfg}
}

// Predict evaluates the model. Hours round half away from zero; the band is
// centered on the rounded value.
func (p *Predictor) Predict(in Input) Estimate {
	raw := p.cfg.Offset +
		p.cfg.Workload*in.Workload +
		p.cfg.Tier1*float64(in.Tier1) +
		p.cfg.Tier2*float64(in.Tier2) +
		p.cfg.Tier3*float64(in.Tier3) +
		p.cfg.DeliveryType*float64(TypeCode(in.DeliveryType))
	hours := math.Round(raw)
	return Estimate{
		Hours:    int(hours),
		Low:      round2(hours - p.cfg.TwoSigma),
		High:     round2(hours + p.cfg.TwoSigma),
		Workload: in.Workload,
	}
}

// Workload turns nearby order counts into a capped severity score.
func (p *Predictor) Workload(c NearbyCounts) float64 {
	score := float64(c.SameDay)*p.cfg.SameDayWeight +
		float64(c.PriorDay)*p.cfg.PriorDayWeight +
		float64(c.Earlier)*p.cfg.EarlierWeight
	return math.Min(p.cfg.MaxSeverity, score)
}

// TypeCode maps a delivery type to the model's categorical code.
func TypeCode(d domain.DeliveryType) int {
	if d == domain.DeliveryDelivery {
		return DeliveryCode
	}
	return PickupCode
}

// Tiers sums item quantities by product difficulty. Unknown products count
// as tier one; difficulties outside 1..3 are clamped.
func Tiers(items []domain.LineItem, products map[string]*domain.Product) (t1, t2, t3 int) {
	for _, item := range items {
		tier := 1
		if p, ok := products[item.ProductID]; ok && p != nil {
			tier = min(max(p.Difficulty, 1), 3)
		}
		switch tier {
		case 1:
			t1 += item.Quantity
		case 2:
			t2 += item.Quantity
		default:
			t3 += item.Quantity
		}
	}
	return t1, t2, t3
}

// Window returns the [from, to) range of target times that count towards
// workload for a requested target: the target's day and the two days before.
func Window(target time.Time) (from, to time.Time) {
	day := startOfDay(target)
	return day.AddDate(0, 0, -2), day.AddDate(0, 0, 1)
}

// Bucket counts orderTarget into c relative to the requested target. Targets
// outside Window(requested) are ignored.
func Bucket(requested, orderTarget time.Time, c *NearbyCounts) {
	from, to := Window(requested)
	if orderTarget.Before(from) || !orderTarget.Before(to) {
		return
	}
	orderDay := startOfDay(orderTarget.In(requested.Location()))
	switch days := int(math.Round(startOfDay(requested).Sub(orderDay).Hours() / 24)); days {
	case 0:
		c.SameDay++
	case 1:
		c.PriorDay++
	default:
		c.Earlier++
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
