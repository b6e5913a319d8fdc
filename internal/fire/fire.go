// Package fire implements the financial-independence projection: the nest egg
// needed to live off withdrawals, the age at which it is reached, and a
// simplified net-worth curve.
package fire

import (
	"errors"
	"fmt"
	"math"
)

// Horizon is the number of points in the net-worth series.
const Horizon = 20

// Slider domains for the planner controls.
const (
	MinSavingsRate       = 10
	MaxSavingsRate       = 80
	MinInvestmentReturn  = 3
	MaxInvestmentReturn  = 15
	DefaultWithdrawalPct = 4
)

var (
	ErrInvalidAge        = errors.New("current age must be positive")
	ErrNegativeAmount    = errors.New("income and expense cannot be negative")
	ErrPercentOutOfRange = errors.New("percentages must be between 0 and 100")
)

// Parameters are the user-editable inputs. They live only as long as the
// planner that holds them.
type Parameters struct {
	CurrentAge          int     `json:"current_age"`
	AnnualIncome        float64 `json:"annual_income"`
	AnnualExpense       float64 `json:"annual_expense"`
	SavingsRatePct      float64 `json:"savings_rate_pct"`
	InvestmentReturnPct float64 `json:"investment_return_pct"`
	WithdrawalRatePct   float64 `json:"withdrawal_rate_pct"`
}

// DefaultParameters returns the planner's starting values.
func DefaultParameters() Parameters {
	return Parameters{
		CurrentAge:          28,
		AnnualIncome:        700000,
		AnnualExpense:       400000,
		SavingsRatePct:      30,
		InvestmentReturnPct: 7,
		WithdrawalRatePct:   DefaultWithdrawalPct,
	}
}

// Validate reports input that the form should reject. Project accepts any
// input regardless.
func (p Parameters) Validate() error {
	var errs []error
	if p.CurrentAge <= 0 {
		errs = append(errs, ErrInvalidAge)
	}
	if p.AnnualIncome < 0 || p.AnnualExpense < 0 {
		errs = append(errs, ErrNegativeAmount)
	}
	percents := []struct {
		name string
		v    float64
	}{
		{"savings rate", p.SavingsRatePct},
		{"investment return", p.InvestmentReturnPct},
		{"withdrawal rate", p.WithdrawalRatePct},
	}
	for _, pc := range percents {
		if pc.v < 0 || pc.v > 100 || math.IsNaN(pc.v) {
			errs = append(errs, fmt.Errorf("%s %v: %w", pc.name, pc.v, ErrPercentOutOfRange))
		}
	}
	return errors.Join(errs...)
}

// ClampSavingsRate snaps a slider value into [MinSavingsRate, MaxSavingsRate].
func ClampSavingsRate(v float64) float64 {
	return clampStep(v, MinSavingsRate, MaxSavingsRate)
}

// ClampInvestmentReturn snaps a slider value into [MinInvestmentReturn, MaxInvestmentReturn].
func ClampInvestmentReturn(v float64) float64 {
	return clampStep(v, MinInvestmentReturn, MaxInvestmentReturn)
}

func clampStep(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	v = math.Round(v)
	return math.Min(hi, math.Max(lo, v))
}

// Point is one year of the net-worth series.
type Point struct {
	Year     int     `json:"year"`
	NetWorth float64 `json:"net_worth"`
}

// Projection is derived from Parameters and recomputed wholesale on every
// change. No field is ever NaN or infinite.
type Projection struct {
	Goal          float64 `json:"fire_goal"`
	AnnualSavings float64 `json:"annual_savings"`
	YearsToFire   float64 `json:"years_to_fire"`
	FireAge       float64 `json:"fire_age"`
	ProgressPct   float64 `json:"progress_pct"`
	Reachable     bool    `json:"reachable"`
	NetWorth      []Point `json:"net_worth"`
}

// RoundedFireAge is FireAge rounded half away from zero.
func (p Projection) RoundedFireAge() int {
	return int(math.Round(p.FireAge))
}

// Project computes the projection for p.
//
//	goal     = expense * 100 / withdrawal
//	savings  = income * savingsRate / 100
//	years    = goal / savings
//	fireAge  = age + years
//	progress = savings / goal * 100
//	worth[i] = savings * i * (1 + return/100)^i   for i in [0, Horizon)
//
// The series scales one year's savings by i before compounding. It is not an
// annuity future value and must stay that way.
func Project(p Parameters) Projection {
	proj := Projection{
		AnnualSavings: finite(p.AnnualIncome * p.SavingsRatePct / 100),
		FireAge:       float64(p.CurrentAge),
	}

	goalDefined := p.WithdrawalRatePct > 0
	if goalDefined {
		proj.Goal = finite(p.AnnualExpense * 100 / p.WithdrawalRatePct)
	}

	switch {
	case !goalDefined, proj.AnnualSavings <= 0:
		// unreachable: years, progress stay zero
	case proj.Goal <= 0:
		proj.ProgressPct = 100
		proj.Reachable = true
	default:
		proj.YearsToFire = finite(proj.Goal / proj.AnnualSavings)
		proj.FireAge = finite(float64(p.CurrentAge) + proj.YearsToFire)
		proj.ProgressPct = finite(proj.AnnualSavings / proj.Goal * 100)
		proj.Reachable = true
	}

	proj.NetWorth = series(p.CurrentAge, proj.AnnualSavings, p.InvestmentReturnPct)
	return proj
}

func series(age int, savings, returnPct float64) []Point {
	growth := 1 + returnPct/100
	points := make([]Point, Horizon)
	for i := range points {
		points[i] = Point{
			Year:     age + i,
			NetWorth: finite(savings * float64(i) * math.Pow(growth, float64(i))),
		}
	}
	return points
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
