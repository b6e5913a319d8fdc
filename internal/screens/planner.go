package screens

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"fintrack/internal/fire"
)

// Planner keeps the FIRE inputs for one session. Any change recomputes the
// whole projection.
type Planner struct {
	mu     sync.RWMutex
	params fire.Parameters
	proj   fire.Projection
}

// NewPlanner starts from p.
func NewPlanner(p fire.Parameters) *Planner {
	return &Planner{params: p, proj: fire.Project(p)}
}

// Snapshot returns the inputs and the projection derived from them.
func (pl *Planner) Snapshot() (fire.Parameters, fire.Projection) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return pl.params, pl.proj
}

func (pl *Planner) update(fn func(p *fire.Parameters)) fire.Projection {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fn(&pl.params)
	pl.proj = fire.Project(pl.params)
	return pl.proj
}

func (pl *Planner) SetCurrentAge(age int) fire.Projection {
	return pl.update(func(p *fire.Parameters) { p.CurrentAge = age })
}

func (pl *Planner) SetAnnualIncome(v float64) fire.Projection {
	return pl.update(func(p *fire.Parameters) { p.AnnualIncome = v })
}

func (pl *Planner) SetAnnualExpense(v float64) fire.Projection {
	return pl.update(func(p *fire.Parameters) { p.AnnualExpense = v })
}

// SetSavingsRate snaps v into the slider domain.
func (pl *Planner) SetSavingsRate(v float64) fire.Projection {
	return pl.update(func(p *fire.Parameters) { p.SavingsRatePct = fire.ClampSavingsRate(v) })
}

// SetInvestmentReturn snaps v into the slider domain.
func (pl *Planner) SetInvestmentReturn(v float64) fire.Projection {
	return pl.update(func(p *fire.Parameters) { p.InvestmentReturnPct = fire.ClampInvestmentReturn(v) })
}

func (pl *Planner) SetWithdrawalRate(v float64) fire.Projection {
	return pl.update(func(p *fire.Parameters) { p.WithdrawalRatePct = v })
}

// PlannerInput is the raw text of the planner form. Empty fields keep their
// current value.
type PlannerInput struct {
	CurrentAge       string
	AnnualIncome     string
	AnnualExpense    string
	SavingsRate      string
	InvestmentReturn string
	WithdrawalRate   string
}

// Apply parses every field first and only then commits. On any parse or
// validation error the planner is left untouched.
func (pl *Planner) Apply(in PlannerInput) (fire.Projection, error) {
	pl.mu.RLock()
	next := pl.params
	pl.mu.RUnlock()

	if s := strings.TrimSpace(in.CurrentAge); s != "" {
		age, err := strconv.Atoi(s)
		if err != nil {
			return fire.Projection{}, fmt.Errorf("current age %q: %w", s, fire.ErrInvalidAge)
		}
		next.CurrentAge = age
	}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"annual income", in.AnnualIncome, &next.AnnualIncome},
		{"annual expense", in.AnnualExpense, &next.AnnualExpense},
		{"savings rate", in.SavingsRate, &next.SavingsRatePct},
		{"investment return", in.InvestmentReturn, &next.InvestmentReturnPct},
		{"withdrawal rate", in.WithdrawalRate, &next.WithdrawalRatePct},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		v, err := parseNumber(f.raw)
		if err != nil {
			return fire.Projection{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if in.SavingsRate != "" {
		next.SavingsRatePct = fire.ClampSavingsRate(next.SavingsRatePct)
	}
	if in.InvestmentReturn != "" {
		next.InvestmentReturnPct = fire.ClampInvestmentReturn(next.InvestmentReturnPct)
	}
	if err := next.Validate(); err != nil {
		return fire.Projection{}, err
	}

	return pl.update(func(p *fire.Parameters) { *p = next }), nil
}

// parseNumber accepts grouped input such as "7,00,000" or "700 000".
func parseNumber(s string) (float64, error) {
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(strings.TrimSpace(s))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return v, nil
}
