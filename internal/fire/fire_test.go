package fire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertFinite(t *testing.T, p Projection) {
	t.Helper()
	for name, v := range map[string]float64{
		"goal":     p.Goal,
		"savings":  p.AnnualSavings,
		"years":    p.YearsToFire,
		"fireAge":  p.FireAge,
		"progress": p.ProgressPct,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s is %v", name, v)
	}
	for _, pt := range p.NetWorth {
		assert.False(t, math.IsNaN(pt.NetWorth) || math.IsInf(pt.NetWorth, 0), "year %d is %v", pt.Year, pt.NetWorth)
	}
}

func TestProject_Defaults(t *testing.T) {
	proj := Project(DefaultParameters())

	assert.InDelta(t, 10_000_000, proj.Goal, 1e-6)
	assert.InDelta(t, 210_000, proj.AnnualSavings, 1e-6)
	assert.InDelta(t, 47.619, proj.YearsToFire, 0.001)
	assert.InDelta(t, 75.619, proj.FireAge, 0.001)
	assert.Equal(t, 76, proj.RoundedFireAge())
	assert.InDelta(t, 2.1, proj.ProgressPct, 1e-9)
	assert.True(t, proj.Reachable)
}

func TestProject_SeriesShape(t *testing.T) {
	for _, p := range []Parameters{
		DefaultParameters(),
		{CurrentAge: 40, AnnualIncome: 0, AnnualExpense: 10, SavingsRatePct: 50, InvestmentReturnPct: 3, WithdrawalRatePct: 4},
		{CurrentAge: 1, AnnualIncome: 1e9, AnnualExpense: 0, SavingsRatePct: 80, InvestmentReturnPct: 15, WithdrawalRatePct: 0},
	} {
		proj := Project(p)
		require.Len(t, proj.NetWorth, Horizon)
		assert.Equal(t, p.CurrentAge, proj.NetWorth[0].Year)
		assert.Equal(t, 0.0, proj.NetWorth[0].NetWorth)
		for i := 1; i < Horizon; i++ {
			assert.Equal(t, proj.NetWorth[i-1].Year+1, proj.NetWorth[i].Year)
		}
	}
}

func TestProject_SeriesFormula(t *testing.T) {
	proj := Project(DefaultParameters())
	// 210000 * 2 * 1.07^2
	assert.InDelta(t, 480_858, proj.NetWorth[2].NetWorth, 0.01)
	assert.InDelta(t, 210_000*19*math.Pow(1.07, 19), proj.NetWorth[19].NetWorth, 0.01)
}

func TestProject_ZeroSavings(t *testing.T) {
	cases := []Parameters{
		{CurrentAge: 30, AnnualIncome: 500000, AnnualExpense: 300000, SavingsRatePct: 0, InvestmentReturnPct: 7, WithdrawalRatePct: 4},
		{CurrentAge: 30, AnnualIncome: 0, AnnualExpense: 300000, SavingsRatePct: 30, InvestmentReturnPct: 7, WithdrawalRatePct: 4},
	}
	for _, p := range cases {
		proj := Project(p)
		assertFinite(t, proj)
		assert.False(t, proj.Reachable)
		assert.Equal(t, 0.0, proj.YearsToFire)
		assert.Equal(t, 30.0, proj.FireAge)
		assert.Equal(t, 0.0, proj.ProgressPct)
		for _, pt := range proj.NetWorth {
			assert.Equal(t, 0.0, pt.NetWorth)
		}
	}
}

func TestProject_ZeroWithdrawal(t *testing.T) {
	p := DefaultParameters()
	p.WithdrawalRatePct = 0
	proj := Project(p)

	assertFinite(t, proj)
	assert.False(t, proj.Reachable)
	assert.Equal(t, 0.0, proj.Goal)
	assert.Equal(t, 0.0, proj.ProgressPct)
}

func TestProject_NoExpenses(t *testing.T) {
	p := DefaultParameters()
	p.AnnualExpense = 0
	proj := Project(p)

	assertFinite(t, proj)
	assert.True(t, proj.Reachable)
	assert.Equal(t, 0.0, proj.YearsToFire)
	assert.Equal(t, float64(p.CurrentAge), proj.FireAge)
	assert.Equal(t, 100.0, proj.ProgressPct)
}

func TestProject_NonFiniteInputs(t *testing.T) {
	p := DefaultParameters()
	p.AnnualIncome = math.Inf(1)
	assertFinite(t, Project(p))

	p = DefaultParameters()
	p.InvestmentReturnPct = math.NaN()
	assertFinite(t, Project(p))
}

func TestProject_RecomputesOnEveryInput(t *testing.T) {
	base := Project(DefaultParameters())

	mutations := map[string]func(*Parameters){
		"income":     func(p *Parameters) { p.AnnualIncome = 900000 },
		"expense":    func(p *Parameters) { p.AnnualExpense = 300000 },
		"savings":    func(p *Parameters) { p.SavingsRatePct = 50 },
		"withdrawal": func(p *Parameters) { p.WithdrawalRatePct = 3 },
		"return":     func(p *Parameters) { p.InvestmentReturnPct = 12 },
		"age":        func(p *Parameters) { p.CurrentAge = 35 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := DefaultParameters()
			mutate(&p)
			assert.NotEqual(t, base, Project(p))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 10.0, ClampSavingsRate(2))
	assert.Equal(t, 80.0, ClampSavingsRate(95))
	assert.Equal(t, 33.0, ClampSavingsRate(32.6))
	assert.Equal(t, 10.0, ClampSavingsRate(math.NaN()))
	assert.Equal(t, 3.0, ClampInvestmentReturn(0))
	assert.Equal(t, 15.0, ClampInvestmentReturn(40))
	assert.Equal(t, 7.0, ClampInvestmentReturn(7))
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultParameters().Validate())

	p := DefaultParameters()
	p.CurrentAge = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidAge)

	p = DefaultParameters()
	p.AnnualExpense = -1
	assert.ErrorIs(t, p.Validate(), ErrNegativeAmount)

	p = DefaultParameters()
	p.WithdrawalRatePct = 120
	assert.ErrorIs(t, p.Validate(), ErrPercentOutOfRange)
}

func TestValidate_StableOrder(t *testing.T) {
	p := Parameters{
		CurrentAge:          0,
		SavingsRatePct:      -5,
		InvestmentReturnPct: 200,
		WithdrawalRatePct:   101,
	}
	want := "current age must be positive\n" +
		"savings rate -5: percentages must be between 0 and 100\n" +
		"investment return 200: percentages must be between 0 and 100\n" +
		"withdrawal rate 101: percentages must be between 0 and 100"

	for i := 0; i < 20; i++ {
		require.EqualError(t, p.Validate(), want)
	}
}
