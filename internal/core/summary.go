package core

import (
	"math"
)

type (
	// CategoryAmount is an amount aggregated under one category tag.
	CategoryAmount struct {
		Name   string
		Amount Money
	}

	// MonthSummary aggregates a month's ledger: per-type totals, the net
	// value, and the expense-side category breakdown that drives
	// proportional displays downstream.
	MonthSummary struct {
		Month      string
		Revenue    Money
		Expense    Money
		Net        Money
		ByCategory []CategoryAmount
	}

	// Progress is goal-attainment for a board's records in one month.
	Progress struct {
		Month          string
		Completed      int
		Pending        int
		GoalPercentage int
	}
)

// Summarize filters transactions to the target YYYY-MM month and aggregates
// them. A month with no transactions yields an all-zero summary with no
// breakdown, never an error. Breakdown entries keep first-seen category
// order so repeated calls over the same input are deterministic.
func Summarize(txns []Transaction, month string) MonthSummary {
	sum := MonthSummary{Month: month}
	index := make(map[string]int)

	for _, t := range txns {
		if MonthKey(t.Date) != month {
			continue
		}
		switch t.Type {
		case Revenue:
			sum.Revenue.Cents += t.Amount.Cents
		case Expense:
			sum.Expense.Cents += t.Amount.Cents
			i, ok := index[t.Category]
			if !ok {
				i = len(sum.ByCategory)
				index[t.Category] = i
				sum.ByCategory = append(sum.ByCategory, CategoryAmount{Name: t.Category})
			}
			sum.ByCategory[i].Amount.Cents += t.Amount.Cents
		}
	}

	sum.Net.Cents = sum.Revenue.Cents - sum.Expense.Cents
	return sum
}

// GoalPercentage is the rounded attainment percentage, clamped to [0, 100].
// A zero or negative goal always yields 0.
func GoalPercentage(completed, goal int) int {
	if goal <= 0 || completed <= 0 {
		return 0
	}
	pct := int(math.Round(float64(completed) / float64(goal) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// MonthProgress counts a board's records for the target month as completed
// (sitting in a terminal column) or pending, and derives goal attainment.
func MonthProgress(b Board, records []Record, month string, goal int) Progress {
	p := Progress{Month: month}
	for _, r := range records {
		if r.Due.MonthKey() != month {
			continue
		}
		if b.IsTerminal(r.Status) {
			p.Completed++
		} else {
			p.Pending++
		}
	}
	p.GoalPercentage = GoalPercentage(p.Completed, goal)
	return p
}
