package main

import (
	"log/slog"
	"time"

	"github.com/ladle-app/ladle/internal/auth"
	"github.com/ladle-app/ladle/internal/buildinfo"
	"github.com/ladle-app/ladle/internal/grocery"
	"github.com/ladle-app/ladle/internal/planner"
)

// statsAdapter implements mqtt.StatsSource over the domain stores.
// Query failures are reported as zero so a transient database error
// doesn't take the whole publish loop down.
type statsAdapter struct {
	planner *planner.Store
	grocery *grocery.Store
	auth    *auth.Store
	logger  *slog.Logger
}

func (a *statsAdapter) Uptime() time.Duration { return buildinfo.Uptime() }
func (a *statsAdapter) Version() string       { return buildinfo.Version }

func (a *statsAdapter) MealsPlannedToday() int {
	today := time.Now().Format(planner.DateFormat)
	n, err := a.planner.CountAllOnDate(today)
	if err != nil {
		a.logger.Debug("meals planned count failed", "error", err)
		return 0
	}
	return n
}

func (a *statsAdapter) OpenGroceryItems() int {
	n, err := a.grocery.OpenItemCount()
	if err != nil {
		a.logger.Debug("open grocery item count failed", "error", err)
		return 0
	}
	return n
}

func (a *statsAdapter) ActiveHouseholds() int {
	n, err := a.auth.ActiveHouseholdCount()
	if err != nil {
		a.logger.Debug("active household count failed", "error", err)
		return 0
	}
	return n
}
