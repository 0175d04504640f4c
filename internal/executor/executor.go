package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/filter"
	"github.com/epaproditus/geo-profile-dashboard/internal/metrics"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/epaproditus/geo-profile-dashboard/internal/notify"
	"github.com/epaproditus/geo-profile-dashboard/internal/recurrence"
	"github.com/epaproditus/geo-profile-dashboard/internal/simplemdm"
	"github.com/epaproditus/geo-profile-dashboard/internal/telemetry"
)

// DefaultWindow is the due-set lookback window.
const DefaultWindow = 15 * time.Minute

// ErrAlreadyRunning is returned when a run is requested while another run is
// still in flight in this process. There is no cross-process lock; deployment
// is single-writer, and this guard only covers the HTTP trigger racing the
// internal poll loop.
var ErrAlreadyRunning = errors.New("executor run already in progress")

// ScheduleStore is the slice of the schedule repository the executor needs.
type ScheduleStore interface {
	FindDue(ctx context.Context, now time.Time, window time.Duration) ([]models.Schedule, error)
	MarkExecuted(ctx context.Context, id int, at time.Time) error
	Reschedule(ctx context.Context, id int, next time.Time) error
}

// LogStore appends api-call log entries.
type LogStore interface {
	Insert(ctx context.Context, e models.APILogEntry) error
}

// DeviceDirectory is the slice of the SimpleMDM client the executor needs.
type DeviceDirectory interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	InstallProfile(ctx context.Context, profileID, deviceID int) (*simplemdm.CallResult, error)
}

// DeviceCache is an optional read-through cache for the device list.
type DeviceCache interface {
	Get(ctx context.Context) ([]models.Device, bool)
	Set(ctx context.Context, devices []models.Device)
}

// Config wires an Executor. Everything is passed explicitly; there is no
// package-level client state.
type Config struct {
	Schedules ScheduleStore
	Logs      LogStore
	MDM       DeviceDirectory
	Cache     DeviceCache // optional
	Notifier  notify.Notifier
	Telemetry telemetry.Pinger
	Window    time.Duration
	Log       *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Executor turns due schedules into profile pushes. One Run processes every
// due schedule concurrently, records a log row per push, updates each schedule
// row exactly once, and never lets one schedule's failure block the others.
type Executor struct {
	schedules ScheduleStore
	logs      LogStore
	mdm       DeviceDirectory
	cache     DeviceCache
	notifier  notify.Notifier
	telemetry telemetry.Pinger
	window    time.Duration
	log       *slog.Logger
	now       func() time.Time

	running atomic.Bool
}

// New returns an Executor for the given config.
func New(cfg Config) *Executor {
	e := &Executor{
		schedules: cfg.Schedules,
		logs:      cfg.Logs,
		mdm:       cfg.MDM,
		cache:     cfg.Cache,
		notifier:  cfg.Notifier,
		telemetry: cfg.Telemetry,
		window:    cfg.Window,
		log:       cfg.Log,
		now:       cfg.Now,
	}
	if e.window == 0 {
		e.window = DefaultWindow
	}
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}
	if e.telemetry == nil {
		e.telemetry = telemetry.Nop{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// ScheduleResult is the outcome of one schedule within a run.
type ScheduleResult struct {
	ScheduleID      int    `json:"scheduleId"`
	Success         bool   `json:"success"`
	TargetedDevices int    `json:"targetedDevices"`
	PushesSucceeded int    `json:"pushesSucceeded"`
	PushesFailed    int    `json:"pushesFailed"`
	Error           string `json:"error,omitempty"`
}

// RunResult summarizes one executor run.
type RunResult struct {
	Executed        int              `json:"executed"`
	Failed          int              `json:"failed"`
	Results         []ScheduleResult `json:"results"`
	ExecutionTimeMS int64            `json:"executionTime"`
}

// Run executes every due schedule once. Fatal errors (due-set query failure,
// overlapping run) are returned; per-schedule errors are folded into the
// result. A run with no due schedules returns an empty result, not an error.
func (e *Executor) Run(ctx context.Context) (*RunResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	started := e.now()
	due, err := e.schedules.FindDue(ctx, started, e.window)
	if err != nil {
		metrics.ExecutorRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("find due schedules: %w", err)
	}

	result := &RunResult{Results: []ScheduleResult{}}
	if len(due) == 0 {
		result.ExecutionTimeMS = time.Since(started).Milliseconds()
		metrics.ExecutorRuns.WithLabelValues("ok").Inc()
		return result, nil
	}

	e.log.Info("executing due schedules", "count", len(due))

	// Schedules run concurrently and independently; a panic or error in one
	// becomes a failed result for that schedule only.
	results := make([]ScheduleResult, len(due))
	var wg sync.WaitGroup
	for i, s := range due {
		wg.Add(1)
		go func(i int, s models.Schedule) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					e.log.Error("schedule execution panicked", "schedule_id", s.ID, "panic", rec)
					results[i] = ScheduleResult{ScheduleID: s.ID, Error: fmt.Sprintf("panic: %v", rec)}
				}
			}()
			results[i] = e.runSchedule(ctx, s, started)
		}(i, s)
	}
	wg.Wait()

	for _, r := range results {
		result.Results = append(result.Results, r)
		if r.Success {
			result.Executed++
			metrics.SchedulesProcessed.WithLabelValues("executed").Inc()
		} else {
			result.Failed++
			metrics.SchedulesProcessed.WithLabelValues("failed").Inc()
		}
	}
	elapsed := time.Since(started)
	result.ExecutionTimeMS = elapsed.Milliseconds()

	metrics.ExecutorRuns.WithLabelValues("ok").Inc()
	metrics.ExecutorRunDuration.Observe(elapsed.Seconds())

	// One telemetry ping per run, after all state transitions. Best effort.
	e.telemetry.Ping(ctx, "run_complete",
		fmt.Sprintf("executed %d schedules, %d failed", result.Executed, result.Failed),
		map[string]float64{
			"executed":    float64(result.Executed),
			"failed":      float64(result.Failed),
			"duration_ms": float64(result.ExecutionTimeMS),
		})

	e.log.Info("executor run complete",
		"executed", result.Executed, "failed", result.Failed, "duration_ms", result.ExecutionTimeMS)
	return result, nil
}

// runSchedule handles one due schedule end to end.
func (e *Executor) runSchedule(ctx context.Context, s models.Schedule, now time.Time) ScheduleResult {
	res := ScheduleResult{ScheduleID: s.ID}

	// Decide the post-execution update before doing anything else. Recurring
	// schedules never get a non-null last_executed_at: they advance start_time
	// and stay null so the next occurrence becomes due on its own.
	var nextTime time.Time
	recurring := false
	if s.IsRecurring() {
		if next, ok := recurrence.Next(s.StartTime, *s.RecurrencePattern, s.RecurrenceDays); ok {
			nextTime = next
			recurring = true
		}
	}

	// Resolve the target device set. A device-fetch failure means an empty
	// target set, not a failed schedule: the empty run still counts as
	// executed so the schedule doesn't re-fire every poll.
	devices, err := e.listDevices(ctx)
	if err != nil {
		e.log.Warn("device fetch failed, continuing with empty target set",
			"schedule_id", s.ID, "err", err)
		devices = nil
	}
	targets := filter.MatchingDevices(s.DeviceFilter, devices)
	res.TargetedDevices = len(targets)

	// Fan out pushes. All are dispatched; each settles on its own.
	if len(targets) > 0 {
		succeeded, failed := e.pushAll(ctx, s, targets)
		res.PushesSucceeded = succeeded
		res.PushesFailed = failed
		e.notifier.Notify(ctx, "Profile pushed",
			fmt.Sprintf("schedule %q pushed profile %d to %d device(s), %d failed",
				s.Name, s.ProfileID, succeeded, failed))
	}

	// Persist the schedule update last. On failure the row keeps its
	// pre-execution state and the next poll retries the whole schedule;
	// that is safe because last_executed_at was never committed.
	if recurring {
		err = e.schedules.Reschedule(ctx, s.ID, nextTime)
	} else {
		err = e.schedules.MarkExecuted(ctx, s.ID, now)
	}
	if err != nil {
		e.log.Error("schedule update failed", "schedule_id", s.ID, "err", err)
		res.Error = fmt.Sprintf("update schedule: %v", err)
		return res
	}

	res.Success = true
	return res
}

// pushAll installs the schedule's profile on every target device concurrently
// and writes one log row per attempt. One device's failure never cancels its
// siblings, and a log insert failure is swallowed.
func (e *Executor) pushAll(ctx context.Context, s models.Schedule, targets []models.Device) (succeeded, failed int) {
	outcomes := make([]bool, len(targets))
	var wg sync.WaitGroup
	for i, d := range targets {
		wg.Add(1)
		go func(i int, d models.Device) {
			defer wg.Done()
			outcomes[i] = e.pushOne(ctx, s, d)
		}(i, d)
	}
	wg.Wait()

	for _, ok := range outcomes {
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func (e *Executor) pushOne(ctx context.Context, s models.Schedule, d models.Device) bool {
	call, err := e.mdm.InstallProfile(ctx, s.ProfileID, d.ID)

	entry := models.APILogEntry{
		ScheduleID: &s.ID,
		ActionType: models.ActionInstallProfile,
		ProfileID:  s.ProfileID,
		DeviceID:   d.ID,
		Success:    err == nil,
	}
	if call != nil {
		entry.RequestMethod = call.Method
		entry.RequestURL = call.URL
		entry.ResponseStatus = call.Status
		entry.ResponseBody = call.Body
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
		e.log.Warn("profile push failed",
			"schedule_id", s.ID, "profile_id", s.ProfileID, "device_id", d.ID, "err", err)
	}
	if logErr := e.logs.Insert(ctx, entry); logErr != nil {
		e.log.Warn("api log insert failed", "schedule_id", s.ID, "device_id", d.ID, "err", logErr)
	}
	metrics.RecordPush(models.ActionInstallProfile, err == nil)
	return err == nil
}

func (e *Executor) listDevices(ctx context.Context) ([]models.Device, error) {
	if e.cache != nil {
		if devices, ok := e.cache.Get(ctx); ok {
			return devices, nil
		}
	}
	devices, err := e.mdm.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(ctx, devices)
	}
	return devices, nil
}
