package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/voice-appointment-engine/internal/config"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Callers      int     // distinct caller phones, fewer means more returning callers
	CancelRatio  float64 // share of calls that cancel instead of book
	HorizonDays  int
	WorkdayStart time.Duration
	WorkdayEnd   time.Duration
	SlotStep     time.Duration
	Location     *time.Location
}

type caller struct {
	phone string
	name  string
	email string
}

// booked remembers appointments made during the run so later calls can cancel them.
type booked struct {
	caller caller
	doctor string
	date   string
	time   string
}

type DataPool struct {
	Callers  []caller
	Doctors  [][2]string // name, department
	mu       sync.Mutex
	bookings []booked
}

func (dp *DataPool) AddBooking(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

// TakeBooking removes and returns a random booking.
func (dp *DataPool) TakeBooking(rng *rand.Rand) (booked, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.bookings) == 0 {
		return booked{}, false
	}
	idx := rng.Intn(len(dp.bookings))
	b := dp.bookings[idx]
	dp.bookings[idx] = dp.bookings[len(dp.bookings)-1]
	dp.bookings = dp.bookings[:len(dp.bookings)-1]
	return b, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Session      OperationMetrics
	Identity     OperationMetrics
	Availability OperationMetrics
	Booking      OperationMetrics
	Cancel       OperationMetrics
	Log          OperationMetrics
	End          OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	cfg, logger := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Int("callers", cfg.Callers).
		Float64("cancel_ratio", cfg.CancelRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		pool:   newDataPool(cfg.Callers),
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, zerolog.Logger) {
	baseCfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("error", false)
		bootLogger.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.LogLevel, baseCfg.LogPretty).With().Str("service", "simulate").Logger()

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Callers:      getInt("SIM_CALLERS", 200),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.2),
		HorizonDays:  baseCfg.Scheduling.SearchHorizonDays,
		WorkdayStart: baseCfg.Scheduling.WorkdayStart,
		WorkdayEnd:   baseCfg.Scheduling.WorkdayEnd,
		SlotStep:     baseCfg.Scheduling.SlotStep,
		Location:     baseCfg.Location,
	}
	return cfg, logger
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Callers <= 0 {
		return fmt.Errorf("SIM_CALLERS must be > 0")
	}
	if cfg.CancelRatio < 0 || cfg.CancelRatio > 1 {
		return fmt.Errorf("SIM_CANCEL_RATIO must be within [0, 1]")
	}
	return nil
}

func newDataPool(callers int) *DataPool {
	gofakeit.Seed(0)

	dp := &DataPool{}
	for i := 0; i < callers; i++ {
		dp.Callers = append(dp.Callers, caller{
			phone: "+1" + gofakeit.Phone(),
			name:  gofakeit.Name(),
			email: gofakeit.Email(),
		})
	}
	for _, dept := range []string{"Cardiology", "Dermatology", "Neurology", "Pediatrics", "ENT"} {
		dp.Doctors = append(dp.Doctors, [2]string{"Dr. " + gofakeit.LastName(), dept})
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		s.call(ctx, rng)
	}
}

// call plays one phone call end to end: open the session, identify the
// caller, then either cancel an earlier booking or check and book a slot,
// log the call and hang up.
func (s *Simulator) call(ctx context.Context, rng *rand.Rand) {
	sessionID := uuid.NewString()
	c := s.pool.Callers[rng.Intn(len(s.pool.Callers))]

	if !s.post(ctx, &s.metrics.Session, "/sessions", map[string]string{"session_id": sessionID, "caller_phone": c.phone}, nil, http.StatusCreated) {
		return
	}
	defer s.post(context.WithoutCancel(ctx), &s.metrics.End, "/sessions/"+sessionID+"/end", map[string]string{"reason": "hangup"}, nil, http.StatusOK)

	s.post(ctx, &s.metrics.Identity, "/sessions/"+sessionID+"/identity", map[string]string{"name": c.name}, nil, http.StatusOK)

	callType, summary := "appointment_booking", "Caller booked an appointment"
	if rng.Float64() < s.config.CancelRatio {
		if b, ok := s.pool.TakeBooking(rng); ok {
			callType, summary = "appointment_cancellation", "Caller cancelled an appointment"
			s.post(ctx, &s.metrics.Cancel, "/sessions/"+sessionID+"/cancellations", map[string]string{
				"patient_name":  b.caller.name,
				"patient_email": b.caller.email,
				"doctor_name":   b.doctor,
				"date":          b.date,
				"time":          b.time,
			}, nil, http.StatusOK)
		}
	}

	if callType == "appointment_booking" && !s.book(ctx, rng, sessionID, c) {
		summary = "Caller could not find a suitable slot"
	}

	s.post(ctx, &s.metrics.Log, "/sessions/"+sessionID+"/log", map[string]string{
		"customer_name": c.name,
		"call_type":     callType,
		"summary":       summary,
	}, nil, http.StatusNoContent)
}

func (s *Simulator) book(ctx context.Context, rng *rand.Rand, sessionID string, c caller) bool {
	date, clock := s.randomSlot(rng)

	var avail struct {
		Available    bool `json:"available"`
		Alternatives []struct {
			Date string `json:"date"`
			Time string `json:"time"`
		} `json:"alternatives"`
	}
	if !s.post(ctx, &s.metrics.Availability, "/sessions/"+sessionID+"/availability", map[string]string{"date": date, "time": clock}, &avail, http.StatusOK) {
		return false
	}
	if !avail.Available {
		if len(avail.Alternatives) == 0 {
			return false
		}
		alt := avail.Alternatives[rng.Intn(len(avail.Alternatives))]
		date, clock = alt.Date, alt.Time
	}

	doc := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	var res struct {
		Booked bool `json:"booked"`
	}
	ok := s.post(ctx, &s.metrics.Booking, "/sessions/"+sessionID+"/bookings", map[string]any{
		"patient": map[string]string{"name": c.name, "email": c.email},
		"doctor":  map[string]string{"name": doc[0], "department": doc[1]},
		"date":    date,
		"time":    clock,
	}, &res, http.StatusCreated)
	if ok && res.Booked {
		s.pool.AddBooking(booked{caller: c, doctor: doc[0], date: date, time: clock})
		return true
	}
	return false
}

// randomSlot picks a grid slot on one of the next working days.
func (s *Simulator) randomSlot(rng *rand.Rand) (string, string) {
	today, _ := slot.DayBounds(time.Now().In(s.config.Location))
	day := today.AddDate(0, 0, 1+rng.Intn(s.config.HorizonDays))
	for slot.IsWeekend(day) {
		day = day.AddDate(0, 0, 1)
	}
	steps := int((s.config.WorkdayEnd - s.config.WorkdayStart) / s.config.SlotStep)
	start := slot.At(day, s.config.WorkdayStart+time.Duration(rng.Intn(max(steps, 1)))*s.config.SlotStep)
	return start.Format(slot.DateFormat), start.Format(slot.TimeFormat)
}

// post sends a JSON request. A 200 on a booking that returned alternatives
// counts as a conflict, any other unexpected status as an error.
func (s *Simulator) post(ctx context.Context, om *OperationMetrics, path string, body, out any, want int) bool {
	payload, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, false, false)
			s.logger.Debug().Err(err).Str("path", path).Msg("request failed")
		}
		return false
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}

	success := resp.StatusCode == want
	conflict := !success && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound)
	om.Record(latency, success, conflict)
	return success || (conflict && resp.StatusCode == http.StatusOK)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Start session", &s.metrics.Session)
	printOperationReport("Resolve caller", &s.metrics.Identity)
	printOperationReport("Check availability", &s.metrics.Availability)
	printOperationReport("Book", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Log call", &s.metrics.Log)
	printOperationReport("End session", &s.metrics.End)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Taken / not found: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}
