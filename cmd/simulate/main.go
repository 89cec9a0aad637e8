// Command simulate drives concurrent booking load against a running
// api-server to demonstrate the exclusivity guarantee: many workers
// fight over the same provider slots and the report shows exactly one
// winner per slot, the rest receiving overlap conflicts.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turnomed/scheduling-engine/internal/config"
	"github.com/turnomed/scheduling-engine/internal/db"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Providers   int
	SlotMinutes int
	PostgresDSN string
}

type providerTarget struct {
	ProviderID  uuid.UUID
	SpecialtyID uuid.UUID
	Slots       []time.Time
}

type DataPool struct {
	Patients []uuid.UUID
	Targets  []providerTarget
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	booking OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	dataPool, err := sim.loadDataPool(ctx, pgPool)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = dataPool

	totalSlots := 0
	for _, t := range dataPool.Targets {
		totalSlots += len(t.Slots)
	}
	log.Printf("loaded: %d patients, %d providers, %d open slots",
		len(dataPool.Patients), len(dataPool.Targets), totalSlots)

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:    getDuration("SIM_DURATION", 30*time.Second),
		Workers:     getInt("SIM_WORKERS", 10),
		Providers:   getInt("SIM_PROVIDERS", 5),
		SlotMinutes: getInt("SIM_SLOT_MINUTES", 30),
		PostgresDSN: baseCfg.PostgresDSN,
	}
}

// loadDataPool picks a handful of providers with their specialties and
// asks the API for tomorrow's open slots of each. A small provider set
// concentrates contention, which is the point of the exercise.
func (s *Simulator) loadDataPool(ctx context.Context, pool *pgxpool.Pool) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 4000`)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	provRows, err := pool.Query(ctx, `
		SELECT DISTINCT ON (p.id) p.id, ps.specialty_id
		FROM providers p
		JOIN provider_specialties ps ON ps.provider_id = p.id
		LIMIT $1
	`, s.config.Providers)
	if err != nil {
		return nil, fmt.Errorf("load providers: %w", err)
	}
	defer provRows.Close()

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	for provRows.Next() {
		var target providerTarget
		if err := provRows.Scan(&target.ProviderID, &target.SpecialtyID); err != nil {
			return nil, err
		}

		slots, err := s.fetchSlots(ctx, target.ProviderID, tomorrow)
		if err != nil {
			return nil, fmt.Errorf("fetch slots for %s: %w", target.ProviderID, err)
		}
		target.Slots = slots
		if len(slots) > 0 {
			dp.Targets = append(dp.Targets, target)
		}
	}

	if len(dp.Targets) == 0 {
		return nil, fmt.Errorf("no open slots found for tomorrow")
	}
	return dp, nil
}

func (s *Simulator) fetchSlots(ctx context.Context, providerID uuid.UUID, date string) ([]time.Time, error) {
	url := fmt.Sprintf("%s/providers/%s/slots?date=%s&duration=%d",
		s.config.APIBaseURL, providerID, date, s.config.SlotMinutes)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("slots endpoint returned %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Slots []time.Time `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.doBooking(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	target := s.pool.Targets[rng.Intn(len(s.pool.Targets))]
	slot := target.Slots[rng.Intn(len(target.Slots))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	reqBody := map[string]any{
		"provider_id":      target.ProviderID.String(),
		"patient_id":       patientID.String(),
		"specialty_id":     target.SpecialtyID.String(),
		"starts_at":        slot.Format(time.RFC3339),
		"duration_minutes": s.config.SlotMinutes,
	}
	body, _ := json.Marshal(reqBody)

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		success = resp.StatusCode == http.StatusCreated
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.booking.Record(latency, success, conflict)
}

func (s *Simulator) PrintReport() {
	total := atomic.LoadInt64(&s.booking.Total)
	if total == 0 {
		fmt.Println("no bookings attempted")
		return
	}

	success := atomic.LoadInt64(&s.booking.Success)
	conflict := atomic.LoadInt64(&s.booking.Conflict)
	errs := atomic.LoadInt64(&s.booking.Error)
	avg, p50, p95 := s.booking.Stats()

	fmt.Println("\nSIMULATION REPORT")
	fmt.Printf("Duration: %s  Workers: %d\n", s.config.Duration, s.config.Workers)
	fmt.Printf("Bookings: total=%d success=%d (%.1f%%) conflicts=%d (%.1f%%) errors=%d\n",
		total, success, pct(success, total), conflict, pct(conflict, total), errs)
	fmt.Printf("Latency: avg=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func pct(part, total int64) float64 {
	return float64(part) / float64(total) * 100
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
