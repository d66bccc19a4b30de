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
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/clinic-ops/internal/config"
	"github.com/clinicware/clinic-ops/internal/db"
)

// Contention driver: fires concurrent hold requests at one doctor's
// calendar and concurrent dispatches at one clinic's unit pool, then
// reports how the conflicts were resolved. Exactly one hold per interval
// and at most one emergency per unit should ever win.

type SimConfig struct {
	APIBaseURL    string
	HoldWorkers   int
	DispatchCount int
	PostgresDSN   string
}

type Tally struct {
	Success  int64
	Conflict int64
	Error    int64
}

func (t *Tally) Record(status int) {
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&t.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&t.Conflict, 1)
	default:
		atomic.AddInt64(&t.Error, 1)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadSimConfig()

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	cfg.PostgresDSN = appCfg.PostgresDSN

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, cfg.PostgresDSN, db.Options{MaxConns: 4})
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	var doctorID, clinicID, patientID uuid.UUID
	err = pool.QueryRow(context.Background(), `
		SELECT d.id, d.clinic_id
		FROM doctors d
		JOIN clinics c ON c.id = d.clinic_id
		WHERE d.approval_status = 'approved' AND c.emergency_enabled
		LIMIT 1
	`).Scan(&doctorID, &clinicID)
	if err != nil {
		log.Fatalf("pick doctor: %v (run cmd/seed first)", err)
	}
	if err := pool.QueryRow(context.Background(), `SELECT id FROM patients LIMIT 1`).Scan(&patientID); err != nil {
		log.Fatalf("pick patient: %v (run cmd/seed first)", err)
	}

	log.Printf("hold storm: %d workers, one interval, doctor=%s", cfg.HoldWorkers, doctorID)
	holdTally := runHoldStorm(cfg, doctorID, clinicID, patientID)

	log.Printf("dispatch storm: %d emergencies, clinic=%s", cfg.DispatchCount, clinicID)
	dispatchTally := runDispatchStorm(cfg, clinicID)

	fmt.Println()
	fmt.Println("=== hold storm (same doctor, same interval) ===")
	fmt.Printf("success=%d conflict=%d error=%d\n", holdTally.Success, holdTally.Conflict, holdTally.Error)
	if holdTally.Success > 1 {
		fmt.Println("DOUBLE BOOKING DETECTED: more than one hold won the same interval")
		os.Exit(1)
	}

	fmt.Println("=== dispatch storm ===")
	fmt.Printf("success=%d conflict=%d error=%d\n", dispatchTally.Success, dispatchTally.Conflict, dispatchTally.Error)
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:    "http://localhost:8080",
		HoldWorkers:   20,
		DispatchCount: 10,
	}
	if v := os.Getenv("SIM_API_BASE_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("SIM_HOLD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HoldWorkers = n
		}
	}
	if v := os.Getenv("SIM_DISPATCH_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DispatchCount = n
		}
	}
	return cfg
}

func runHoldStorm(cfg SimConfig, doctorID, clinicID, patientID uuid.UUID) *Tally {
	tally := &Tally{}
	client := &http.Client{Timeout: 10 * time.Second}

	// all workers fight over tomorrow 10:00-10:30
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < cfg.HoldWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"doctor_id":    doctorID.String(),
				"clinic_id":    clinicID.String(),
				"start_time":   start.Format(time.RFC3339),
				"duration_min": 30,
			})

			status, _ := post(client, cfg.APIBaseURL+"/appointments/hold", patientID, "patient", body)
			tally.Record(status)
		}()
	}
	wg.Wait()

	return tally
}

func runDispatchStorm(cfg SimConfig, clinicID uuid.UUID) *Tally {
	tally := &Tally{}
	client := &http.Client{Timeout: 10 * time.Second}
	dispatcherID := uuid.New()

	priorities := []string{"low", "medium", "high", "critical"}

	var wg sync.WaitGroup
	for i := 0; i < cfg.DispatchCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			body, _ := json.Marshal(map[string]any{
				"clinic_id": clinicID.String(),
				"lat":       10.7626 + rand.Float64()*0.1,
				"lon":       106.6602 + rand.Float64()*0.1,
				"priority":  priorities[rand.Intn(len(priorities))],
			})

			status, _ := post(client, cfg.APIBaseURL+"/emergencies/dispatch", dispatcherID, "dispatcher", body)
			tally.Record(status)
		}()
	}
	wg.Wait()

	return tally
}

func post(client *http.Client, url string, principal uuid.UUID, role string, body []byte) (int, []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Principal-ID", principal.String())
	req.Header.Set("X-Principal-Role", role)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}
