package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hackgods/voice-appointment-engine/internal/calendar"
	"github.com/hackgods/voice-appointment-engine/internal/config"
	"github.com/hackgods/voice-appointment-engine/internal/db"
	"github.com/hackgods/voice-appointment-engine/internal/identity"
	"github.com/hackgods/voice-appointment-engine/internal/slot"
	"github.com/hackgods/voice-appointment-engine/pkg/logging"
)

var departments = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var languages = []string{"english", "hindi", "tamil", "telugu"}

type doctor struct {
	name       string
	department string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("error", false)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(0)

	doctors := make([]doctor, getInt("SEED_DOCTORS", 20))
	for i := range doctors {
		doctors[i] = doctor{
			name:       "Dr. " + gofakeit.LastName(),
			department: departments[gofakeit.Number(0, len(departments)-1)],
		}
	}

	patients, err := seedPatients(context.Background(), identity.NewPgDirectory(pool), doctors, getInt("SEED_PATIENTS", 500), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	cal := calendar.NewPgProvider(pool, cfg.Location)
	if err := seedEvents(context.Background(), cal, cfg, patients, doctors, getInt("SEED_EVENTS", 200), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed calendar events")
	}

	logger.Info().Msg("seed complete")
}

func seedPatients(ctx context.Context, dir *identity.PgDirectory, doctors []doctor, count int, logger zerolog.Logger) ([]identity.PatientRecord, error) {
	logger.Info().Int("count", count).Msg("seeding patients")

	now := time.Now()
	out := make([]identity.PatientRecord, 0, count)
	for i := 0; i < count; i++ {
		doc := doctors[gofakeit.Number(0, len(doctors)-1)]
		lastVisit := gofakeit.DateRange(now.AddDate(-2, 0, 0), now)

		rec := identity.PatientRecord{
			Phone:           "+1" + gofakeit.Phone(),
			Name:            gofakeit.Name(),
			Email:           gofakeit.Email(),
			LastVisit:       lastVisit.Format(slot.DateFormat),
			PreferredDoctor: doc.name,
			Department:      doc.department,
			Language:        languages[gofakeit.Number(0, len(languages)-1)],
			CustomerType:    string(identity.CustomerReturning),
			CreatedAt:       lastVisit,
			UpdatedAt:       now,
		}
		if err := dir.Upsert(ctx, rec); err != nil {
			return nil, err
		}
		out = append(out, rec)

		if (i+1)%100 == 0 {
			logger.Info().Int("done", i+1).Int("total", count).Msg("patients seeded")
		}
	}
	return out, nil
}

// seedEvents books random grid slots over the next working days. Slots that
// are already taken are skipped.
func seedEvents(ctx context.Context, cal calendar.Provider, cfg config.Config, patients []identity.PatientRecord, doctors []doctor, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding calendar events")

	sched := cfg.Scheduling
	slotsPerDay := int((sched.WorkdayEnd - sched.WorkdayStart) / sched.SlotStep)
	if slotsPerDay <= 0 || len(patients) == 0 {
		return errors.New("nothing to seed: empty workday or no patients")
	}

	today, _ := slot.DayBounds(time.Now().In(cfg.Location))
	created, skipped := 0, 0
	for attempt := 0; created < count && attempt < count*4; attempt++ {
		day := today.AddDate(0, 0, gofakeit.Number(1, sched.SearchHorizonDays))
		if slot.IsWeekend(day) {
			continue
		}
		offset := sched.WorkdayStart + time.Duration(gofakeit.Number(0, slotsPerDay-1))*sched.SlotStep
		s := slot.New(slot.At(day, offset), sched.BookingDuration)
		if s.End.After(slot.At(day, sched.WorkdayEnd)) {
			continue
		}

		p := patients[gofakeit.Number(0, len(patients)-1)]
		d := doctors[gofakeit.Number(0, len(doctors)-1)]
		_, err := cal.CreateEvent(ctx, calendar.Event{
			Title: fmt.Sprintf("Appointment: %s - %s", p.Name, d.name),
			Description: fmt.Sprintf("Patient: %s\nPhone: %s\nEmail: %s\nDoctor: %s\nDepartment: %s\n\nSeeded",
				p.Name, p.Phone, p.Email, d.name, d.department),
			Location:      cfg.FacilityName,
			Start:         s.Start,
			End:           s.End,
			AttendeeEmail: p.Email,
		})
		if errors.Is(err, calendar.ErrSlotConflict) {
			skipped++
			continue
		}
		if err != nil {
			return err
		}
		created++
	}

	logger.Info().Int("created", created).Int("skipped", skipped).Msg("calendar events seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
