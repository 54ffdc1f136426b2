package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"classattend/internal/checkin"
	"classattend/internal/config"
	"classattend/internal/guard"
	"classattend/internal/match"
	"classattend/internal/recorder"
	"classattend/internal/scan"
	"classattend/internal/schedule"
	"classattend/internal/store"
)

// Agent runs one student check-in attempt against the backend. The platform
// Bluetooth stack is out of scope here, so sightings are scripted with
// -beacons, e.g. -beacons "EDB2D681@5s=-54,BlueCharm_199298@8s=-70".
func main() {
	var (
		classID   = flag.String("class", "", "class id to check in to")
		studentID = flag.String("student", "", "student id")
		token     = flag.String("token", os.Getenv("CLASSATTEND_TOKEN"), "bearer token")
		beacons   = flag.String("beacons", "", "scripted advertisements: id@delay=rssi, comma separated")
		radioOff  = flag.Bool("radio-off", false, "simulate a powered-off adapter")
		memCache  = flag.Bool("mem-cache", false, "use the in-memory check-in cache instead of redis")
	)
	flag.Parse()

	cfg := config.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	if *classID == "" || *studentID == "" {
		log.Fatal().Msg("-class and -student are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("cancelled")
		cancel()
	}()

	client := recorder.New(cfg.APIBaseURL, *token)

	info, err := client.Class(ctx, *classID)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch class failed")
	}
	class := checkin.Class{
		ID:   info.ID,
		Name: info.Name,
		Schedule: schedule.Spec{
			Days:      info.Schedule.Days,
			Timezone:  info.Schedule.Timezone,
			StartDate: info.Schedule.StartDate,
			EndDate:   info.Schedule.EndDate,
		},
	}
	if info.BeaconID != nil {
		class.BeaconID = *info.BeaconID
	}

	var cache guard.CheckinCache
	if *memCache {
		cache = guard.NewMemoryCache()
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		cache = guard.NewRedisCache(redisClient.Client, "checkin:"+*studentID)
	}

	flow := &checkin.Flow{
		Radio:        scan.NewReplayRadio(parseScript(*beacons, log), !*radioOff),
		Guard:        guard.New(cache, client, *studentID),
		ScanDuration: cfg.ScanDuration,
		ScanOptions:  scan.Options{RequireName: cfg.RequireName},
		Poller: match.Poller{
			Interval: cfg.PollInterval,
			Config:   match.Config{MaxWait: cfg.MatchMaxWait, MinRSSI: cfg.MinRSSI},
		},
		Log: log,
	}

	result, err := flow.Attempt(ctx, class)
	switch {
	case errors.Is(err, scan.ErrRadioUnavailable):
		log.Error().Msg("bluetooth is unavailable; enable it and retry")
		os.Exit(1)
	case errors.Is(err, guard.ErrUnavailable):
		log.Error().Err(err).Msg("backend unreachable; attendance not recorded, retry later")
		os.Exit(1)
	case err != nil:
		log.Fatal().Err(err).Msg("check-in failed")
	}

	log.Info().
		Str("class", class.Name).
		Str("result", result.Kind.String()).
		Str("date", result.Date).
		Str("next_slot", result.NextSlot).
		Msg("check-in finished")
}

// parseScript turns "id@5s=-54,id2@8s=-70" into replay entries. The rssi
// part is optional and defaults to -60.
func parseScript(raw string, log zerolog.Logger) []scan.ScriptedAd {
	var script []scan.ScriptedAd
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id := entry
		after := time.Duration(0)
		rssi := -60

		if at := strings.Index(id, "@"); at >= 0 {
			rest := id[at+1:]
			id = id[:at]
			if eq := strings.Index(rest, "="); eq >= 0 {
				if parsed, err := time.ParseDuration(rest[:eq]); err == nil {
					after = parsed
				}
				if n, err := strconv.Atoi(rest[eq+1:]); err == nil {
					rssi = n
				}
			} else if parsed, err := time.ParseDuration(rest); err == nil {
				after = parsed
			}
		}

		if id == "" {
			log.Warn().Str("entry", entry).Msg("skipping malformed beacon entry")
			continue
		}
		script = append(script, scan.ScriptedAd{
			After: after,
			Ad:    scan.Advertisement{ID: id, Name: id, RSSI: rssi},
		})
	}
	return script
}
