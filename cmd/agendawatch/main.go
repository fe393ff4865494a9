// Command agendawatch tails one user's live agenda: it subscribes to the
// user's schedule and history feeds and reprints today's remaining
// medications whenever either changes.  Useful for checking what the
// dashboard and the reminder engine currently see for a user.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Srishyl/MediMate/livefeed"

	"cloud.google.com/go/firestore"
	"github.com/caarlos0/env/v11"
	"github.com/golang/glog"
)

var (
	dataProject = flag.String("data-project", "", "GCP project that contains the application state.")
	userID      = flag.String("user", "", "User document ID to watch.")
)

type envConfig struct {
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
}

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}
}

func do(ctx context.Context) error {
	if *userID == "" {
		return fmt.Errorf("--user is required")
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("while parsing environment: %w", err)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("while loading timezone %q: %w", cfg.Timezone, err)
	}

	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	feed := livefeed.New(fstore, *userID)
	feed.OnChange(func() {
		printAgenda(feed, location)
	})
	feed.Watch(ctx)
	defer feed.Stop()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	<-signalCh

	glog.Flush()

	return nil
}

func printAgenda(feed *livefeed.Feed, location *time.Location) {
	now := time.Now()
	agenda := livefeed.TodaysAgenda(feed.Schedules(), feed.History(), now, location)
	upcoming := livefeed.UpcomingReminders(feed.Schedules(), feed.History(), now, location)

	fmt.Printf("--- %s: %d left today, %d upcoming ---\n", now.In(location).Format(time.RFC3339), len(agenda), len(upcoming))
	for _, schedule := range agenda {
		fmt.Printf("%02d:%02d %s (%s), %d of %d pills left\n",
			schedule.TimeHour, schedule.TimeMinute,
			schedule.PillName, schedule.Dosage,
			schedule.RemainingPills, schedule.TotalPills)
	}
}
