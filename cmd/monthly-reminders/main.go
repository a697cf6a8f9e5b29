package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/rentroll_backend/config"
	"bitbucket.org/mmdatafocus/rentroll_backend/workflow"
)

// Runs one monthly-reminder pass and exits. Meant for Cloud Run jobs or a
// crontab entry when the HTTP cron route is not wired up.
func main() {
	asOf := flag.String("as-of", "", "Optional: run as of this date (YYYY-MM-DD, UTC). Defaults to now.")
	force := flag.Bool("force", false, "Run even outside the reminder window.")
	flag.Parse()

	now := time.Now().UTC()
	if *asOf != "" {
		parsed, err := time.Parse("2006-01-02", *asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -as-of date: %v\n", err)
			os.Exit(1)
		}
		now = parsed.UTC()
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	ctx := context.Background()
	summary, err := workflow.RunMonthlyReminders(ctx, now, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reminder run failed: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}
