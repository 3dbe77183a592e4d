package jobs

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// StartJobs registers the maintenance jobs and starts the background
// scheduler.
func StartJobs(app JobContext) {
	app.JobManager().Register(JobSessionSweep, sweepSessions)

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	startSessionSweepJob(s, app)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
}

func startSessionSweepJob(s *gocron.Scheduler, app JobContext) {
	interval := app.Config().Sessions.SweepIntervalMinutes
	if interval == 0 {
		log.Println("Session sweep interval is 0, scheduled sweep is disabled.")
		return
	}

	log.Printf("Scheduling job: '%s' to run every %d minutes.", JobSessionSweep, interval)

	_, err := s.Every(interval).Minutes().Do(func() {
		// Submit the job to the manager instead of running it directly.
		// This prevents conflicts with manually triggered sweeps.
		err := app.JobManager().RunJob(JobSessionSweep, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", JobSessionSweep, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", JobSessionSweep, err)
	}
}
