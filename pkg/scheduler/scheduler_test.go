package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yeisme/dataviz/pkg/scheduler"
)

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.NewScheduler()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	return s
}

// waitFor 轮询直到 cond 成立或超时.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}

		time.Sleep(10 * time.Millisecond)
	}
}

func TestAddCronAndRunNow(t *testing.T) {
	s := newScheduler(t)
	ran := make(chan struct{}, 1)

	err := s.AddCron(context.Background(), "test.job", "0 3 * * *", func(context.Context) error {
		ran <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("add cron: %v", err)
	}

	info, err := s.GetJobInfoByName("test.job")
	if err != nil {
		t.Fatalf("get job info: %v", err)
	}

	if info.Status != scheduler.StatusScheduled || info.ID == "" || info.NextRun.IsZero() {
		t.Errorf("unexpected job info: %+v", info)
	}

	if err := s.RunNow("test.job"); err != nil {
		t.Fatalf("run now: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	waitFor(t, func() bool {
		info, err := s.GetJobInfoByName("test.job")
		return err == nil && !info.LastSuccess.IsZero()
	})
}

func TestJobErrorIsRecorded(t *testing.T) {
	s := newScheduler(t)

	if err := s.AddCron(context.Background(), "failing", "0 3 * * *", func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("add cron: %v", err)
	}

	if err := s.RunNow("failing"); err != nil {
		t.Fatalf("run now: %v", err)
	}

	waitFor(t, func() bool {
		info, err := s.GetJobInfoByName("failing")
		return err == nil && info.Status == scheduler.StatusError && info.Error == "boom"
	})
}

func TestDuplicateAndUnknownJobs(t *testing.T) {
	s := newScheduler(t)
	noop := func(context.Context) error { return nil }

	if err := s.AddCron(context.Background(), "a", "* * * * *", noop); err != nil {
		t.Fatalf("add cron: %v", err)
	}

	if err := s.AddCron(context.Background(), "a", "* * * * *", noop); err == nil {
		t.Error("duplicate job name accepted")
	}

	if err := s.AddCron(context.Background(), "bad", "not a cron", noop); err == nil {
		t.Error("invalid cron expression accepted")
	}

	if err := s.RunNow("missing"); !errors.Is(err, scheduler.ErrJobNotFound) {
		t.Errorf("RunNow(missing) = %v", err)
	}

	if err := s.RemoveJobByName("missing"); !errors.Is(err, scheduler.ErrJobNotFound) {
		t.Errorf("RemoveJobByName(missing) = %v", err)
	}

	if _, err := s.GetJobInfoByName("missing"); !errors.Is(err, scheduler.ErrJobNotFound) {
		t.Errorf("GetJobInfoByName(missing) = %v", err)
	}

	if err := s.RemoveJobByName("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if infos := s.GetJobInfos(); len(infos) != 0 {
		t.Errorf("jobs left after remove: %+v", infos)
	}
}
