// Command gatesched-demo is a small, runnable illustration of a Scheduler
// under bounded concurrency, logging admission/completion events to
// stderr. It exists purely as a manual smoke test; it is not part of the
// importable API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kestrelflow/gatesched"
)

func main() {
	s := gatesched.NewScheduler(
		gatesched.WithSchedulerConcurrency(2),
		gatesched.WithSchedulerQueueType(gatesched.FIFO),
	)
	s.SetLogger(gatesched.NewStdLogger(gatesched.LevelInfo))

	s.On(gatesched.EventTaskStarted, func(e *gatesched.Event) {
		entry := e.Detail().(*gatesched.TaskEntry)
		fmt.Fprintf(os.Stderr, "started task %d args=%v\n", entry.ID, entry.Args)
	})
	s.On(gatesched.EventTaskFinished, func(e *gatesched.Event) {
		entry := e.Detail().(*gatesched.TaskEntry)
		fmt.Fprintf(os.Stderr, "finished task %d\n", entry.ID)
	})

	work := func(args ...any) (string, error) {
		label := args[0].(string)
		delay := args[1].(time.Duration)
		time.Sleep(delay)
		return label, nil
	}

	jobs := []gatesched.Job[string]{
		{Task: work, Args: []any{"A", 120 * time.Millisecond}},
		{Task: work, Args: []any{"B", 60 * time.Millisecond}},
		{Task: work, Args: []any{"C", 10 * time.Millisecond}},
	}

	future := gatesched.RunMany(s, jobs)
	settled, err := future.Wait(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "wait error:", err)
		os.Exit(1)
	}

	for _, result := range settled.Value {
		if result.Fulfilled {
			fmt.Println(result.Value)
		} else {
			fmt.Println("rejected:", result.Reason)
		}
	}
}
