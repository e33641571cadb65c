// Package main - test-runner
// Runs the deterministic fleet drills and exits non-zero on any failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/test"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "abort the suite after this long")
	flag.Parse()

	fmt.Println("DRONE FLEET - DRILL SUITE")
	fmt.Println(strings.Repeat("=", 60))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	suite := test.NewFleetSuite(logger.NewLogger())
	suite.RunAll(ctx)

	results := suite.GetResults()
	passed, failed := 0, 0
	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	for _, r := range results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
		}
		fmt.Printf("   %s %-48s tick %d, %d events\n", mark, r.ScenarioName, r.Ticks, r.Events)
	}
	fmt.Printf("\n   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	if ctx.Err() != nil && len(results) < suite.Len() {
		fmt.Println("\nSuite interrupted before every drill ran")
		os.Exit(1)
	}
	if failed > 0 {
		fmt.Println("\nThe fleet needs attention before deployment")
		os.Exit(1)
	}
	fmt.Println("\nThe fleet is ready for deployment")
}
