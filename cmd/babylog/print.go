package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"babylog/internal/app"
	"babylog/internal/babylog"
	"babylog/internal/model"

	"golang.org/x/term"
)

func checkmark(ok bool) string {
	if ok {
		return "given"
	}
	return "not given"
}

func sideLabel(side model.Side) string {
	switch side {
	case model.SideLeft:
		return "L"
	case model.SideRight:
		return "R"
	default:
		return "-"
	}
}

func printCounts(s *model.DailySummary) {
	fmt.Printf("Today: %d pee, %d poop\n", s.PeeCount, s.PoopCount)
}

func printFeeding(a *app.BabyLogApp) {
	session, elapsed := a.FeedingStatus()
	if session.State == babylog.TimerIdle {
		fmt.Println("No feeding in progress.")
		return
	}
	fmt.Printf("%s  %s  %s\n", sideLabel(session.Side), babylog.FormatElapsed(elapsed), session.State)
}

func printSummary(s *model.DailySummary, now time.Time) {
	last := "none"
	if s.LastFeeding != nil {
		last = babylog.RelativeTime(now, *s.LastFeeding)
	}
	fmt.Printf("Feedings:    %d (%d min), last %s\n", s.FeedingCount, s.FeedingMinutes, last)

	if s.LastTemperature != nil {
		fmt.Printf("Temperature: %.1f °C, %s\n", s.TemperatureC, babylog.RelativeTime(now, *s.LastTemperature))
	} else {
		fmt.Println("Temperature: none")
	}

	fmt.Printf("Pee:         %d\n", s.PeeCount)
	fmt.Printf("Poop:        %d\n", s.PoopCount)
	fmt.Printf("Vitamin D:   %s\n", checkmark(s.VitaminDGiven))
	fmt.Printf("Vitamin K:   %s\n", checkmark(s.VitaminKGiven))
}

func describe(r *model.Record) string {
	switch r.Type {
	case model.EventFeeding:
		return fmt.Sprintf("feeding %s %s", sideLabel(r.Side), babylog.FormatElapsed(time.Duration(r.DurationSeconds)*time.Second))
	case model.EventTemperature:
		return fmt.Sprintf("temperature %.1f °C", r.Temperature)
	case model.EventVitaminD:
		return "vitamin D"
	case model.EventVitaminK:
		return "vitamin K"
	default:
		return string(r.Type)
	}
}

func printHistory(groups []model.DayGroup) {
	for i, g := range groups {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(g.Label)
		for _, r := range g.Records {
			fmt.Printf("  %s  %-24s %s\n", r.Timestamp.In(g.Day.Location()).Format("15:04"), describe(r), r.ID)
		}
	}
}

// waitRest shows the rest countdown until it ends or ctx is cancelled,
// which skips it.
func waitRest(ctx context.Context, rest *babylog.RestCountdown) {
	rest.OnTick(func(remaining time.Duration) {
		fmt.Printf("\rRest %s ", babylog.FormatCountdown(remaining))
	})
	fmt.Printf("Rest %s ", babylog.FormatCountdown(rest.Remaining()))

	select {
	case <-rest.Done():
	case <-ctx.Done():
		rest.Skip()
	}
	fmt.Println()
}

// confirm asks a yes/no question on the terminal. Without a terminal the
// answer is no.
func confirm(question string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
