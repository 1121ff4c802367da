// telemetry-gen generates synthetic student activity streams for testing
// the detection pipeline and the replay command without needing a live client.
//
// Usage:
//
//	go run tools/telemetry-gen.go -output stream.jsonl -count 200
//	go run tools/telemetry-gen.go -output stream.jsonl -profile scripted
//	go run tools/telemetry-gen.go -output stream.jsonl -profile paste-heavy
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"integrityd/internal/telemetry"
)

// ActivityProfile defines parameters for simulating different student behaviors.
type ActivityProfile struct {
	Name             string
	Description      string
	MedianIntervalMs float64 // Median time between keystrokes
	IntervalStdDevMs float64 // Standard deviation
	BackspaceProb    float64 // Probability a keystroke is a correction
	PauseProb        float64 // Probability of a thinking pause
	PauseMaxMs       float64 // Maximum pause duration
	PasteProb        float64 // Probability of a paste between keystrokes
	PasteMinChars    int     // Smallest paste size
	PasteMaxChars    int     // Largest paste size
	GapProb          float64 // Probability of walking away mid-session
	GapMs            float64 // Inactivity gap duration
}

var profiles = map[string]ActivityProfile{
	"natural": {
		Name:             "Natural Student",
		Description:      "Typical child typing with pauses and corrections",
		MedianIntervalMs: 2500,
		IntervalStdDevMs: 1800,
		BackspaceProb:    0.12,
		PauseProb:        0.08,
		PauseMaxMs:       20000,
		PasteProb:        0,
		GapProb:          0,
	},
	"scripted": {
		Name:             "Scripted Input",
		Description:      "Metronomic fast typing, far beyond grade level",
		MedianIntervalMs: 100,
		IntervalStdDevMs: 10,
		BackspaceProb:    0,
		PauseProb:        0,
		PasteProb:        0,
		GapProb:          0,
	},
	"paste-heavy": {
		Name:             "Paste-Heavy Workflow",
		Description:      "Little typing, answers arrive as large pastes",
		MedianIntervalMs: 3000,
		IntervalStdDevMs: 2000,
		BackspaceProb:    0.05,
		PauseProb:        0.05,
		PauseMaxMs:       15000,
		PasteProb:        0.15,
		PasteMinChars:    80,
		PasteMaxChars:    400,
		GapProb:          0,
	},
	"distracted": {
		Name:             "Distracted Student",
		Description:      "Natural typing interrupted by long absences",
		MedianIntervalMs: 2800,
		IntervalStdDevMs: 2000,
		BackspaceProb:    0.1,
		PauseProb:        0.05,
		PauseMaxMs:       25000,
		PasteProb:        0,
		GapProb:          0.02,
		GapMs:            420000,
	},
}

func main() {
	var (
		outputPath   = flag.String("output", "stream.jsonl", "Output file path")
		count        = flag.Int("count", 200, "Number of keystroke records to generate")
		profileName  = flag.String("profile", "natural", "Activity profile to use")
		userID       = flag.String("user", "student-1", "Simulated user ID")
		subject      = flag.String("subject", "math", "Session subject")
		activity     = flag.String("activity", "quiz", "Activity type")
		startTime    = flag.Int64("start", 0, "Start timestamp (epoch ms); 0 = now")
		seed         = flag.Int64("seed", 0, "Random seed; 0 = use current time")
		listProfiles = flag.Bool("list", false, "List available profiles")
	)
	flag.Parse()

	if *listProfiles {
		fmt.Println("Available profiles:")
		for name, p := range profiles {
			fmt.Printf("  %-14s %s\n", name, p.Description)
		}
		os.Exit(0)
	}

	profile, ok := profiles[*profileName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown profile: %s\n", *profileName)
		fmt.Fprintf(os.Stderr, "Use -list to see available profiles\n")
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	if *startTime == 0 {
		*startTime = time.Now().UnixMilli()
	}

	fmt.Printf("Generating %d keystrokes with profile: %s\n", *count, profile.Name)
	fmt.Printf("Random seed: %d\n", *seed)

	records := generateStream(rng, profile, *count, *userID, *subject, *activity, *startTime)

	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := telemetry.NewWriter(f)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing record: %v\n", err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d records to %s\n", len(records), *outputPath)
	printStats(records)
}

func generateStream(rng *rand.Rand, profile ActivityProfile, count int, userID, subject, activity string, startMs int64) []telemetry.Record {
	records := make([]telemetry.Record, 0, count+2)
	now := startMs

	records = append(records, telemetry.Record{
		Type:        telemetry.TypeSessionStart,
		UserID:      userID,
		TimestampMs: now,
		Subject:     subject,
		Activity:    activity,
	})

	for i := 0; i < count; i++ {
		var intervalMs float64
		if rng.Float64() < profile.PauseProb {
			intervalMs = profile.MedianIntervalMs + rng.Float64()*profile.PauseMaxMs
		} else {
			intervalMs = logNormalSample(rng, profile.MedianIntervalMs, profile.IntervalStdDevMs)
		}
		now += int64(intervalMs)

		if profile.GapProb > 0 && rng.Float64() < profile.GapProb {
			gap := profile.GapMs * (0.5 + rng.Float64())
			now += int64(gap)
			records = append(records, telemetry.Record{
				Type:        telemetry.TypeGap,
				UserID:      userID,
				TimestampMs: now,
				GapMs:       gap,
			})
			continue
		}

		if profile.PasteProb > 0 && rng.Float64() < profile.PasteProb {
			chars := profile.PasteMinChars + rng.Intn(profile.PasteMaxChars-profile.PasteMinChars+1)
			records = append(records, telemetry.Record{
				Type:         telemetry.TypePaste,
				UserID:       userID,
				TimestampMs:  now,
				PastedLength: chars,
				ElapsedMs:    200 + rng.Float64()*1500,
			})
			continue
		}

		recType := telemetry.TypeKeystroke
		if rng.Float64() < profile.BackspaceProb {
			recType = telemetry.TypeBackspace
		}
		records = append(records, telemetry.Record{
			Type:        recType,
			UserID:      userID,
			TimestampMs: now,
		})
	}

	now += int64(profile.MedianIntervalMs)
	records = append(records, telemetry.Record{
		Type:        telemetry.TypeSessionEnd,
		UserID:      userID,
		TimestampMs: now,
	})

	return records
}

// logNormalSample generates a sample from a log-normal distribution.
func logNormalSample(rng *rand.Rand, median, stdDev float64) float64 {
	mu := math.Log(median)
	sigma := math.Log(1 + stdDev/median)
	if sigma < 0.1 {
		sigma = 0.1
	}

	// Box-Muller transform
	u1 := rng.Float64()
	u2 := rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

	return math.Exp(mu + sigma*z)
}

func printStats(records []telemetry.Record) {
	var intervals []float64
	var lastKeystroke int64
	pastes, gaps, backspaces := 0, 0, 0

	for _, rec := range records {
		switch rec.Type {
		case telemetry.TypeKeystroke:
			if lastKeystroke > 0 {
				intervals = append(intervals, float64(rec.TimestampMs-lastKeystroke))
			}
			lastKeystroke = rec.TimestampMs
		case telemetry.TypeBackspace:
			backspaces++
		case telemetry.TypePaste:
			pastes++
		case telemetry.TypeGap:
			gaps++
		}
	}

	if len(intervals) == 0 {
		return
	}

	var sum, sumSq float64
	for _, v := range intervals {
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(len(intervals))
	variance := sumSq/float64(len(intervals)) - mean*mean

	fmt.Println("\nStatistics:")
	fmt.Printf("  Keystroke intervals: %d\n", len(intervals))
	fmt.Printf("  Interval mean:       %.0f ms\n", mean)
	fmt.Printf("  Interval stddev:     %.0f ms\n", math.Sqrt(variance))
	fmt.Printf("  Implied speed:       %.1f WPM\n", 60000/(mean*5))
	fmt.Printf("  Backspaces:          %d\n", backspaces)
	fmt.Printf("  Pastes:              %d\n", pastes)
	fmt.Printf("  Inactivity gaps:     %d\n", gaps)
}
