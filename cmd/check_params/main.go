package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"water-synth/config"
	"water-synth/params"
)

// Check a parameter table against the configured generator bounds and make
// sure it survives a save/load round trip unchanged.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	tablePath := flag.String("file", cfg.ParamFile, "Parameter table to check")
	regenerate := flag.Bool("regenerate", false, "Also regenerate the table from its seed and compare")
	flag.Parse()

	table, err := params.LoadTable(*tablePath)
	if err != nil {
		log.Fatalf("failed to load %s: %v", *tablePath, err)
	}
	log.Printf("Loaded %d samples from %s (seed %d)\n", table.Len(), *tablePath, table.Seed)

	problems := checkBounds(table, cfg.Bounds)
	for _, p := range problems {
		fmt.Println("❌ " + p)
	}
	failures := len(problems)

	tmp, err := os.CreateTemp("", "params-roundtrip-*.json")
	if err != nil {
		log.Fatalf("failed to create temp file: %v", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())
	if err := params.SaveTable(tmp.Name(), table); err != nil {
		log.Fatalf("failed to save table: %v", err)
	}
	again, err := params.LoadTable(tmp.Name())
	if err != nil {
		log.Fatalf("failed to reload table: %v", err)
	}
	if !sameTable(table, again) {
		fmt.Println("❌ round trip changed the table")
		failures++
	} else {
		fmt.Println("✅ round trip is bit-identical")
	}

	if *regenerate {
		if table.Seed == 0 {
			log.Fatal("table has no seed; cannot regenerate")
		}
		ok, err := regenerates(table, cfg.Bounds)
		if err != nil {
			log.Fatalf("invalid bounds: %v", err)
		}
		if ok {
			fmt.Println("✅ table regenerates from its seed")
		} else {
			fmt.Println("❌ table does not regenerate from its seed")
			failures++
		}
	}

	if failures > 0 {
		fmt.Printf("\n%d problem(s) found\n", failures)
		os.Exit(1)
	}
	fmt.Println("\n✅ parameter table OK")
}

// checkBounds lists every table value outside b.
func checkBounds(table params.Table, b params.Bounds) []string {
	var problems []string
	outside := func(v, lo, hi float64) bool { return v < lo || v > hi }

	for i, ws := range table.WaveScales {
		if outside(ws, b.WaveScaleMin, b.WaveScaleMax) {
			problems = append(problems, fmt.Sprintf("sample %04d: wave scale %.4f outside [%.2f, %.2f]", i, ws, b.WaveScaleMin, b.WaveScaleMax))
		}
	}
	if table.WaveScale != 0 && outside(table.WaveScale, b.WaveScaleMin, b.WaveScaleMax) {
		problems = append(problems, fmt.Sprintf("fixed wave scale %.4f outside [%.2f, %.2f]", table.WaveScale, b.WaveScaleMin, b.WaveScaleMax))
	}
	for i, amp := range table.Amplifiers {
		if outside(amp, b.AmplifierMin, b.AmplifierMax) {
			problems = append(problems, fmt.Sprintf("sample %04d: amplifier %.4f outside [%.3f, %.3f]", i, amp, b.AmplifierMin, b.AmplifierMax))
		}
	}
	if table.Amplifier != 0 && outside(table.Amplifier, b.AmplifierMin, b.AmplifierMax) {
		problems = append(problems, fmt.Sprintf("fixed amplifier %.4f outside [%.3f, %.3f]", table.Amplifier, b.AmplifierMin, b.AmplifierMax))
	}
	return problems
}

// regenerates rebuilds the table from its seed the way the pipeline does and
// reports whether every recorded value comes out the same.
func regenerates(table params.Table, b params.Bounds) (bool, error) {
	gen, err := params.NewGenerator(b, rand.New(rand.NewSource(table.Seed)))
	if err != nil {
		return false, err
	}
	fixedWS, fixedAmp := 0.0, 0.0
	if len(table.WaveScales) == 0 {
		// Tables written before the fixed value was recorded still compare
		// their drawn lists; only the fine scales cannot be checked.
		fixedWS = table.WaveScale
		if fixedWS == 0 {
			fixedWS = -1
		}
	}
	if len(table.Amplifiers) == 0 {
		fixedAmp = table.Amplifier
		if fixedAmp == 0 {
			fixedAmp = -1
		}
	}
	regen := params.TableFromParams(gen.Generate(table.Len(), fixedWS, fixedAmp), fixedWS != 0, fixedAmp != 0, table.Seed)
	if fixedWS == -1 {
		regen.WaveScalesFine = table.WaveScalesFine
	}
	if fixedWS == -1 || fixedAmp == -1 {
		regen.WaveScale, regen.Amplifier = table.WaveScale, table.Amplifier
	}
	return sameTable(regen, table), nil
}

func sameTable(a, b params.Table) bool {
	return sameFloats(a.WaveScales, b.WaveScales) &&
		sameFloats(a.WaveScalesFine, b.WaveScalesFine) &&
		sameFloats(a.Amplifiers, b.Amplifiers) &&
		a.WaveScale == b.WaveScale &&
		a.Amplifier == b.Amplifier
}

func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
