package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"fdd/pkg/config"
	"fdd/pkg/dataset"
	"fdd/pkg/fdd"
	"fdd/pkg/solver"
	"fdd/pkg/store"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "YAML configuration file (defaults are used if it does not exist)")
	inputPath := flag.String("input", "", "CSV file with columns x0..x{D-1} and y0..y{C-1}")
	outputPath := flag.String("output", "", "Output CSV file for jump records (overrides output.jumpsFile)")
	dbPath := flag.String("db", "", "sqlite database to record the run in (overrides output.database)")
	solverPath := flag.String("solver", "", "Precompiled solver artifact (overrides solver.path)")
	device := flag.String("device", "", "Execution context: auto, discrete, integrated, cpu-vector or cpu (overrides solver.device)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputPath != "" {
		cfg.Output.JumpsFile = *outputPath
	}
	if *dbPath != "" {
		cfg.Output.Database = *dbPath
	}
	if *solverPath != "" {
		cfg.Solver.Path = *solverPath
	}
	if *device != "" {
		cfg.Solver.Device = *device
	}

	fmt.Println("================================")
	fmt.Println("FREE-DISCONTINUITY DETECTION ON SCATTERED OBSERVATIONS")
	fmt.Println("================================")

	fmt.Println("Loading observations...")
	obs, err := dataset.ReadFile(*inputPath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *inputPath, err)
	}
	fmt.Printf("- %d samples, %d coordinate axes, %d outcome channels\n", obs.Len(), obs.Dims(), obs.Channels())

	fmt.Println("Loading solver...")
	s, err := solver.Load(cfg.Solver.Path)
	if err != nil {
		log.Fatalf("Failed to load solver: %v", err)
	}

	fmt.Println("Building grid...")
	startTime := time.Now()
	model, err := fdd.New(cfg, obs, s)
	if err != nil {
		log.Fatalf("Failed to prepare model: %v", err)
	}
	g := model.State().Grid
	fmt.Printf("- Grid %v at resolution %.4f (%d empty cells filled)\n", g.Shape, g.Resolution, g.Filled)
	fmt.Printf("- Solver runs on %s\n", model.Device())

	res, err := model.Run()
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nRun completed in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("- Solver iterations: %d\n", res.Iterations)
	if n := len(res.Energy); n > 0 {
		fmt.Printf("- Final energy: %.6g\n", res.Energy[n-1])
	}
	if n := len(res.Gap); n > 0 {
		fmt.Printf("- Final gap: %.3g\n", res.Gap[n-1])
	}
	fmt.Printf("- Boundary threshold: %.4f (%s)\n", res.Threshold, cfg.Model.PickNu)
	fmt.Printf("- Boundary cells: %d, jump records: %d\n", res.Mask.Count(), len(res.Jumps))

	if cfg.Output.JumpsFile != "" {
		if err := dataset.WriteJumpsFile(cfg.Output.JumpsFile, res.Jumps); err != nil {
			log.Fatalf("Failed to write jumps: %v", err)
		}
		fmt.Printf("Jump records saved to: %s\n", cfg.Output.JumpsFile)
	}

	if cfg.Output.Database != "" {
		db, err := store.Open(cfg.Output.Database)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		run := &store.Run{
			Dataset:    filepath.Base(*inputPath),
			Device:     res.Device,
			Shape:      g.Shape,
			Level:      cfg.Model.Level,
			Lambda:     cfg.Model.Lambda,
			Nu:         cfg.Model.Nu,
			Threshold:  res.Threshold,
			Iterations: res.Iterations,
			Energy:     res.Energy,
			Gap:        res.Gap,
		}
		if err := db.SaveRun(run, res.Jumps); err != nil {
			log.Printf("Warning: Failed to record run: %v", err)
		} else {
			fmt.Printf("Run %s recorded in %s\n", run.RunID, cfg.Output.Database)
		}
	}
}
