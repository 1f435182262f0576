// Command qvz compresses the quality lines of sequencing data lossily,
// trading reconstruction distortion against rate under a user-chosen
// entropy budget.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Krlucete/qvz"
	"github.com/Krlucete/qvz/distortion"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [options] <input file> <output file>

Options:
  -q            store quality values in compressed form (default)
  -x            extract quality values from compressed file
  -f ratio      compress using ratio bits per bit of input entropy per symbol (default 0.5)
  -d M|L|A      optimize for MSE, log(1+L1), or L1 distortion (default M)
  -c n          compress using n clusters (default 1)
  -T threshold  cluster center movement (L2) below which the solution is stable (default 4)
  -t n          number of lines used as training set, 0 for all (default 1000000)
  -u file       write the uncompressed lossy values to file
  -s            print summary stats
  -v            verbose output

Environment variables (also read from .env): QVZ_RATIO, QVZ_CLUSTERS,
QVZ_DISTORTION, QVZ_TRAINING_LINES.
`, os.Args[0])
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseDistortion(s string) (distortion.Measure, error) {
	switch s {
	case "M":
		return distortion.MSE, nil
	case "L":
		return distortion.Lorentz, nil
	case "A":
		return distortion.Manhattan, nil
	default:
		return 0, fmt.Errorf("distortion measure %q not supported (want M, L, or A)", s)
	}
}

func main() {
	// A missing .env is fine; only explicit files matter.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("qvz", flag.ExitOnError)
	fs.Usage = usage
	var (
		store     = fs.Bool("q", false, "store quality values (default)")
		extract   = fs.Bool("x", false, "extract quality values")
		ratio     = fs.Float64("f", envFloat("QVZ_RATIO", 0.5), "entropy budget ratio")
		distFlag  = fs.String("d", os.Getenv("QVZ_DISTORTION"), "distortion measure (M|L|A)")
		clusters  = fs.Int("c", envInt("QVZ_CLUSTERS", 1), "cluster count")
		threshold = fs.Float64("T", 4, "cluster movement threshold")
		training  = fs.Int("t", envInt("QVZ_TRAINING_LINES", 1_000_000), "training line cap")
		lossyOut  = fs.String("u", "", "lossy sidecar file")
		statsFlag = fs.Bool("s", false, "print summary stats")
		verbose   = fs.Bool("v", false, "verbose output")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "missing required filenames")
		usage()
		os.Exit(1)
	}
	if *store && *extract {
		fmt.Fprintln(os.Stderr, "-q and -x are mutually exclusive")
		os.Exit(1)
	}
	inputName, outputName := fs.Arg(0), fs.Arg(1)

	logger := qvz.NoopLogger()
	if *verbose {
		logger = qvz.NewTextLogger(slog.LevelInfo)
	}

	if *distFlag == "" {
		*distFlag = "M"
	}
	measure, err := parseDistortion(*distFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	in, err := os.Open(inputName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unable to open input file:", err)
		os.Exit(1)
	}
	defer in.Close()

	out, err := os.Create(outputName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unable to open output file:", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *extract {
		if _, err := qvz.Decode(ctx, in, out, qvz.WithLogger(logger)); err != nil {
			fmt.Fprintln(os.Stderr, "decode failed:", err)
			os.Exit(1)
		}
		if err := out.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	opts := []qvz.Option{
		qvz.WithComp(*ratio),
		qvz.WithDistortion(measure),
		qvz.WithClusters(*clusters),
		qvz.WithClusterThreshold(*threshold),
		qvz.WithTrainingLines(*training),
		qvz.WithLogger(logger),
	}
	if *lossyOut != "" {
		f, err := os.Create(*lossyOut)
		if err != nil {
			fmt.Fprintln(os.Stderr, "unable to open lossy output file:", err)
			os.Exit(1)
		}
		defer f.Close()
		opts = append(opts, qvz.WithLossyOutput(f))
	}

	stats, err := qvz.Encode(ctx, in, out, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode failed:", err)
		os.Exit(1)
	}
	if err := out.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *verbose {
		switch measure {
		case distortion.Manhattan:
			fmt.Printf("L1 distortion: %f\n", stats.ActualDistortion)
		case distortion.Lorentz:
			fmt.Printf("log(1+L1) distortion: %f\n", stats.ActualDistortion)
		default:
			fmt.Printf("MSE distortion: %f\n", stats.ActualDistortion)
		}
		fmt.Printf("Lines: %d\n", stats.Lines)
		fmt.Printf("Columns: %d\n", stats.Columns)
		fmt.Printf("Total bytes used: %d\n", stats.BytesWritten)
	}
	if *statsFlag {
		fmt.Printf("rate, %.4f, distortion, %.4f, size, %d\n", stats.Rate(), stats.ActualDistortion, stats.BytesWritten)
	}
}
