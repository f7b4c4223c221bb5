// Command rectrel analyzes a rectangle set read from a JSON file or stdin and
// prints every relationship in the brace-delimited text form.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/rectrel/internal/core/model"
	"github.com/mohammed-shakir/rectrel/internal/core/router"
	"github.com/mohammed-shakir/rectrel/internal/engine"
	"github.com/mohammed-shakir/rectrel/internal/logger"
	"github.com/mohammed-shakir/rectrel/internal/presenter"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

var errUsage = errors.New("usage")

type options struct {
	in       string
	x, y     string
	format   string
	epsilon  float64
	overlap  string
	grouping string
	logLevel string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("rectrel", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.in, "in", "-", "input JSON file, - for stdin")
	fs.StringVar(&o.x, "x", "", "query point x")
	fs.StringVar(&o.y, "y", "", "query point y")
	fs.StringVar(&o.format, "format", "text", "output format: text or json")
	fs.Float64Var(&o.epsilon, "epsilon", engine.DefaultOptions().Epsilon, "adjacency tolerance")
	fs.StringVar(&o.overlap, "overlap", string(engine.OverlapTouch), "overlap mode: touch or strict")
	fs.StringVar(&o.grouping, "grouping", string(engine.GroupOneHop), "grouping mode: onehop or components")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level for timing output on stderr")
	if err := fs.Parse(args); err != nil {
		return options{}, errUsage
	}
	if (o.x == "") != (o.y == "") {
		fmt.Fprintln(stderr, "rectrel: -x and -y must be given together")
		return options{}, errUsage
	}
	if o.format != "text" && o.format != "json" {
		fmt.Fprintf(stderr, "rectrel: unknown format %q\n", o.format)
		return options{}, errUsage
	}
	return o, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	zl := logger.Build(logger.Config{Level: o.logLevel, Console: true, Component: "rectrel"}, stderr)

	eng, err := newEngine(o, &zl)
	if err != nil {
		fmt.Fprintf(stderr, "rectrel: %v\n", err)
		return 2
	}

	set, err := readSet(o.in, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "rectrel: %v\n", err)
		return 1
	}
	point, err := parsePoint(o.x, o.y)
	if err != nil {
		fmt.Fprintf(stderr, "rectrel: %v\n", err)
		return 1
	}

	a, err := eng.Analyze(set, point)
	if err != nil {
		fmt.Fprintf(stderr, "rectrel: %v\n", err)
		return 1
	}

	if o.format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(a)
	} else {
		err = presenter.WriteAnalysis(stdout, a)
	}
	if err != nil {
		fmt.Fprintf(stderr, "rectrel: %v\n", err)
		return 1
	}
	return 0
}

func newEngine(o options, zl *zerolog.Logger) (*engine.Engine, error) {
	if err := engine.CheckEpsilon(o.epsilon); err != nil {
		return nil, err
	}
	overlap, err := engine.ParseOverlapMode(o.overlap)
	if err != nil {
		return nil, err
	}
	grouping, err := engine.ParseGroupingMode(o.grouping)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Epsilon:  o.epsilon,
		Overlap:  overlap,
		Grouping: grouping,
		Observe: func(query string, rects int, d time.Duration) {
			zl.Debug().Str("query", query).Int("rects", rects).Dur("took", d).Msg("query done")
		},
	}), nil
}

// readSet accepts either {"rectangles":[...]} or a bare array of rectangles.
func readSet(path string, stdin io.Reader) (model.Set, error) {
	var (
		raw []byte
		err error
	)
	if path == "" || path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return model.Set{}, fmt.Errorf("read input: %w", err)
	}

	var rects []model.Rectangle
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &rects)
	} else {
		var req router.Request
		err = json.Unmarshal(raw, &req)
		rects = req.Rectangles
	}
	if err != nil {
		return model.Set{}, fmt.Errorf("decode input: %w", err)
	}
	return model.NewSet(rects)
}

// parsePoint returns nil when no coordinates were given.
func parsePoint(xs, ys string) (*model.Point, error) {
	if xs == "" && ys == "" {
		return nil, nil
	}
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: x=%q", model.ErrMalformedPoint, xs)
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: y=%q", model.ErrMalformedPoint, ys)
	}
	return &model.Point{X: x, Y: y}, nil
}
