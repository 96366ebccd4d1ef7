// Package prompt collects graph options from a user over a line-oriented
// terminal session.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/covid-graph/pkg/query"
	"github.com/antzucaro/matchr"
)

// suggestThreshold is the Jaro-Winkler similarity above which a close known
// area name is offered as a suggestion.
const suggestThreshold = 0.8

var yesAnswers = map[string]bool{"y": true, "ye": true, "yes": true, "yeah": true}
var noAnswers = map[string]bool{"n": true, "no": true, "nah": true, "nope": true}

// Prompter asks questions on out and reads answers line by line from in.
// Every method returns io.EOF once in is exhausted.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// New creates a prompter.
func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

// Welcome prints the usage instructions.
func (p *Prompter) Welcome() {
	fmt.Fprint(p.out,
		"Welcome to the UK COVID-19 Graph generator.\n"+
			"Please answer the following queries using numbers where prompted to choose an option, "+
			"and entering direct answers where necessary.\n"+
			"If you'd like to enter multiple answers, separate them by commas.\n\n")
}

// Options asks for data type, count type, area type, area names and
// timeframe, in that order. The returned spec is valid.
func (p *Prompter) Options() (query.Spec, error) {
	var spec query.Spec

	i, err := p.choose("Please choose the type of data you would like to generate:",
		[]string{"Cases", "Deaths", "Tests", "Admissions"})
	if err != nil {
		return spec, err
	}
	spec.DataType = query.DataTypes[i]

	i, err = p.choose("Please choose the type of data you would like to generate:",
		[]string{"New/Daily Data", "Accumulative Data"})
	if err != nil {
		return spec, err
	}
	spec.CountType = query.CountTypes[i]

	i, err = p.choose("Please choose the type of area you would like to generate data for:",
		[]string{
			"Overview (" + query.OverviewAreaName + ")",
			"Nation (" + strings.Join(query.Nations, ", ") + ")",
			"Region (London, East Midlands, etc.)",
		})
	if err != nil {
		return spec, err
	}
	spec.AreaType = query.AreaTypes[i]

	if spec.AreaType == query.AreaOverview {
		spec.AreaNames = []string{query.OverviewAreaName}
	} else {
		spec.AreaNames, err = p.areaNames(spec.AreaType)
		if err != nil {
			return spec, err
		}
	}

	i, err = p.choose("Please choose the timeframe you would like to generate data for:",
		[]string{"All Time", "6 Months", "3 Months", "1 Month", "1 Week"})
	if err != nil {
		return spec, err
	}
	spec.Timeframe = query.Timeframes[i]

	if err := spec.Validate(); err != nil {
		return spec, err
	}
	return spec, nil
}

// Again asks whether to generate another graph.
func (p *Prompter) Again() (bool, error) {
	fmt.Fprint(p.out, "Would you like to generate another graph? (y/n): ")
	for {
		line, err := p.readLine()
		if err != nil {
			return false, err
		}

		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case yesAnswers[answer]:
			fmt.Fprintln(p.out)
			return true, nil
		case noAnswers[answer]:
			fmt.Fprintln(p.out)
			return false, nil
		}
		fmt.Fprint(p.out, "Please enter a valid answer (yes or no): ")
	}
}

// choose prints a numbered menu and returns the zero-based index picked.
func (p *Prompter) choose(title string, options []string) (int, error) {
	fmt.Fprintln(p.out, title)
	for i, o := range options {
		fmt.Fprintf(p.out, "%d) %s\n", i+1, o)
	}
	fmt.Fprint(p.out, "Option: ")

	for {
		line, err := p.readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= len(options) {
			fmt.Fprintln(p.out)
			return n - 1, nil
		}
		fmt.Fprintf(p.out, "Please enter an option between 1 and %d: ", len(options))
	}
}

// areaNames reads a comma-separated list of nation or region names. "all"
// selects every known area of that type.
func (p *Prompter) areaNames(t query.AreaType) ([]string, error) {
	known := query.KnownAreas(t)
	fmt.Fprintf(p.out, "Please enter the name of the %s(s) you would like to generate data for (or \"all\"):\n", t)
	fmt.Fprint(p.out, "Option: ")

	for {
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}

		names, unknown := ParseAreaNames(t, line)
		if len(names) > 0 && len(unknown) == 0 {
			fmt.Fprintln(p.out)
			return names, nil
		}

		for _, u := range unknown {
			if s, ok := Suggest(t, u); ok {
				fmt.Fprintf(p.out, "Unknown %s %q. Did you mean %q?\n", t, u, s)
			}
		}
		fmt.Fprintf(p.out, "Please enter valid %ss:\n%s\n", t, strings.Join(known, "\n"))
		fmt.Fprint(p.out, "Option: ")
	}
}

// ParseAreaNames splits a comma-separated answer into canonical area names.
// A lone "all" returns every known area of type t. Names that do not match a
// known area are returned in unknown. Repeated names are kept once.
func ParseAreaNames(t query.AreaType, line string) (names, unknown []string) {
	if strings.EqualFold(strings.TrimSpace(line), "all") {
		return append([]string(nil), query.KnownAreas(t)...), nil
	}

	seen := make(map[string]bool)
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, ok := query.CanonicalArea(t, part)
		if !ok {
			unknown = append(unknown, part)
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, unknown
}

// Suggest returns the known area of type t closest to input, if it is close
// enough to be a likely typo.
func Suggest(t query.AreaType, input string) (string, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	best, bestScore := "", 0.0
	for _, name := range query.KnownAreas(t) {
		score := matchr.JaroWinkler(in, strings.ToLower(name), false)
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore < suggestThreshold {
		return "", false
	}
	return best, true
}

func (p *Prompter) readLine() (string, error) {
	if p.in.Scan() {
		return p.in.Text(), nil
	}
	if err := p.in.Err(); err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return "", io.EOF
}

// Loading writes message to w with an animated ellipsis until stop is called.
// Nothing else may write to w before stop returns.
func Loading(w io.Writer, message string, rate time.Duration) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	fmt.Fprintf(w, "\r%s...", message)
	go func() {
		defer close(finished)
		ticker := time.NewTicker(rate)
		defer ticker.Stop()

		frames := []string{".  ", ".. ", "..."}
		for i := 0; ; i = (i + 1) % len(frames) {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s%s ", message, frames[i])
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
			fmt.Fprintln(w)
		})
	}
}
