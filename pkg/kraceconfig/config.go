//go:build linux

// Package kraceconfig parses the JSON (or YAML) race-hunter configuration:
// the race-point descriptors that say which kernel symbols open, trigger,
// and close a race window, the per-worker scheduling policy and CPU
// affinity, and optional process-name hints used to attach the tracer to
// processes that were not spawned as harness workers.
package kraceconfig

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"github.com/race-hunter/krace/internal/logging"
)

// maxKprobeNameLen mirrors KPROBE_LENGTH from trace.c: the kernel limits a
// kprobe_events descriptor name to 65 bytes including the trailing NUL.
const maxKprobeNameLen = 65

// maxDescriptionLen is the usable budget once the generated "k_race_<i>"
// prefix and the kernel's own bookkeeping are accounted for.
const maxDescriptionLen = 50

// maxCPUIndex mirrors cpu_set_t's CPU_SETSIZE on Linux (1024 bits).
const maxCPUIndex = 1024

// RacePoint is a named kernel probe site with independent role flags, the
// Go mirror of config.h's k_race_point.
type RacePoint struct {
	Description string
	Opens       bool
	Triggers    bool
	Closes      bool
}

// IsReturnProbe reports whether the description names a return probe
// (symbol suffixed with ":ret") rather than an entry probe.
func (p RacePoint) IsReturnProbe() bool {
	return strings.HasSuffix(p.Description, ":ret")
}

// Symbol strips the ":ret" suffix, yielding the bare kernel symbol the
// probe attaches to.
func (p RacePoint) Symbol() string {
	return strings.TrimSuffix(p.Description, ":ret")
}

// SchedConfig is one worker's scheduling policy, priority, and CPU
// affinity mask, the Go mirror of config.h's per-worker entry in
// k_race_config.sched_config.
type SchedConfig struct {
	Policy   int
	Priority int
	CPUs     []int
}

// Config is the fully parsed, merged race-hunter configuration.
type Config struct {
	Name       string
	RacePoints []RacePoint
	Sched      []SchedConfig
	Comms      []string
	Targets    []string
}

type rawSchedEntry struct {
	Policy json.RawMessage `json:"policy" yaml:"policy"`
	CPUs   []int           `json:"cpus" yaml:"cpus"`
}

type rawConfig struct {
	Name         string          `json:"name" yaml:"name"`
	OpenedBy     StringOrSlice   `json:"opened_by" yaml:"opened_by"`
	TriggeredBy  StringOrSlice   `json:"triggered_by" yaml:"triggered_by"`
	ClosedBy     StringOrSlice   `json:"closed_by" yaml:"closed_by"`
	Comms        StringOrSlice   `json:"comms" yaml:"comms"`
	Sched        []rawSchedEntry `json:"sched" yaml:"sched"`
	Targets      []string        `json:"targets" yaml:"targets"`
}

// Parse decodes a JSON race-hunter configuration document.
func Parse(data []byte, numTargets int) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("kraceconfig: parse json: %w", err)
	}
	return build(raw, numTargets)
}

// ParseYAML decodes a YAML race-hunter configuration document, the
// alternate loader exercising gopkg.in/yaml.v3 alongside the JSON path.
func ParseYAML(data []byte, numTargets int) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("kraceconfig: parse yaml: %w", err)
	}
	return build(raw, numTargets)
}

func build(raw rawConfig, numTargets int) (*Config, error) {
	cfg := &Config{Name: raw.Name}
	if cfg.Name == "" {
		cfg.Name = "race"
	}
	cfg.Comms = []string(raw.Comms)

	// config.c's add_race_points requires at least one entry in each of
	// opened_by/triggered_by/closed_by independently (n < 1 -> EINVAL),
	// not merely a non-empty union across the three.
	if len(raw.OpenedBy) == 0 {
		return nil, fmt.Errorf("%w: opened_by", ErrNoRacePoints)
	}
	if len(raw.TriggeredBy) == 0 {
		return nil, fmt.Errorf("%w: triggered_by", ErrNoRacePoints)
	}
	if len(raw.ClosedBy) == 0 {
		return nil, fmt.Errorf("%w: closed_by", ErrNoRacePoints)
	}

	if err := addRacePoints(cfg, raw.OpenedBy, func(p *RacePoint) { p.Opens = true }); err != nil {
		return nil, err
	}
	if err := addRacePoints(cfg, raw.TriggeredBy, func(p *RacePoint) { p.Triggers = true }); err != nil {
		return nil, err
	}
	if err := addRacePoints(cfg, raw.ClosedBy, func(p *RacePoint) { p.Closes = true }); err != nil {
		return nil, err
	}

	sched, err := parseSched(raw.Sched, numTargets)
	if err != nil {
		return nil, err
	}
	cfg.Sched = sched
	cfg.Targets = parseTargets(raw.Targets, numTargets)

	return cfg, nil
}

// parseTargets pads or truncates the configured target commands to
// exactly numTargets entries; a missing entry becomes "" (no-op target).
func parseTargets(raw []string, numTargets int) []string {
	log := logging.For("config")
	if len(raw) > numTargets {
		log.Warn("targets has more elements than workers, truncating",
			"entries", len(raw), "targets", numTargets)
		raw = raw[:numTargets]
	}
	out := make([]string, numTargets)
	copy(out, raw)
	return out
}

// addRacePoints implements config.c's update_point: a description already
// present in the list has the new role OR'd onto it instead of creating a
// duplicate entry.
func addRacePoints(cfg *Config, descriptions []string, setRole func(*RacePoint)) error {
	for _, d := range descriptions {
		if len(d) > maxDescriptionLen {
			return fmt.Errorf("%w: %q (%d > %d)", ErrDescriptionTooLong, d, len(d), maxDescriptionLen)
		}
		if i := findRacePoint(cfg.RacePoints, d); i >= 0 {
			setRole(&cfg.RacePoints[i])
			continue
		}
		p := RacePoint{Description: d}
		setRole(&p)
		cfg.RacePoints = append(cfg.RacePoints, p)
	}
	return nil
}

func findRacePoint(points []RacePoint, description string) int {
	for i, p := range points {
		if p.Description == description {
			return i
		}
	}
	return -1
}

func parseSched(raw []rawSchedEntry, numTargets int) ([]SchedConfig, error) {
	log := logging.For("config")

	if len(raw) > numTargets {
		log.Warn("sched config has more elements than targets, truncating",
			"entries", len(raw), "targets", numTargets)
		raw = raw[:numTargets]
	}

	out := make([]SchedConfig, numTargets)
	for i, entry := range raw {
		policy, priority, err := parseSchedPolicy(entry.Policy)
		if err != nil {
			return nil, err
		}
		cpus, err := parseCPUs(entry.CPUs)
		if err != nil {
			return nil, err
		}
		out[i] = SchedConfig{Policy: policy, Priority: priority, CPUs: cpus}
	}
	for i := len(raw); i < numTargets; i++ {
		out[i] = SchedConfig{Policy: unix.SCHED_OTHER}
	}
	return out, nil
}

// parseSchedPolicy accepts either a raw policy int or one of the three
// kernel policy names, grounded on config.c's parse_sched_policy.
func parseSchedPolicy(raw json.RawMessage) (policy, priority int, err error) {
	if len(raw) == 0 {
		return unix.SCHED_OTHER, 0, nil
	}

	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt, priorityFor(asInt), nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownPolicy, string(raw))
	}

	switch strings.ToUpper(asString) {
	case "SCHED_OTHER":
		return unix.SCHED_OTHER, 0, nil
	case "SCHED_FIFO":
		return unix.SCHED_FIFO, 1, nil
	case "SCHED_RR":
		return unix.SCHED_RR, 1, nil
	default:
		if n, convErr := strconv.Atoi(asString); convErr == nil {
			return n, priorityFor(n), nil
		}
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, asString)
	}
}

func priorityFor(policy int) int {
	if policy == unix.SCHED_FIFO || policy == unix.SCHED_RR {
		return 1
	}
	return 0
}

func parseCPUs(cpus []int) ([]int, error) {
	for _, c := range cpus {
		if c < 0 || c >= maxCPUIndex {
			return nil, fmt.Errorf("%w: %d", ErrCPUOutOfRange, c)
		}
	}
	return cpus, nil
}
