// Package seeder generates realistic notification traffic for load and
// integration testing of the relay.
package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"

	"github.com/skaisay/capycode-frontend-sub002/internal/messaging"
	"github.com/skaisay/capycode-frontend-sub002/internal/protocol"
)

// Scenario describes a seeding run: the target users and the event
// mix to stream at them.
type Scenario struct {
	Users []string `yaml:"users"`
	Steps []Step   `yaml:"steps"`
}

// Step emits Count events of Kind, one per Interval.
type Step struct {
	Kind     string        `yaml:"kind"`
	Count    int           `yaml:"count"`
	Interval time.Duration `yaml:"interval"`
}

// UnmarshalYAML accepts intervals in time.ParseDuration form ("500ms").
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Kind     string `yaml:"kind"`
		Count    int    `yaml:"count"`
		Interval string `yaml:"interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	s.Kind = raw.Kind
	s.Count = raw.Count
	if raw.Interval != "" {
		interval, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("step interval: %w", err)
		}
		s.Interval = interval
	}
	return nil
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if len(sc.Users) == 0 {
		return nil, fmt.Errorf("scenario names no users")
	}
	for _, step := range sc.Steps {
		if !protocol.ProducerKinds[step.Kind] {
			return nil, fmt.Errorf("unknown event kind %q", step.Kind)
		}
	}

	return &sc, nil
}

// Seeder publishes generated events to the notification subjects.
type Seeder struct {
	publisher messaging.Publisher
	scenario  *Scenario
}

// New creates a Seeder for the given scenario.
func New(publisher messaging.Publisher, scenario *Scenario) *Seeder {
	return &Seeder{
		publisher: publisher,
		scenario:  scenario,
	}
}

// Run streams the scenario's steps in order, picking a random target
// user per event. Returns the number of events published.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	published := 0

	for _, step := range s.Steps() {
		for i := 0; i < step.Count; i++ {
			if err := ctx.Err(); err != nil {
				return published, err
			}

			user := s.scenario.Users[rand.Intn(len(s.scenario.Users))]
			event := RandomEvent(step.Kind)

			payload, err := json.Marshal(event)
			if err != nil {
				return published, fmt.Errorf("marshal event: %w", err)
			}

			if err := s.publisher.Publish(ctx, messaging.UserSubject(user), payload); err != nil {
				return published, fmt.Errorf("publish event: %w", err)
			}
			published++

			if step.Interval > 0 && i < step.Count-1 {
				select {
				case <-time.After(step.Interval):
				case <-ctx.Done():
					return published, ctx.Err()
				}
			}
		}
	}

	return published, nil
}

// Steps exposes the scenario's steps.
func (s *Seeder) Steps() []Step {
	return s.scenario.Steps
}

var buildStatuses = []string{"queued", "in_progress", "completed", "errored"}
var buildPhases = []string{"install", "prebuild", "compile", "upload"}
var generationSteps = []string{"planning", "scaffolding", "writing_screens", "wiring_state", "finalizing"}

// RandomEvent fabricates a plausible producer event of the given kind.
func RandomEvent(kind string) protocol.Event {
	switch kind {
	case protocol.TypeBuildUpdate:
		return protocol.BuildUpdate(
			gofakeit.UUID(),
			buildStatuses[rand.Intn(len(buildStatuses))],
			gofakeit.Sentence(6),
		)
	case protocol.TypeBuildProgress:
		return protocol.BuildProgress(
			gofakeit.UUID(),
			buildPhases[rand.Intn(len(buildPhases))],
			float64(rand.Intn(101)),
		)
	case protocol.TypePreviewUpdate:
		return protocol.PreviewUpdate(
			gofakeit.UUID(),
			gofakeit.URL(),
			"ready",
		)
	case protocol.TypeGenerationProgress:
		return protocol.GenerationProgress(
			gofakeit.UUID(),
			generationSteps[rand.Intn(len(generationSteps))],
			gofakeit.HackerPhrase(),
			float64(rand.Intn(101)),
		)
	default:
		// Callers validate kinds against protocol.ProducerKinds first.
		return protocol.GenerationProgress(gofakeit.UUID(), "unknown", "", 0)
	}
}
