// Package scenario defines the narrative frame of a game: the question the
// market resolves, the NPC cast that originates clues, scripted timeline
// events, and the secret outcome. Scenarios load from YAML files or fall
// back to the built-in default.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NPC is a non-player character that authors clues and feed posts.
type NPC struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Role        string  `yaml:"role" json:"role"`
	Reliability float64 `yaml:"reliability" json:"reliability"` // 0–1, how often this NPC tells the truth
}

// EventType says where a scripted event lands.
type EventType string

const (
	EventPublic  EventType = "public"  // posted to the shared feed
	EventPrivate EventType = "private" // sent as a DM to each target
)

// ScriptedEvent fires when the game reaches its day.
type ScriptedEvent struct {
	Day     int       `yaml:"day" json:"day"`
	Type    EventType `yaml:"type" json:"type"`
	From    string    `yaml:"from" json:"from"` // NPC id; empty means the system
	Content string    `yaml:"content" json:"content"`
	Targets []string  `yaml:"targets,omitempty" json:"targets,omitempty"` // private events only
}

// OutcomeRandom asks the engine to draw the secret outcome at game start.
const OutcomeRandom = "random"

// Scenario is one game's narrative definition. Immutable after load.
type Scenario struct {
	ID          string          `yaml:"id" json:"id"`
	Title       string          `yaml:"title" json:"title"`
	Question    string          `yaml:"question" json:"question"` // the YES/NO proposition being traded
	Description string          `yaml:"description" json:"description"`
	NPCs        []NPC           `yaml:"npcs" json:"npcs"`
	Events      []ScriptedEvent `yaml:"events" json:"events"`

	// Outcome is "YES", "NO", or OutcomeRandom.
	Outcome string `yaml:"outcome" json:"-"`
}

// Load reads a scenario from a YAML file. Unknown fields are an error so a
// typo in a hand-written scenario fails loudly at startup.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.ID == "" || s.Question == "" {
		return fmt.Errorf("id and question are required")
	}
	if len(s.NPCs) == 0 {
		return fmt.Errorf("at least one NPC is required")
	}
	switch s.Outcome {
	case "YES", "NO", OutcomeRandom:
	default:
		return fmt.Errorf("outcome %q must be YES, NO, or %s", s.Outcome, OutcomeRandom)
	}
	for _, ev := range s.Events {
		if ev.Day < 1 || ev.Day > 30 {
			return fmt.Errorf("event day %d outside [1,30]", ev.Day)
		}
		if ev.Type != EventPublic && ev.Type != EventPrivate {
			return fmt.Errorf("event type %q must be public or private", ev.Type)
		}
	}
	return nil
}

// NPCIDs returns the ids of the NPC cast in declaration order.
func (s *Scenario) NPCIDs() []string {
	ids := make([]string, len(s.NPCs))
	for i, n := range s.NPCs {
		ids[i] = n.ID
	}
	return ids
}

// NPCByID returns the named NPC, or nil.
func (s *Scenario) NPCByID(id string) *NPC {
	for i := range s.NPCs {
		if s.NPCs[i].ID == id {
			return &s.NPCs[i]
		}
	}
	return nil
}

// EventsForDay returns the scripted events that fire on the given day.
func (s *Scenario) EventsForDay(day int) []ScriptedEvent {
	var out []ScriptedEvent
	for _, ev := range s.Events {
		if ev.Day == day {
			out = append(out, ev)
		}
	}
	return out
}

// Default returns the built-in scenario used when no YAML file is supplied.
func Default() *Scenario {
	return &Scenario{
		ID:          "harbor-merger",
		Title:       "The Harbor Consortium Merger",
		Question:    "Will the Harbor Consortium merger be approved by day 30?",
		Description: "Two shipping houses are rumored to be merging. Regulators circle, insiders whisper, and the docks are thick with misinformation.",
		NPCs: []NPC{
			{ID: "npc-calloway", Name: "Auditor Calloway", Role: "regulator", Reliability: 0.85},
			{ID: "npc-brisa", Name: "Brisa the Stevedore", Role: "dockworker", Reliability: 0.6},
			{ID: "npc-fenwick", Name: "Fenwick Ledger", Role: "broker", Reliability: 0.4},
			{ID: "npc-ophele", Name: "Ophele of the Gazette", Role: "journalist", Reliability: 0.7},
		},
		Events: []ScriptedEvent{
			{Day: 3, Type: EventPublic, From: "npc-ophele", Content: "Gazette morning edition: consortium lawyers seen entering the registry hall."},
			{Day: 12, Type: EventPublic, From: "npc-calloway", Content: "The audit office has extended its review period. Draw your own conclusions."},
			{Day: 21, Type: EventPublic, From: "npc-fenwick", Content: "Word on the floor is the deal is as good as signed. Buy now or cry later."},
			{Day: 25, Type: EventPublic, From: "", Content: "Final week. Betting closes at day 29."},
		},
		Outcome: OutcomeRandom,
	}
}
