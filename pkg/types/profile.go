// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"
)

// Preferences are the reader's soft ranking preferences.
type Preferences struct {
	FavorVenues    bool `json:"favor_venues" yaml:"favor_venues"`
	FavorPractical bool `json:"favor_practical" yaml:"favor_practical"`
	FavorNovelty   bool `json:"favor_novelty" yaml:"favor_novelty"`
}

// Profile describes what the reader cares about. It is loaded once at
// startup and never mutated.
type Profile struct {
	// Name labels the digest (e.g. "AI Research Digest").
	Name string `json:"name" yaml:"name"`

	// PrimaryInterests carry the highest weight, in priority order.
	PrimaryInterests []string `json:"primary_interests" yaml:"primary_interests"`

	// SecondaryInterests carry lower weight.
	SecondaryInterests []string `json:"secondary_interests" yaml:"secondary_interests"`

	// Wildcard describes when an off-profile paper is still worth including.
	Wildcard string `json:"wildcard" yaml:"wildcard"`

	// Deprioritize lists topics excluded unless exceptional.
	Deprioritize []string `json:"deprioritize" yaml:"deprioritize"`

	// SourceBoost lists institutions or labs used as a tiebreaker only.
	SourceBoost []string `json:"source_boost" yaml:"source_boost"`

	Preferences Preferences `json:"preferences" yaml:"preferences"`
}

// JSON returns the indented JSON form embedded in prompts.
func (p Profile) JSON() string {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Subscriber is one digest recipient.
type Subscriber struct {
	Email  string `json:"email" yaml:"email"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Active *bool  `json:"active,omitempty" yaml:"active,omitempty"`
}

// IsActive reports whether the subscriber should receive mail. A missing
// active flag means active.
func (s Subscriber) IsActive() bool {
	return s.Active == nil || *s.Active
}

// DisplayName returns the name, or the address when no name is set.
func (s Subscriber) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

type subscribersFile struct {
	Subscribers []Subscriber `json:"subscribers" yaml:"subscribers"`
}

// LoadProfile reads a profile from a JSON or YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if len(p.PrimaryInterests) == 0 {
		return Profile{}, fmt.Errorf("profile %s has no primary interests", path)
	}
	return p, nil
}

// LoadSubscribers reads the subscriber list and returns the active entries.
func LoadSubscribers(path string) ([]Subscriber, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading subscribers: %w", err)
	}
	var f subscribersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing subscribers %s: %w", path, err)
	}
	var active []Subscriber
	for _, s := range f.Subscribers {
		if s.Email == "" || !s.IsActive() {
			continue
		}
		active = append(active, s)
	}
	return active, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
