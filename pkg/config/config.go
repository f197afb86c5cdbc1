// Package config reads the TOML definition of an election.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/taurusgroup/multi-party-vote/pkg/election"
	"github.com/taurusgroup/multi-party-vote/pkg/math/group"
)

// Group holds hexadecimal group parameters. Both empty selects the RFC 3526 2048-bit group.
type Group struct {
	P string `toml:"p"`
	G string `toml:"g"`
}

// Trustees lists the key holders and the number of them needed to decrypt.
type Trustees struct {
	Threshold int      `toml:"threshold"`
	Names     []string `toml:"names"`
}

// Question defines one contest.
type Question struct {
	Prompt     string   `toml:"prompt"`
	Kind       string   `toml:"kind"`
	Choices    []string `toml:"choices"`
	MinChoices int      `toml:"min_choices"`
	MaxChoices int      `toml:"max_choices"`
}

// Voter is an eligible voter.
type Voter struct {
	Name string `toml:"name"`
}

// Election is the content of an election file.
type Election struct {
	Name     string `toml:"name"`
	Database string `toml:"database"`
	// Workers is the size of the worker pool, 0 uses every CPU.
	Workers  int    `toml:"workers"`
	LogLevel string `toml:"log_level"`
	LogJSON  bool   `toml:"log_json"`

	Group     Group      `toml:"group"`
	Trustees  Trustees   `toml:"trustees"`
	Questions []Question `toml:"question"`
	Voters    []Voter    `toml:"voter"`
}

// Load decodes and validates the file at path.
func Load(path string) (*Election, error) {
	var c Election
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return validated(&c, md)
}

// Parse decodes and validates an election definition.
func Parse(data string) (*Election, error) {
	var c Election
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return validated(&c, md)
}

func validated(c *Election, md toml.MetaData) (*Election, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the definition without building the election.
func (c *Election) Validate() error {
	if c.Name == "" {
		return errors.New("config: missing name")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: negative worker count %d", c.Workers)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if (c.Group.P == "") != (c.Group.G == "") {
		return errors.New("config: group needs both p and g")
	}
	n := len(c.Trustees.Names)
	if n == 0 {
		return errors.New("config: no trustees")
	}
	if c.Trustees.Threshold < 1 || c.Trustees.Threshold > n {
		return fmt.Errorf("config: threshold %d out of range for %d trustees", c.Trustees.Threshold, n)
	}
	if len(c.Questions) == 0 {
		return errors.New("config: no questions")
	}
	for i, q := range c.Questions {
		if err := q.question().Validate(); err != nil {
			return fmt.Errorf("config: question %d: %w", i, err)
		}
	}
	return nil
}

// Level parses LogLevel, defaulting to info.
func (c *Election) Level() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	l, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("config: %w", err)
	}
	return l, nil
}

// GroupParameters returns the configured group.
func (c *Election) GroupParameters() (*group.Group, error) {
	if c.Group.P == "" {
		return group.Default(), nil
	}
	return group.FromHex(c.Group.P, c.Group.G)
}

func (q Question) question() *election.Question {
	return &election.Question{
		Prompt:     q.Prompt,
		Kind:       election.Kind(q.Kind),
		Choices:    q.Choices,
		MinChoices: q.MinChoices,
		MaxChoices: q.MaxChoices,
	}
}

// Build creates the election record, ready for key generation.
func (c *Election) Build() (*election.Election, error) {
	G, err := c.GroupParameters()
	if err != nil {
		return nil, err
	}
	questions := make([]*election.Question, len(c.Questions))
	for i, q := range c.Questions {
		questions[i] = q.question()
	}
	voters := make([]string, len(c.Voters))
	for i, v := range c.Voters {
		voters[i] = v.Name
	}
	return election.New(c.Name, G, c.Trustees.Threshold, c.Trustees.Names, questions, voters)
}
