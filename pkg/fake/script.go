package fake

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/inercia/go-fakellm/pkg/llm"
)

// Script is a YAML description of a rule table.
//
//	stream_wps: 20
//	chunking: words
//	rules:
//	  - keywords: ["weather"]
//	    response: "It is sunny."
//	  - when_role: system
//	    response: {reasoning: "think", content: "ok"}
//	  - sequence: ["first", {content: "second"}]
//	  - always: true
//	    response: "default"
//
// Each rule names at most one condition (keywords, when_role or always) and
// exactly one source (response or sequence). Only a sequence may omit the
// condition, in which case it matches every conversation while it lasts.
type Script struct {
	StreamWPS float64      `yaml:"stream_wps,omitempty"`
	Chunking  *Chunking    `yaml:"chunking,omitempty"`
	Rules     []ScriptRule `yaml:"rules"`
}

// ScriptRule is one rule of a Script
type ScriptRule struct {
	Keywords StringList       `yaml:"keywords,omitempty"`
	WhenRole llm.MessageRole  `yaml:"when_role,omitempty"`
	Always   bool             `yaml:"always,omitempty"`
	Response *ScriptResponse  `yaml:"response,omitempty"`
	Sequence []ScriptResponse `yaml:"sequence,omitempty"`
}

// ScriptResponse is a Response written either as a plain string (content
// only) or as a {reasoning, content} mapping
type ScriptResponse Response

func (r *ScriptResponse) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var content string
		if err := node.Decode(&content); err != nil {
			return err
		}
		*r = ScriptResponse{Content: content}
		return nil
	}
	var resp Response
	if err := node.Decode(&resp); err != nil {
		return err
	}
	*r = ScriptResponse(resp)
	return nil
}

func (r ScriptResponse) MarshalYAML() (any, error) {
	if r.Reasoning == "" {
		return r.Content, nil
	}
	return Response(r), nil
}

// StringList accepts a single string or a list of strings
type StringList []string

func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*l = list
	return nil
}

// LoadScript reads and validates a script file
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading script %s", path)
	}
	script, err := ParseScript(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing script %s", path)
	}
	return script, nil
}

// ParseScript decodes and validates a YAML script. Unknown keys are rejected.
func ParseScript(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var script Script
	if err := dec.Decode(&script); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decoding YAML")
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return &script, nil
}

// Validate checks the script without building it
func (s *Script) Validate() error {
	_, err := s.BuildRules()
	if err != nil {
		return err
	}
	if s.StreamWPS != 0 {
		if err := validateRate(s.StreamWPS); err != nil {
			return err
		}
	}
	if s.Chunking != nil {
		if _, ok := chunkingNames[*s.Chunking]; !ok {
			return configErrorf("unknown chunking mode %d", int(*s.Chunking))
		}
	}
	return nil
}

// BuildRules turns the script rules into model rules, in order
func (s *Script) BuildRules() ([]Rule, error) {
	rules := make([]Rule, 0, len(s.Rules))
	for i, sr := range s.Rules {
		rule, err := sr.build()
		if err != nil {
			return nil, configErrorf("script rule %d: %s", i, reason(err))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func reason(err error) string {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.Reason
	}
	return err.Error()
}

func (r ScriptRule) matcher() (Matcher, error) {
	var conditions []Matcher
	if len(r.Keywords) > 0 {
		conditions = append(conditions, KeywordInLastMessage(r.Keywords...))
	}
	if r.WhenRole != "" {
		if !r.WhenRole.IsValid() {
			return nil, configErrorf("unknown role %q", r.WhenRole)
		}
		conditions = append(conditions, When(LastMessageFromRole(r.WhenRole)))
	}
	if r.Always {
		conditions = append(conditions, Always())
	}

	switch len(conditions) {
	case 0:
		return nil, nil
	case 1:
		return conditions[0], nil
	}
	return nil, configErrorf("only one of keywords, when_role and always may be set")
}

func (r ScriptRule) build() (Rule, error) {
	m, err := r.matcher()
	if err != nil {
		return Rule{}, err
	}

	switch {
	case r.Response != nil && len(r.Sequence) > 0:
		return Rule{}, configErrorf("response and sequence are mutually exclusive")
	case len(r.Sequence) > 0:
		responses := make([]Response, len(r.Sequence))
		for i, sr := range r.Sequence {
			responses[i] = Response(sr)
		}
		return NewSequenceRule(m, responses...)
	case r.Response != nil:
		if m == nil {
			return Rule{}, configErrorf("a response needs one of keywords, when_role or always")
		}
		return NewRule(m, Response(*r.Response))
	}
	return Rule{}, configErrorf("one of response or sequence is required")
}

// Apply appends the script rules to m and applies its stream settings.
// Nothing is changed when the script is invalid.
func (s *Script) Apply(m *Model) error {
	if err := s.Validate(); err != nil {
		return err
	}
	rules, err := s.BuildRules()
	if err != nil {
		return err
	}

	if s.StreamWPS != 0 {
		if err := m.SetStreamWPS(s.StreamWPS); err != nil {
			return err
		}
	}
	if s.Chunking != nil {
		m.WithChunking(*s.Chunking)
	}
	for _, rule := range rules {
		if err := m.AddRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// Write encodes the script as YAML
func (s *Script) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "encoding script")
	}
	return enc.Close()
}
