package chat

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed scripts/*.yaml
var scriptFS embed.FS

// Script names shipped with the binary.
const (
	ScriptServiceFirst = "service_first"
	ScriptContactFirst = "contact_first"
)

// Script is every line the bot can say, keyed by phase and intent.
// Lines may use the {name}, {owner} and {phone} placeholders.
type Script struct {
	Name       string        `yaml:"name"`
	StartPhase Phase         `yaml:"start_phase"`
	Greeting   []string      `yaml:"greeting"`
	Welcome    WelcomeLines  `yaml:"welcome"`
	Accepted   AcceptedLines `yaml:"accepted"`
	Errors     ErrorLines    `yaml:"errors"`
	Submission SubmitLines   `yaml:"submission"`
	Complete   CompleteLines `yaml:"complete"`
}

// WelcomeLines are the replies to the first free-text message.
type WelcomeLines struct {
	Uncertainty []string          `yaml:"uncertainty"`
	Exploration []string          `yaml:"exploration"`
	Contact     []string          `yaml:"contact"`
	Services    map[string]string `yaml:"services"`
	AskName     []string          `yaml:"ask_name"`
	Fallback    []string          `yaml:"fallback"`
}

// AcceptedLines follow a field that passed validation.
type AcceptedLines struct {
	Name  []string `yaml:"name"`
	Email []string `yaml:"email"`
	Phone []string `yaml:"phone"`
}

// ErrorLines are the field errors shown next to the input.
type ErrorLines struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

// SubmitLines report the outcome of the upstream submission.
type SubmitLines struct {
	Thanks         string   `yaml:"thanks"`
	LinkIntro      string   `yaml:"link_intro"`
	LinkText       string   `yaml:"link_text"`
	NoLink         string   `yaml:"no_link"`
	ClosingContact string   `yaml:"closing_contact"`
	ClosingDefault string   `yaml:"closing_default"`
	NotFound       []string `yaml:"not_found"`
	Failure        string   `yaml:"failure"`
}

// CompleteLines answer messages sent after the contact info was submitted.
// Empty branches fall back to General.
type CompleteLines struct {
	Contact       []string `yaml:"contact"`
	Service       []string `yaml:"service"`
	Uncertainty   []string `yaml:"uncertainty"`
	General       []string `yaml:"general"`
	GeneralSuffix string   `yaml:"general_suffix"`
}

// Vars fill the script placeholders.
type Vars struct {
	Name  string
	Owner string
	Phone string
}

// Render substitutes the placeholders in line.
func (v Vars) Render(line string) string {
	return strings.NewReplacer("{name}", v.Name, "{owner}", v.Owner, "{phone}", v.Phone).Replace(line)
}

// LoadScript loads one of the embedded scripts by name.
func LoadScript(name string) (*Script, error) {
	if name == "" {
		name = ScriptServiceFirst
	}
	data, err := scriptFS.ReadFile("scripts/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("chat: unknown script %q", name)
	}
	return ParseScript(data)
}

// LoadScriptFile loads a script from disk.
func LoadScriptFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chat: read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("chat: parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects scripts the engine cannot run.
func (s *Script) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(s.Greeting) == 0 {
		errs = append(errs, errors.New("greeting is required"))
	}
	switch s.StartPhase {
	case PhaseWelcome:
		if len(s.Welcome.Fallback) == 0 {
			errs = append(errs, errors.New("welcome.fallback is required when starting in welcome"))
		}
	case PhaseCollectingName:
	default:
		errs = append(errs, fmt.Errorf("unknown start_phase %q", s.StartPhase))
	}
	if s.Errors.Name == "" || s.Errors.Email == "" || s.Errors.Phone == "" {
		errs = append(errs, errors.New("errors.name, errors.email and errors.phone are required"))
	}
	if s.Submission.Failure == "" || s.Submission.Thanks == "" {
		errs = append(errs, errors.New("submission.thanks and submission.failure are required"))
	}
	if len(s.Complete.General) == 0 {
		errs = append(errs, errors.New("complete.general is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("chat: invalid script %q: %w", s.Name, err)
	}
	return nil
}

// ServiceLine returns the welcome reply for service, or the general one.
func (s *Script) ServiceLine(service string) string {
	if line, ok := s.Welcome.Services[service]; ok && line != "" {
		return line
	}
	return s.Welcome.Services["general"]
}
