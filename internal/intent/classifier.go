// Package intent classifies free-text chat input by keyword containment.
package intent

import (
	"strings"
)

// Service names in match priority order.
const (
	ServiceWebsite    = "website"
	ServiceAutomation = "automation"
	ServiceAI         = "ai"
	ServiceCRM        = "crm"
	ServiceForms      = "forms"
	ServiceGeneral    = "general"
)

// Category is one service intent and the substrings that select it.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Table holds every keyword list the classifier matches against.
type Table struct {
	Services    []Category `yaml:"services"`
	Contact     []string   `yaml:"contact"`
	Uncertainty []string   `yaml:"uncertainty"`
	Exploration []string   `yaml:"exploration"`
}

// DefaultTable returns the keyword lists used by the chat widget.
func DefaultTable() Table {
	return Table{
		Services: []Category{
			{Name: ServiceWebsite, Keywords: []string{"website", "web", "site", "web design", "web development", "landing page", "redesign", "redo my website", "new website", "website redesign", "rebuild website"}},
			{Name: ServiceAutomation, Keywords: []string{"automation", "automate", "workflow", "zapier", "make", "process"}},
			{Name: ServiceAI, Keywords: []string{"ai", "artificial intelligence", "machine learning", "chatbot", "intelligent"}},
			{Name: ServiceCRM, Keywords: []string{"crm", "customer management", "database", "contact management"}},
			{Name: ServiceForms, Keywords: []string{"form", "forms", "survey", "tally", "typeform"}},
			{Name: ServiceGeneral, Keywords: []string{"help", "service", "solution", "system", "build", "create", "develop"}},
		},
		Contact:     []string{"talk", "speak", "call", "phone", "contact", "human", "person", "owner", "christopher"},
		Uncertainty: []string{"i don't know", "not sure", "uncertain", "confused", "help me understand", "what do you mean", "i'm not sure", "don't understand"},
		Exploration: []string{"options", "what can you do", "what do you offer", "tell me more", "learn more", "what services", "what kind of"},
	}
}

// Classifier matches text against a Table. It is safe for concurrent use.
type Classifier struct {
	table Table
}

// New builds a classifier over table. Keywords are lowercased once here.
func New(table Table) *Classifier {
	c := &Classifier{table: Table{
		Contact:     lowerAll(table.Contact),
		Uncertainty: lowerAll(table.Uncertainty),
		Exploration: lowerAll(table.Exploration),
	}}
	for _, cat := range table.Services {
		c.table.Services = append(c.table.Services, Category{Name: cat.Name, Keywords: lowerAll(cat.Keywords)})
	}
	return c
}

// Default returns a classifier over DefaultTable.
func Default() *Classifier {
	return New(DefaultTable())
}

// WithContactKeywords returns a copy that also treats extra as contact keywords.
// The chat engine uses it to add the owner's configured name.
func (c *Classifier) WithContactKeywords(extra ...string) *Classifier {
	t := c.table
	t.Contact = append(append([]string(nil), c.table.Contact...), lowerAll(extra)...)
	return &Classifier{table: t}
}

// Result is the outcome of classifying one message. Service is empty when no
// service category matched.
type Result struct {
	Service   string
	Contact   bool
	Uncertain bool
	Exploring bool
}

// Classify runs every detector against text.
func (c *Classifier) Classify(text string) Result {
	norm := Normalize(text)
	if norm == "" {
		return Result{}
	}
	return Result{
		Service:   c.matchService(norm),
		Contact:   containsAny(norm, c.table.Contact),
		Uncertain: containsAny(norm, c.table.Uncertainty),
		Exploring: containsAny(norm, c.table.Exploration),
	}
}

// Service returns the first service category matching text, or "".
func (c *Classifier) Service(text string) string {
	return c.matchService(Normalize(text))
}

// IsContact reports whether text asks to reach a person.
func (c *Classifier) IsContact(text string) bool {
	return containsAny(Normalize(text), c.table.Contact)
}

func (c *Classifier) matchService(norm string) string {
	if norm == "" {
		return ""
	}
	for _, cat := range c.table.Services {
		if containsAny(norm, cat.Keywords) {
			return cat.Name
		}
	}
	return ""
}

// Kind names the reply branch chosen for a Result.
type Kind string

const (
	KindUncertainty Kind = "uncertainty"
	KindExploration Kind = "exploration"
	KindContact     Kind = "contact"
	KindService     Kind = "service"
	KindFallback    Kind = "fallback"
	KindGeneral     Kind = "general"
)

// Welcome picks the welcome-phase branch:
// uncertainty, then exploration, then contact, then service, else fallback.
func (r Result) Welcome() Kind {
	switch {
	case r.Uncertain:
		return KindUncertainty
	case r.Exploring:
		return KindExploration
	case r.Contact:
		return KindContact
	case r.Service != "":
		return KindService
	default:
		return KindFallback
	}
}

// FollowUp picks the branch used once contact details were collected:
// contact, then service, then uncertainty, else general.
func (r Result) FollowUp() Kind {
	switch {
	case r.Contact:
		return KindContact
	case r.Service != "":
		return KindService
	case r.Uncertain:
		return KindUncertainty
	default:
		return KindGeneral
	}
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'")

// Normalize lowercases and trims text and folds curly apostrophes to '.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(apostrophes.Replace(text)))
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
