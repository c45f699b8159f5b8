// Package locale holds the per-language texts used by the support chat:
// welcome and fallback messages, quick questions, and the FAQ table.
package locale

import (
	_ "embed"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed phrasebook.yaml
var embedded []byte

// minReverseMatchRunes keeps very short questions ("i", "do") from matching
// every FAQ key that happens to contain them.
const minReverseMatchRunes = 3

type FAQEntry struct {
	Key         string   `yaml:"key"`
	Answer      string   `yaml:"answer"`
	Suggestions []string `yaml:"suggestions"`
}

type Language struct {
	Welcome         string     `yaml:"welcome"`
	DefaultResponse string     `yaml:"default_response"`
	ErrorMessage    string     `yaml:"error_message"`
	QuickQuestions  []string   `yaml:"quick_questions"`
	DefaultAnswers  []string   `yaml:"default_answers"`
	FAQ             []FAQEntry `yaml:"faq"`
}

type Phrasebook struct {
	Fallback  string               `yaml:"fallback"`
	Languages map[string]*Language `yaml:"languages"`
}

// Default returns the phrasebook compiled into the binary.
func Default() (*Phrasebook, error) {
	return Parse(embedded)
}

// LoadFile reads a phrasebook from disk, e.g. to override the built-in texts.
func LoadFile(path string) (*Phrasebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read phrasebook %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) (*Phrasebook, error) {
	var pb Phrasebook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, errors.Wrap(err, "parse phrasebook")
	}
	if len(pb.Languages) == 0 {
		return nil, errors.New("phrasebook has no languages")
	}
	if pb.Fallback == "" {
		pb.Fallback = "en"
	}
	fb, ok := pb.Languages[pb.Fallback]
	if !ok {
		return nil, errors.Errorf("phrasebook fallback language %q is not defined", pb.Fallback)
	}
	if fb.Welcome == "" || fb.DefaultResponse == "" || fb.ErrorMessage == "" {
		return nil, errors.Errorf("phrasebook fallback language %q is missing required texts", pb.Fallback)
	}
	return &pb, nil
}

// Normalize maps a language tag such as "hi-IN" to a supported language,
// falling back to the phrasebook default.
func (p *Phrasebook) Normalize(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if _, ok := p.Languages[tag]; ok {
		return tag
	}
	return p.Fallback
}

func (p *Phrasebook) lang(tag string) *Language {
	return p.Languages[p.Normalize(tag)]
}

// text returns the field picked by get for tag, or the fallback language's
// value when the tag leaves it blank.
func (p *Phrasebook) text(tag string, get func(*Language) string) string {
	if v := get(p.lang(tag)); v != "" {
		return v
	}
	return get(p.Languages[p.Fallback])
}

func (p *Phrasebook) Welcome(tag string) string {
	return p.text(tag, func(l *Language) string { return l.Welcome })
}

func (p *Phrasebook) DefaultResponse(tag string) string {
	return p.text(tag, func(l *Language) string { return l.DefaultResponse })
}

func (p *Phrasebook) ErrorMessage(tag string) string {
	return p.text(tag, func(l *Language) string { return l.ErrorMessage })
}

func (p *Phrasebook) QuickQuestions(tag string) []string {
	if qs := p.lang(tag).QuickQuestions; len(qs) > 0 {
		return qs
	}
	return p.Languages[p.Fallback].QuickQuestions
}

func (p *Phrasebook) DefaultAnswers(tag string) []string {
	if as := p.lang(tag).DefaultAnswers; len(as) > 0 {
		return as
	}
	return p.Languages[p.Fallback].DefaultAnswers
}

// MatchFAQ finds the first FAQ entry whose key is contained in the question,
// or which contains the question, ignoring case.
func (p *Phrasebook) MatchFAQ(tag, question string) (FAQEntry, bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return FAQEntry{}, false
	}
	for _, e := range p.lang(tag).FAQ {
		key := strings.ToLower(e.Key)
		if strings.Contains(q, key) {
			return e, true
		}
		if utf8.RuneCountInString(q) >= minReverseMatchRunes && strings.Contains(key, q) {
			return e, true
		}
	}
	return FAQEntry{}, false
}
