package quotes

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "quotebot/pkg/logx"
)

// Sources a quote can come from.
const (
	SourceLocal = "local"
	SourceAI    = "ai"
)

// generatedChance is the probability of reaching for the generator when the
// caller has no preference.
const generatedChance = 0.3

// Quote is one deliverable quote.
type Quote struct {
	Text     string `json:"text"`
	Author   string `json:"author"`
	Language string `json:"language"`
	Source   string `json:"source,omitempty"`
}

// Generator produces a fresh quote for a concrete language ("en" or "th").
type Generator interface {
	Generate(ctx context.Context, lang string) (Quote, error)
}

type Config struct {
	File            string // local cache file (JSON)
	PreferGenerated bool
}

// Service picks quotes from the local cache or the generator.
//
// Get never fails: generation errors fall back to a static per-language
// quote, an empty or unreadable cache falls through to generation.
type Service struct {
	cfg Config
	gen Generator
	log logx.Logger

	// guards cache file writes from Add
	fmu sync.Mutex
}

func New(cfg Config, gen Generator, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, gen: gen, log: log}
}

// Get returns a quote for the language preference ("en", "th" or "both").
func (s *Service) Get(ctx context.Context, language string, preferGenerated bool) Quote {
	if preferGenerated || s.cfg.PreferGenerated || rand.Float64() < generatedChance {
		q := s.generated(ctx, language)
		q.Source = SourceAI
		return q
	}
	q := s.local(ctx, language)
	q.Source = SourceLocal
	return q
}

func (s *Service) local(ctx context.Context, language string) Quote {
	all, err := s.readCache()
	if err != nil {
		s.log.Warn("quote cache unreadable, generating instead", logx.Err(err))
		return s.generated(ctx, language)
	}

	pool := all
	if language != "both" {
		pool = make([]Quote, 0, len(all))
		for _, q := range all {
			if q.Language == language {
				pool = append(pool, q)
			}
		}
	}
	if len(pool) == 0 {
		return s.generated(ctx, language)
	}
	return pool[rand.IntN(len(pool))]
}

func (s *Service) generated(ctx context.Context, language string) Quote {
	lang := language
	if lang == "both" {
		if rand.IntN(2) == 0 {
			lang = "en"
		} else {
			lang = "th"
		}
	}
	if s.gen == nil {
		return Fallback(lang)
	}
	q, err := s.gen.Generate(ctx, lang)
	if err != nil {
		s.log.Warn("quote generation failed, using fallback", logx.Err(err))
		return Fallback(lang)
	}
	return q
}

type cacheFile struct {
	Quotes []Quote `json:"quotes"`
}

func (s *Service) readCache() ([]Quote, error) {
	path := strings.TrimSpace(s.cfg.File)
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f cacheFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return f.Quotes, nil
}

// Add appends a quote to the local cache file.
func (s *Service) Add(text, author, language string) error {
	s.fmu.Lock()
	defer s.fmu.Unlock()

	f := cacheFile{}
	if got, err := s.readCache(); err == nil {
		f.Quotes = got
	}
	if author == "" {
		author = "Unknown"
	}
	if language == "" {
		language = "en"
	}
	f.Quotes = append(f.Quotes, Quote{Text: text, Author: author, Language: language})

	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.cfg.File, b, 0o644)
}

// Fallback returns the static quote for a language; used whenever
// generation is unavailable or fails.
func Fallback(lang string) Quote {
	if lang == "th" {
		return Quote{
			Text:     "ทุกวันเป็นโอกาสใหม่ในการเริ่มต้นใหม่",
			Author:   "ไม่ระบุ",
			Language: "th",
		}
	}
	return Quote{
		Text:     "Every day is a new opportunity to start fresh.",
		Author:   "Unknown",
		Language: "en",
	}
}
