package captcha

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/groupwarden/resources"
)

// Difficulty selects the operand ranges and, on hard, mixes in trivia.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(s)) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Question is a generated challenge. Answer is the canonical expected reply,
// Options holds the correct answer plus decoys for button rendering, already
// shuffled. Trivia questions carry no options and are answered free-text.
type Question struct {
	Prompt  string
	Answer  string
	Options []string
}

type triviaEntry struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

type Generator struct {
	rng *rand.Rand

	triviaOnce sync.Once
	trivia     []triviaEntry
	triviaErr  error
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces a fresh question for the given difficulty. Easy and
// medium are always arithmetic; hard alternates between harder arithmetic
// and trivia.
func (g *Generator) Generate(difficulty Difficulty) (Question, error) {
	switch difficulty {
	case DifficultyEasy:
		return g.arithmetic(10), nil
	case DifficultyHard:
		if g.rng.Intn(2) == 0 {
			return g.arithmetic(100), nil
		}
		return g.triviaQuestion()
	default:
		return g.arithmetic(50), nil
	}
}

func (g *Generator) arithmetic(max int) Question {
	a := g.rng.Intn(max) + 1
	b := g.rng.Intn(max) + 1

	var answer int
	var prompt string
	switch g.rng.Intn(3) {
	case 0:
		answer = a + b
		prompt = fmt.Sprintf("What is %d + %d?", a, b)
	case 1:
		if a < b {
			a, b = b, a
		}
		answer = a - b
		prompt = fmt.Sprintf("What is %d - %d?", a, b)
	default:
		cap := max / 10
		if cap > 12 {
			cap = 12
		}
		if cap < 2 {
			cap = 2
		}
		a = g.rng.Intn(cap) + 1
		b = g.rng.Intn(cap) + 1
		answer = a * b
		prompt = fmt.Sprintf("What is %d × %d?", a, b)
	}

	return Question{
		Prompt:  prompt,
		Answer:  strconv.Itoa(answer),
		Options: g.options(answer),
	}
}

// options returns the correct answer plus three distinct non-negative decoys
// within ±10, shuffled.
func (g *Generator) options(answer int) []string {
	seen := map[int]struct{}{answer: {}}
	values := []int{answer}
	for len(values) < 4 {
		decoy := answer + g.rng.Intn(21) - 10
		if decoy < 0 {
			decoy = g.rng.Intn(10)
		}
		if _, dup := seen[decoy]; dup {
			continue
		}
		seen[decoy] = struct{}{}
		values = append(values, decoy)
	}
	g.rng.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})

	opts := make([]string, len(values))
	for i, v := range values {
		opts[i] = strconv.Itoa(v)
	}
	return opts
}

func (g *Generator) triviaQuestion() (Question, error) {
	g.triviaOnce.Do(func() {
		data, err := resources.FS.ReadFile("captcha/trivia.yml")
		if err != nil {
			g.triviaErr = errors.WithMessage(err, "can't read trivia questions")
			return
		}
		if err := yaml.Unmarshal(data, &g.trivia); err != nil {
			g.triviaErr = errors.WithMessage(err, "can't parse trivia questions")
		}
	})
	if g.triviaErr != nil {
		return Question{}, g.triviaErr
	}
	if len(g.trivia) == 0 {
		return Question{}, errors.New("no trivia questions available")
	}
	entry := g.trivia[g.rng.Intn(len(g.trivia))]
	return Question{Prompt: entry.Question, Answer: entry.Answer}, nil
}

// Verify compares a free-text reply against the expected answer, ignoring
// case and surrounding whitespace.
func Verify(expected, got string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(got))
}
