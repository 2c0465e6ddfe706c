package captcha

import (
	"strconv"
	"strings"
	"testing"
)

func TestGenerateArithmetic(t *testing.T) {
	t.Parallel()
	gen := NewGenerator(1)
	for i := 0; i < 50; i++ {
		q, err := gen.Generate(DifficultyEasy)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !strings.HasPrefix(q.Prompt, "What is ") {
			t.Fatalf("unexpected prompt %q", q.Prompt)
		}
		answer, err := strconv.Atoi(q.Answer)
		if err != nil {
			t.Fatalf("answer %q is not numeric", q.Answer)
		}
		if answer < 0 {
			t.Fatalf("negative answer %d for %q", answer, q.Prompt)
		}
		if computed := evalArithmeticPrompt(t, q.Prompt); computed != answer {
			t.Fatalf("prompt %q computes to %d but answer is %d", q.Prompt, computed, answer)
		}
	}
}

// evalArithmeticPrompt recomputes the expected answer from a
// "What is <a> <op> <b>?" prompt.
func evalArithmeticPrompt(t *testing.T, prompt string) int {
	t.Helper()
	body := strings.TrimSuffix(strings.TrimPrefix(prompt, "What is "), "?")
	fields := strings.Fields(body)
	if len(fields) != 3 {
		t.Fatalf("can't parse prompt %q", prompt)
	}
	a, errA := strconv.Atoi(fields[0])
	b, errB := strconv.Atoi(fields[2])
	if errA != nil || errB != nil {
		t.Fatalf("non-numeric operands in %q", prompt)
	}
	switch fields[1] {
	case "+":
		return a + b
	case "-":
		return a - b
	case "×":
		return a * b
	default:
		t.Fatalf("unknown operator in %q", prompt)
		return 0
	}
}

func TestOptionsContainAnswer(t *testing.T) {
	t.Parallel()
	gen := NewGenerator(7)
	for i := 0; i < 50; i++ {
		q, err := gen.Generate(DifficultyMedium)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(q.Options) != 4 {
			t.Fatalf("got %d options, want 4", len(q.Options))
		}
		seen := map[string]struct{}{}
		found := false
		for _, opt := range q.Options {
			if _, dup := seen[opt]; dup {
				t.Fatalf("duplicate option %q in %v", opt, q.Options)
			}
			seen[opt] = struct{}{}
			if v, err := strconv.Atoi(opt); err != nil || v < 0 {
				t.Fatalf("option %q invalid", opt)
			}
			if opt == q.Answer {
				found = true
			}
		}
		if !found {
			t.Fatalf("answer %q missing from options %v", q.Answer, q.Options)
		}
	}
}

func TestGenerateHardMixesTrivia(t *testing.T) {
	t.Parallel()
	gen := NewGenerator(42)
	sawTrivia := false
	sawMath := false
	for i := 0; i < 100; i++ {
		q, err := gen.Generate(DifficultyHard)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if strings.HasPrefix(q.Prompt, "What is ") && len(q.Options) == 4 {
			sawMath = true
		} else {
			sawTrivia = true
			if len(q.Options) != 0 {
				t.Fatalf("trivia question carries options: %v", q.Options)
			}
			if q.Answer == "" {
				t.Fatal("trivia question with empty answer")
			}
		}
	}
	if !sawTrivia || !sawMath {
		t.Fatalf("hard difficulty should mix kinds, trivia=%v math=%v", sawTrivia, sawMath)
	}
}

func TestParseDifficulty(t *testing.T) {
	t.Parallel()
	cases := map[string]Difficulty{
		"easy":    DifficultyEasy,
		"HARD":    DifficultyHard,
		"medium":  DifficultyMedium,
		"bogus":   DifficultyMedium,
		"":        DifficultyMedium,
	}
	for in, want := range cases {
		if got := ParseDifficulty(in); got != want {
			t.Errorf("ParseDifficulty(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		expected, got string
		want          bool
	}{
		{"paris", "Paris", true},
		{"8", " 8 ", true},
		{"jupiter", "JUPITER", true},
		{"7", "seven", false},
		{"honey", "", false},
	}
	for _, tc := range cases {
		if got := Verify(tc.expected, tc.got); got != tc.want {
			t.Errorf("Verify(%q, %q) = %v, want %v", tc.expected, tc.got, got, tc.want)
		}
	}
}
