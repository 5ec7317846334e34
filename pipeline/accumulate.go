package pipeline

import (
	"context"
	"fmt"
	"strings"
)

// Accumulate runs steps in order where every step receives the transcript of
// the original input and all previous outputs, separated by blank lines.
// When budget > 0 the transcript passed to a step is cut to its last budget
// runes. The output of the last step is returned.
func Accumulate(budget int, steps ...Step[string, string]) Step[string, string] {
	chain := append([]Step[string, string](nil), steps...)

	return Func[string, string](func(ctx context.Context, in string) (string, error) {
		transcript := []string{in}
		last := in

		for i, s := range chain {
			if err := ctx.Err(); err != nil {
				return "", err
			}

			out, err := s.Apply(ctx, tail(strings.Join(transcript, "\n\n"), budget))
			if err != nil {
				return "", fmt.Errorf("accumulate step %d: %w", i, err)
			}

			transcript = append(transcript, out)
			last = out
		}

		return last, nil
	})
}

func tail(s string, budget int) string {
	if budget <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= budget {
		return s
	}
	return string(r[len(r)-budget:])
}
