package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Source is an index expression as carried by batch metadata: either an
// Expression or its serialized form.
type Source interface {
	// Expr returns the decoded expression.
	Expr() (Expression, error)
}

var (
	_ Source = Expression(nil)
	_ Source = Encoded(nil)
)

// Encoded is a serialized Expression, as produced by Expression.Encode.
type Encoded []byte

// Expr decodes the expression.
func (b Encoded) Expr() (Expression, error) {
	return Decode(b)
}

// Encode serializes the expression into its transport form.
func (e Expression) Encode() (Encoded, error) {
	data, err := json.Marshal([]Selector(e))
	if err != nil {
		return nil, fmt.Errorf("failed to encode index expression: %w", err)
	}

	return Encoded(data), nil
}

// Decode deserializes an expression produced by Expression.Encode.
//
// Returns:
//   - Expression: Decoded expression
//   - error: ErrMalformed wrapping the underlying failure
func Decode(data []byte) (Expression, error) {
	var sel []Selector
	if err := json.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for i, s := range sel {
		if s.Step < 0 {
			return nil, fmt.Errorf("%w: selector %d: %w", ErrMalformed, i, ErrInvalidStep)
		}
	}

	return Expression(sel), nil
}

// String formats the expression in slice notation, e.g. "0:32,5,:,::2".
func (e Expression) String() string {
	parts := make([]string, len(e))
	for i, s := range e {
		parts[i] = s.String()
	}

	return strings.Join(parts, ",")
}

// String formats the selector in slice notation.
func (s Selector) String() string {
	if s.Point {
		return strconv.Itoa(s.Start)
	}

	var b strings.Builder
	if s.Start != 0 {
		b.WriteString(strconv.Itoa(s.Start))
	}
	b.WriteByte(':')
	if s.Stop != End {
		b.WriteString(strconv.Itoa(s.Stop))
	}
	if s.step() != 1 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(s.step()))
	}

	return b.String()
}

// Parse reads an expression in slice notation.
//
// Selectors are comma separated; each is either an integer position or
// start:stop[:step] with any part omitted. Surrounding brackets are accepted.
//
// Example:
//
//	expr, err := index.Parse("[0:32, 7, :, 10::2]")
func Parse(text string) (Expression, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "["), "]")
	if strings.TrimSpace(text) == "" {
		return Expression{}, nil
	}

	tokens := strings.Split(text, ",")
	expr := make(Expression, 0, len(tokens))
	for _, tok := range tokens {
		sel, err := parseSelector(strings.TrimSpace(tok))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrMalformed, tok, err)
		}
		expr = append(expr, sel)
	}

	return expr, nil
}

var errNegative = errors.New("negative positions are not supported")

func parseSelector(tok string) (Selector, error) {
	if !strings.Contains(tok, ":") {
		i, err := strconv.Atoi(tok)
		if err != nil {
			return Selector{}, err
		}
		if i < 0 {
			return Selector{}, errNegative
		}

		return At(i), nil
	}

	parts := strings.Split(tok, ":")
	if len(parts) > 3 {
		return Selector{}, fmt.Errorf("too many ':' in %q", tok)
	}

	sel := Selector{Start: 0, Stop: End, Step: 1}
	fields := []*int{&sel.Start, &sel.Stop, &sel.Step}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return Selector{}, err
		}
		if v < 0 && i < 2 {
			return Selector{}, errNegative
		}
		*fields[i] = v
	}
	if sel.Step <= 0 {
		return Selector{}, ErrInvalidStep
	}

	return sel, nil
}
