package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/stellarlinkco/agentbox/internal/tool"
)

// NewCalculator evaluates arithmetic expressions: numbers, + - * /,
// parentheses, unary minus, and sqrt/pow/abs.
func NewCalculator() tool.Tool {
	return tool.Func{
		ToolName: "calculator",
		Desc:     "Perform mathematical calculations, e.g. sqrt(144) or (3+4)*2",
		Fn: func(ctx context.Context, input string) (tool.Result, error) {
			value, err := Evaluate(input)
			if err != nil {
				return tool.Fail(fmt.Sprintf("evaluate %q: %v", input, err)), nil
			}
			return tool.Ok(map[string]any{
				"expression": input,
				"result":     value,
			}), nil
		},
	}
}

// Evaluate parses and computes one arithmetic expression.
func Evaluate(expr string) (float64, error) {
	p := &exprParser{input: expr}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return value, nil
}

// exprParser is a small recursive-descent parser over a byte cursor.
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.peek() == '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case p.peek() == '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.peek() == '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.peek() == '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	switch {
	case p.peek() == '-':
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	case p.peek() == '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if err := p.expect(')'); err != nil {
			return 0, err
		}
		return value, nil
	case unicode.IsLetter(rune(p.peek())):
		return p.parseCall()
	default:
		return p.parseNumber()
	}
}

func (p *exprParser) parseCall() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && unicode.IsLetter(rune(p.input[p.pos])) {
		p.pos++
	}
	name := strings.ToLower(p.input[start:p.pos])

	if err := p.expect('('); err != nil {
		return 0, fmt.Errorf("function %s: %w", name, err)
	}
	args := []float64{}
	p.skipSpace()
	if p.peek() != ')' {
		for {
			value, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, value)
			p.skipSpace()
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
	}
	if err := p.expect(')'); err != nil {
		return 0, err
	}

	switch name {
	case "sqrt":
		if len(args) != 1 {
			return 0, fmt.Errorf("sqrt takes 1 argument, got %d", len(args))
		}
		if args[0] < 0 {
			return 0, fmt.Errorf("sqrt of negative number")
		}
		return math.Sqrt(args[0]), nil
	case "pow":
		if len(args) != 2 {
			return 0, fmt.Errorf("pow takes 2 arguments, got %d", len(args))
		}
		return math.Pow(args[0], args[1]), nil
	case "abs":
		if len(args) != 1 {
			return 0, fmt.Errorf("abs takes 1 argument, got %d", len(args))
		}
		return math.Abs(args[0]), nil
	default:
		return 0, fmt.Errorf("unknown function %q", name)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		if p.pos >= len(p.input) {
			return 0, fmt.Errorf("unexpected end of expression")
		}
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

func (p *exprParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return fmt.Errorf("expected %q at position %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}
