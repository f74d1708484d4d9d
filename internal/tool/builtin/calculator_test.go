package builtin

import (
	"context"
	"math"
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2+2", 4},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-3 + 5", 2},
		{"2 * -3", -6},
		{"sqrt(144)", 12},
		{"pow(2, 10)", 1024},
		{"abs(-7.5)", 7.5},
		{"sqrt(pow(3, 2) + pow(4, 2))", 5},
		{"1.5 + 2.25", 3.75},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.expr, err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"division by zero", "1/0"},
		{"unbalanced paren", "(2+3"},
		{"trailing garbage", "2+3 x"},
		{"empty", ""},
		{"unknown function", "log(10)"},
		{"sqrt negative", "sqrt(-1)"},
		{"pow arity", "pow(2)"},
		{"letters only", "import os"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluate(tt.expr); err == nil {
				t.Errorf("Evaluate(%q) succeeded, want error", tt.expr)
			}
		})
	}
}

func TestCalculator_Tool(t *testing.T) {
	calc := NewCalculator()
	if calc.Name() != "calculator" {
		t.Errorf("name = %q", calc.Name())
	}

	res, err := calc.Invoke(context.Background(), "sqrt(144)")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !res.Success {
		t.Fatalf("result failed: %s", res.Error)
	}
	if res.Payload["result"] != 12.0 {
		t.Errorf("result = %v, want 12", res.Payload["result"])
	}

	res, err = calc.Invoke(context.Background(), "1/0")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Success {
		t.Error("division by zero should fail")
	}
	if !strings.Contains(res.Error, "division by zero") {
		t.Errorf("error = %q", res.Error)
	}
}
