package main

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentweave/core"
	"github.com/hupe1980/agentweave/tool"
)

type calculatorArgs struct {
	X         float64 `json:"x" jsonschema:"description=First operand"`
	Y         float64 `json:"y" jsonschema:"description=Second operand"`
	Operation string  `json:"operation" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide,description=Arithmetic operation"`
}

var errDivisionByZero = errors.New("division by zero")

func calculate(_ *core.ToolContext, a calculatorArgs) (float64, error) {
	switch a.Operation {
	case "add":
		return a.X + a.Y, nil
	case "subtract":
		return a.X - a.Y, nil
	case "multiply":
		return a.X * a.Y, nil
	case "divide":
		if a.Y == 0 {
			return 0, errDivisionByZero
		}
		return a.X / a.Y, nil
	default:
		return 0, fmt.Errorf("unsupported operation %q", a.Operation)
	}
}

func newCalculatorTool() (tool.Tool, error) {
	return tool.NewTypedTool("calculator", "Perform basic arithmetic on two numbers", calculate)
}

type conversionArgs struct {
	Value float64 `json:"value" jsonschema:"description=Quantity to convert"`
	From  string  `json:"from" jsonschema:"enum=km,enum=mi,enum=m,enum=ft,enum=kg,enum=lb,enum=c,enum=f"`
	To    string  `json:"to" jsonschema:"enum=km,enum=mi,enum=m,enum=ft,enum=kg,enum=lb,enum=c,enum=f"`
}

type unit struct {
	dimension string
	toBase    func(float64) float64
	fromBase  func(float64) float64
}

func linear(factor float64) (func(float64) float64, func(float64) float64) {
	return func(v float64) float64 { return v * factor }, func(v float64) float64 { return v / factor }
}

var units = func() map[string]unit {
	m := map[string]unit{}
	add := func(name, dim string, factor float64) {
		to, from := linear(factor)
		m[name] = unit{dimension: dim, toBase: to, fromBase: from}
	}
	add("m", "length", 1)
	add("km", "length", 1000)
	add("ft", "length", 0.3048)
	add("mi", "length", 1609.344)
	add("kg", "mass", 1)
	add("lb", "mass", 0.45359237)
	m["c"] = unit{dimension: "temperature", toBase: func(v float64) float64 { return v }, fromBase: func(v float64) float64 { return v }}
	m["f"] = unit{
		dimension: "temperature",
		toBase:    func(v float64) float64 { return (v - 32) * 5 / 9 },
		fromBase:  func(v float64) float64 { return v*9/5 + 32 },
	}
	return m
}()

func convert(_ *core.ToolContext, a conversionArgs) (float64, error) {
	from, ok := units[a.From]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", a.From)
	}
	to, ok := units[a.To]
	if !ok {
		return 0, fmt.Errorf("unknown unit %q", a.To)
	}
	if from.dimension != to.dimension {
		return 0, fmt.Errorf("cannot convert %s (%s) to %s (%s)", a.From, from.dimension, a.To, to.dimension)
	}
	return to.fromBase(from.toBase(a.Value)), nil
}

func newConverterTool() (tool.Tool, error) {
	return tool.NewTypedTool("convert_units", "Convert a quantity between units of length, mass or temperature", convert)
}

func builtinTools() ([]tool.Tool, error) {
	calc, err := newCalculatorTool()
	if err != nil {
		return nil, err
	}
	conv, err := newConverterTool()
	if err != nil {
		return nil, err
	}
	return []tool.Tool{calc, conv}, nil
}
