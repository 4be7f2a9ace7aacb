package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"reportflow/pkg/core/config"
	"reportflow/pkg/core/grid"
)

func errUnknownKind(kind string) error   { return fmt.Errorf("unknown derived column type %q", kind) }
func errMissingColumn(name string) error { return fmt.Errorf("column %q not present", name) }
func errBadCondition(cond string) error  { return fmt.Errorf("unsupported condition %q", cond) }

// applyFormula computes a custom_formula column. Three formula shapes are
// supported: a quoted literal, the name of an extracted key value (both become
// constants across all rows), and an arithmetic expression over column names.
func applyFormula(table *grid.Table, spec config.DerivedColumnSpec, keyValues map[string]grid.Value) error {
	formula := strings.TrimSpace(spec.Formula)
	if formula == "" {
		return fmt.Errorf("empty formula")
	}
	sortByDateColumn(table, spec.DateColumn)

	if literal, ok := quotedLiteral(formula); ok {
		table.AddConstantColumn(spec.Name, grid.Text(literal))
		return nil
	}
	if value, ok := keyValues[formula]; ok {
		table.AddConstantColumn(spec.Name, value)
		return nil
	}

	expr, err := bindColumns(formula, table.Columns)
	if err != nil {
		return err
	}
	program, err := parseExpr(expr)
	if err != nil {
		return fmt.Errorf("formula %q: %w", spec.Formula, err)
	}

	column := make([]grid.Value, table.NumRows())
	for i, row := range table.Rows {
		n, err := program.eval(row)
		if err != nil {
			column[i] = grid.Empty()
			continue
		}
		column[i] = grid.Number(n)
	}
	table.AddColumn(spec.Name, column)
	return nil
}

func quotedLiteral(formula string) (string, bool) {
	if len(formula) < 2 {
		return "", false
	}
	first, last := formula[0], formula[len(formula)-1]
	if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
		inner := formula[1 : len(formula)-1]
		if !strings.ContainsRune(inner, rune(first)) {
			return inner, true
		}
	}
	return "", false
}

// bindColumns replaces every whole-word occurrence of a column name with a
// positional reference. Longer names are bound first so a column named
// "total" never swallows part of "total_count". An identifier left unbound
// after substitution is an unknown column and fails the formula.
func bindColumns(formula string, columns []string) (string, error) {
	byLength := make([]int, len(columns))
	for i := range byLength {
		byLength[i] = i
	}
	sort.SliceStable(byLength, func(a, b int) bool {
		return len(columns[byLength[a]]) > len(columns[byLength[b]])
	})

	expr := formula
	for _, idx := range byLength {
		name := columns[idx]
		if name == "" {
			continue
		}
		expr = replaceWholeWord(expr, name, fmt.Sprintf("@%d", idx))
	}

	if unknown := firstUnboundIdentifier(expr); unknown != "" {
		return "", errMissingColumn(unknown)
	}
	return expr, nil
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// replaceWholeWord substitutes occurrences of name that are not flanked by
// identifier runes. Plain strings.ReplaceAll would corrupt longer names that
// merely contain this one.
func replaceWholeWord(s, name, replacement string) string {
	var out strings.Builder
	for {
		pos := strings.Index(s, name)
		if pos < 0 {
			out.WriteString(s)
			return out.String()
		}
		before := []rune(s[:pos])
		after := s[pos+len(name):]
		boundedLeft := len(before) == 0 || !isIdentRune(before[len(before)-1])
		boundedRight := true
		for _, r := range after {
			boundedRight = !isIdentRune(r)
			break
		}
		out.WriteString(s[:pos])
		if boundedLeft && boundedRight {
			out.WriteString(replacement)
		} else {
			out.WriteString(name)
		}
		s = after
	}
}

func firstUnboundIdentifier(expr string) string {
	runes := []rune(expr)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '@' {
			i++
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			i--
			continue
		}
		if unicode.IsDigit(runes[i]) || !isIdentRune(runes[i]) {
			continue
		}
		start := i
		for i < len(runes) && isIdentRune(runes[i]) {
			i++
		}
		return string(runes[start:i])
	}
	return ""
}

// The expression grammar is deliberately small: numbers, bound column
// references, parentheses, unary minus, and the four arithmetic operators.

type exprNode interface {
	eval(row []grid.Value) (float64, error)
}

type numberNode float64

func (n numberNode) eval([]grid.Value) (float64, error) { return float64(n), nil }

type columnNode int

func (c columnNode) eval(row []grid.Value) (float64, error) {
	if int(c) >= len(row) {
		return 0, fmt.Errorf("row too short for column %d", int(c))
	}
	n, ok := row[c].Number()
	if !ok {
		if row[c].IsBlank() {
			return 0, nil
		}
		return 0, fmt.Errorf("non-numeric value %q", row[c].String())
	}
	return n, nil
}

type binaryNode struct {
	op          byte
	left, right exprNode
}

func (b binaryNode) eval(row []grid.Value) (float64, error) {
	l, err := b.left.eval(row)
	if err != nil {
		return 0, err
	}
	r, err := b.right.eval(row)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	default:
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	}
}

type exprParser struct {
	tokens []string
	pos    int
}

func parseExpr(expr string) (exprNode, error) {
	tokens, err := tokenizeExpr(expr)
	if err != nil {
		return nil, err
	}
	p := &exprParser{tokens: tokens}
	node, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	return node, nil
}

func tokenizeExpr(expr string) ([]string, error) {
	var tokens []string
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case strings.ContainsRune("+-*/()", r):
			tokens = append(tokens, string(r))
			i++
		case r == '@' || unicode.IsDigit(r) || r == '.':
			start := i
			if r == '@' {
				i++
			}
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}
	return tokens, nil
}

func (p *exprParser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *exprParser) parseSum() (exprNode, error) {
	node, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok != "+" && tok != "-" {
			return node, nil
		}
		p.pos++
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		node = binaryNode{op: tok[0], left: node, right: right}
	}
}

func (p *exprParser) parseProduct() (exprNode, error) {
	node, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok != "*" && tok != "/" {
			return node, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		node = binaryNode{op: tok[0], left: node, right: right}
	}
}

func (p *exprParser) parseFactor() (exprNode, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of formula")
	case tok == "-":
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: '-', left: numberNode(0), right: inner}, nil
	case tok == "(":
		p.pos++
		node, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return node, nil
	case tok[0] == '@':
		p.pos++
		idx, err := strconv.Atoi(tok[1:])
		if err != nil {
			return nil, fmt.Errorf("bad column reference %q", tok)
		}
		return columnNode(idx), nil
	default:
		p.pos++
		n, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", tok)
		}
		return numberNode(n), nil
	}
}
