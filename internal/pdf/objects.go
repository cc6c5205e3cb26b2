package pdf

import (
	"fmt"
	"strconv"
)

// Object model used while reading a file. Values are plain Go types:
// int64, float64, bool, nil, strval (string bytes), name, ref, []any, dict
// and *streamObj.
type (
	name   string
	strval []byte
	dict   map[string]any
	ref    struct{ num, gen int }
)

type streamObj struct {
	dict dict
	data []byte
}

// lexer walks a byte slice of PDF syntax.
type lexer struct {
	data []byte
	pos  int
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipWS() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		break
	}
}

func (l *lexer) peek() (byte, bool) {
	l.skipWS()
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

// parseObject reads the next object. Indirect references ("N G R") are
// recognized by lookahead from the leading integer.
func (l *lexer) parseObject() (any, error) {
	c, ok := l.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of data")
	}
	switch {
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.parseDict()
		}
		return l.parseHexString()
	case c == '(':
		return l.parseLiteralString()
	case c == '[':
		return l.parseArray()
	case c == '/':
		return l.parseName()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.parseNumberOrRef()
	default:
		kw := l.parseKeyword()
		switch kw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected keyword %q at %d", kw, l.pos)
	}
}

func (l *lexer) parseKeyword() string {
	l.skipWS()
	start := l.pos
	for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) parseName() (name, error) {
	l.skipWS()
	if l.pos >= len(l.data) || l.data[l.pos] != '/' {
		return "", fmt.Errorf("expected name at %d", l.pos)
	}
	l.pos++
	start := l.pos
	for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	raw := string(l.data[start:l.pos])
	// #xx escapes inside names.
	if idx := indexByte(raw, '#'); idx >= 0 {
		var out []byte
		for i := 0; i < len(raw); i++ {
			if raw[i] == '#' && i+2 < len(raw) {
				if v, err := strconv.ParseUint(raw[i+1:i+3], 16, 8); err == nil {
					out = append(out, byte(v))
					i += 2
					continue
				}
			}
			out = append(out, raw[i])
		}
		raw = string(out)
	}
	return name(raw), nil
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func (l *lexer) parseNumberOrRef() (any, error) {
	l.skipWS()
	start := l.pos
	float := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '.' {
			float = true
		} else if !(c == '+' || c == '-' || (c >= '0' && c <= '9')) {
			break
		}
		l.pos++
	}
	tok := string(l.data[start:l.pos])
	if float {
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", tok)
		}
		return f, nil
	}
	i, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", tok)
	}
	// Lookahead for "gen R" to recognize an indirect reference.
	save := l.pos
	l.skipWS()
	genStart := l.pos
	for l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
		l.pos++
	}
	if l.pos > genStart {
		genTok := string(l.data[genStart:l.pos])
		afterGen := l.pos
		l.skipWS()
		if l.pos < len(l.data) && l.data[l.pos] == 'R' &&
			(l.pos+1 >= len(l.data) || isWhitespace(l.data[l.pos+1]) || isDelimiter(l.data[l.pos+1])) {
			gen, _ := strconv.Atoi(genTok)
			l.pos++
			return ref{num: int(i), gen: gen}, nil
		}
		l.pos = afterGen
		_ = genTok
	}
	l.pos = save
	return i, nil
}

func (l *lexer) parseLiteralString() (strval, error) {
	l.skipWS()
	if l.data[l.pos] != '(' {
		return nil, fmt.Errorf("expected string at %d", l.pos)
	}
	l.pos++
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.data) {
				return nil, fmt.Errorf("unterminated string escape")
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, e)
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; k++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out, nil
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return nil, fmt.Errorf("unterminated string")
}

func (l *lexer) parseHexString() (strval, error) {
	l.skipWS()
	if l.data[l.pos] != '<' {
		return nil, fmt.Errorf("expected hex string at %d", l.pos)
	}
	l.pos++
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if !isWhitespace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	if l.pos >= len(l.data) {
		return nil, fmt.Errorf("unterminated hex string")
	}
	l.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad hex string digit %q", digits[i:i+2])
		}
		out[i/2] = byte(v)
	}
	return out, nil
}

func (l *lexer) parseArray() ([]any, error) {
	l.skipWS()
	if l.data[l.pos] != '[' {
		return nil, fmt.Errorf("expected array at %d", l.pos)
	}
	l.pos++
	var out []any
	for {
		c, ok := l.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated array")
		}
		if c == ']' {
			l.pos++
			return out, nil
		}
		item, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
}

func (l *lexer) parseDict() (dict, error) {
	l.skipWS()
	if l.pos+1 >= len(l.data) || l.data[l.pos] != '<' || l.data[l.pos+1] != '<' {
		return nil, fmt.Errorf("expected dict at %d", l.pos)
	}
	l.pos += 2
	out := make(dict)
	for {
		c, ok := l.peek()
		if !ok {
			return nil, fmt.Errorf("unterminated dict")
		}
		if c == '>' {
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
				l.pos += 2
				return out, nil
			}
			return nil, fmt.Errorf("malformed dict close at %d", l.pos)
		}
		key, err := l.parseName()
		if err != nil {
			return nil, err
		}
		val, err := l.parseObject()
		if err != nil {
			return nil, err
		}
		out[string(key)] = val
	}
}

// convenience accessors

func (d dict) intVal(key string) (int64, bool) {
	switch v := d[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func (d dict) nameVal(key string) string {
	if n, ok := d[key].(name); ok {
		return string(n)
	}
	return ""
}

func (d dict) strVal(key string) ([]byte, bool) {
	if s, ok := d[key].(strval); ok {
		return []byte(s), true
	}
	return nil, false
}

func numToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
