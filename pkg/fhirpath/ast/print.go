package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders n back to FHIRPath source text. It does not reproduce the
// original whitespace or comments, but reparsing its output always yields a
// structurally equivalent tree.
func Print(n Node) string {
	var sb strings.Builder
	writeNode(&sb, n)
	return sb.String()
}

func writeNode(sb *strings.Builder, n Node) {
	switch v := n.(type) {
	case nil:
		return
	case *Literal:
		writeLiteral(sb, v)
	case *Identifier:
		writeIdentifier(sb, v.Name)
	case *Variable:
		sb.WriteByte('$')
		sb.WriteString(v.Name)
	case *ExternalConstant:
		sb.WriteByte('%')
		writeEnvName(sb, v.Name)
	case *Invocation:
		writeNode(sb, v.Target)
		sb.WriteByte('.')
		writeNode(sb, v.Step)
	case *ThisInvocation:
		sb.WriteString("$this")
	case *IndexInvocation:
		sb.WriteString("$index")
	case *TotalInvocation:
		sb.WriteString("$total")
	case *FunctionCall:
		writeIdentifier(sb, v.Name)
		sb.WriteByte('(')
		for i, a := range v.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeNode(sb, a)
		}
		sb.WriteByte(')')
	case *Indexer:
		writeNode(sb, v.Target)
		sb.WriteByte('[')
		writeNode(sb, v.Index)
		sb.WriteByte(']')
	case *Unary:
		if v.Op == UnaryMinus {
			sb.WriteByte('-')
		} else {
			sb.WriteByte('+')
		}
		writeNode(sb, v.Operand)
	case *Binary:
		writeNode(sb, v.Left)
		sb.WriteByte(' ')
		sb.WriteString(binaryOpText(v.Op))
		sb.WriteByte(' ')
		writeNode(sb, v.Right)
	case *IsExpr:
		writeNode(sb, v.Expr)
		sb.WriteString(" is ")
		writeTypeSpecifier(sb, v.Type)
	case *AsExpr:
		writeNode(sb, v.Expr)
		sb.WriteString(" as ")
		writeTypeSpecifier(sb, v.Type)
	case *Paren:
		sb.WriteByte('(')
		writeNode(sb, v.Inner)
		sb.WriteByte(')')
	default:
		fmt.Fprintf(sb, "<?%T>", n)
	}
}

func writeTypeSpecifier(sb *strings.Builder, t TypeSpecifier) {
	if t.Namespace != "" {
		sb.WriteString(t.Namespace)
		sb.WriteByte('.')
	}
	sb.WriteString(t.Name)
}

func writeIdentifier(sb *strings.Builder, name string) {
	if needsDelimiting(name) {
		sb.WriteByte('`')
		sb.WriteString(escapeQuoted(name, '`'))
		sb.WriteByte('`')
		return
	}
	sb.WriteString(name)
}

func needsDelimiting(name string) bool {
	if name == "" {
		return true
	}
	for i, r := range name {
		if r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return true
	}
	return false
}

func writeEnvName(sb *strings.Builder, name string) {
	if needsDelimiting(name) {
		sb.WriteByte('\'')
		sb.WriteString(escapeQuoted(name, '\''))
		sb.WriteByte('\'')
		return
	}
	sb.WriteString(name)
}

func escapeQuoted(s string, quote byte) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case rune(quote):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func writeLiteral(sb *strings.Builder, l *Literal) {
	switch l.Kind {
	case LitNull:
		sb.WriteString("{}")
	case LitBoolean:
		sb.WriteString(l.Text)
	case LitString:
		sb.WriteByte('\'')
		sb.WriteString(escapeQuoted(l.Text, '\''))
		sb.WriteByte('\'')
	case LitNumber:
		sb.WriteString(l.Text)
	case LitDate:
		sb.WriteByte('@')
		sb.WriteString(l.Text)
	case LitTime:
		sb.WriteString("@T")
		sb.WriteString(l.Text)
	case LitDateTime:
		sb.WriteByte('@')
		sb.WriteString(l.Text)
	case LitQuantity:
		sb.WriteString(l.Text)
	default:
		sb.WriteString(strconv.Quote(l.Text))
	}
}

func binaryOpText(op BinaryOp) string {
	switch op {
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpDivInt:
		return "div"
	case OpMod:
		return "mod"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpConcat:
		return "&"
	case OpUnion:
		return "|"
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLte:
		return "<="
	case OpGte:
		return ">="
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpEquiv:
		return "~"
	case OpNEquiv:
		return "!~"
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpXor:
		return "xor"
	case OpImplies:
		return "implies"
	default:
		return "?"
	}
}
