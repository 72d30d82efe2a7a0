package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tangzhangming/treeopt/internal/types"
)

// Format 把节点打印成近似 C# 的单行文本，用于日志和测试失败信息
func Format(n Node) string {
	var p printer
	p.node(n)
	return p.sb.String()
}

type printer struct {
	sb strings.Builder
}

func (p *printer) write(s string) { p.sb.WriteString(s) }

func (p *printer) list(nodes []Node) {
	for i, n := range nodes {
		if i > 0 {
			p.write(", ")
		}
		p.node(n)
	}
}

func (p *printer) vars(vars []*Parameter) {
	for _, v := range vars {
		p.write(v.Type().String())
		p.write(" ")
		p.write(v.Name)
		p.write("; ")
	}
}

func formatValue(v any, t *types.Type) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case *types.Exception:
		return "new " + x.Type.String() + "()"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e, nil)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	if t != nil && types.NonNullable(t).Kind() == types.Char {
		if c, ok := v.(uint16); ok {
			return strconv.QuoteRune(rune(c))
		}
	}
	return fmt.Sprint(v)
}

func (p *printer) node(n Node) {
	if n == nil {
		p.write("<nil>")
		return
	}
	switch x := n.(type) {
	case *Constant:
		p.write(formatValue(x.Value, x.Type()))
	case *Default:
		p.write("default(" + x.Type().String() + ")")
	case *Parameter:
		p.write(x.Name)
	case *RuntimeVariables:
		p.write("RuntimeVariables(")
		for i, v := range x.Variables {
			if i > 0 {
				p.write(", ")
			}
			p.write(v.Name)
		}
		p.write(")")
	case *Unary:
		p.unary(x)
	case *Binary:
		p.binary(x)
	case *TypeBinary:
		p.write("(")
		p.node(x.Operand)
		if x.Op == TypeEqual {
			p.write(" is exactly ")
		} else {
			p.write(" is ")
		}
		p.write(x.TypeOperand.String())
		p.write(")")
	case *Block:
		p.write("{ ")
		p.vars(x.Variables)
		for _, e := range x.Expressions {
			p.node(e)
			p.write("; ")
		}
		p.write("}")
	case *Conditional:
		p.write("(")
		p.node(x.Test)
		p.write(" ? ")
		p.node(x.IfTrue)
		p.write(" : ")
		p.node(x.IfFalse)
		p.write(")")
	case *Try:
		p.write("try { ")
		p.node(x.Body)
		p.write(" }")
		for _, h := range x.Handlers {
			p.write(" catch (" + h.Test.String())
			if h.Variable != nil {
				p.write(" " + h.Variable.Name)
			}
			p.write(")")
			if h.Filter != nil {
				p.write(" when (")
				p.node(h.Filter)
				p.write(")")
			}
			p.write(" { ")
			p.node(h.Body)
			p.write(" }")
		}
		if x.Fault != nil {
			p.write(" fault { ")
			p.node(x.Fault)
			p.write(" }")
		}
		if x.Finally != nil {
			p.write(" finally { ")
			p.node(x.Finally)
			p.write(" }")
		}
	case *Throw:
		if x.Value == nil {
			p.write("throw")
			return
		}
		p.write("throw ")
		p.node(x.Value)
	case *Lambda:
		p.write("(")
		for i, v := range x.Parameters {
			if i > 0 {
				p.write(", ")
			}
			if v.ByRef {
				p.write("ref ")
			}
			p.write(v.Name)
		}
		p.write(") => ")
		p.node(x.Body)
	case *Invocation:
		p.write("(")
		p.node(x.Expression)
		p.write(")(")
		p.list(x.Arguments)
		p.write(")")
	case *Quote:
		p.write("quote(")
		p.node(x.Operand)
		p.write(")")
	case *Call:
		p.receiver(x.Object, x.Method)
		p.write(x.Method.Name)
		p.write("(")
		p.list(x.Arguments)
		p.write(")")
	case *MemberAccess:
		p.receiver(x.Object, x.Member)
		p.write(x.Member.Name)
	case *Index:
		p.node(x.Object)
		p.write("[")
		p.list(x.Arguments)
		p.write("]")
	case *New:
		p.write("new " + x.Type().String() + "(")
		p.list(x.Arguments)
		p.write(")")
	case *NewArray:
		p.write("new " + x.Type().Elem().String())
		if x.Bounds {
			p.write("[")
			p.list(x.Expressions)
			p.write("]")
			return
		}
		p.write("[] {")
		p.list(x.Expressions)
		p.write("}")
	case *ListInit:
		p.node(x.NewExpr)
		p.write(" {")
		p.inits(x.Initializers)
		p.write("}")
	case *MemberInit:
		p.node(x.NewExpr)
		p.write(" {")
		p.bindings(x.Bindings)
		p.write("}")
	case *Dynamic:
		p.write("dynamic " + x.Binder.Name + "(")
		p.list(x.Arguments)
		p.write(")")
	case *Label:
		p.write(x.Target.Name + ":")
		if x.Default != nil {
			p.write(" ")
			p.node(x.Default)
		}
	case *Goto:
		p.write(x.GotoKind.String() + " " + x.Target.Name)
		if x.Value != nil {
			p.write(" ")
			p.node(x.Value)
		}
	case *Loop:
		p.write("loop { ")
		p.node(x.Body)
		p.write(" }")
	case *Switch:
		p.write("switch (")
		p.node(x.SwitchValue)
		p.write(") {")
		for _, c := range x.Cases {
			p.write(" case ")
			p.list(c.TestValues)
			p.write(": ")
			p.node(c.Body)
			p.write(";")
		}
		if x.Default != nil {
			p.write(" default: ")
			p.node(x.Default)
			p.write(";")
		}
		p.write(" }")
	default:
		p.write(fmt.Sprintf("<%T>", n))
	}
}

func (p *printer) receiver(obj Node, m *types.Member) {
	if obj == nil {
		if m.DeclaringType != nil {
			p.write(m.DeclaringType.String() + ".")
		}
		return
	}
	p.node(obj)
	p.write(".")
}

func (p *printer) inits(inits []*ElementInit) {
	for i, e := range inits {
		if i > 0 {
			p.write(",")
		}
		p.write(" {")
		p.list(e.Arguments)
		p.write("}")
	}
	p.write(" ")
}

func (p *printer) bindings(bs []*MemberBinding) {
	for i, b := range bs {
		if i > 0 {
			p.write(",")
		}
		p.write(" " + b.Member.Name + " = ")
		switch b.BindingKind {
		case BindAssignment:
			p.node(b.Expression)
		case BindMember:
			p.write("{")
			p.bindings(b.Bindings)
			p.write("}")
		case BindList:
			p.write("{")
			p.inits(b.Initializers)
			p.write("}")
		}
	}
	p.write(" ")
}

var unaryPrefix = map[UnaryOp]string{
	Negate: "-", NegateChecked: "checked -", UnaryPlus: "+", Not: "!", OnesComplement: "~",
	Increment: "inc ", Decrement: "dec ",
	PreIncrementAssign: "++", PreDecrementAssign: "--",
}

func (p *printer) unary(x *Unary) {
	switch x.Op {
	case Convert, ConvertChecked:
		if x.Op == ConvertChecked {
			p.write("checked")
		}
		p.write("((" + x.Type().String() + ")")
		p.node(x.Operand)
		p.write(")")
	case TypeAs, Unbox:
		p.write("(")
		p.node(x.Operand)
		p.write(" as " + x.Type().String() + ")")
	case ArrayLength:
		p.node(x.Operand)
		p.write(".Length")
	case IsTrue, IsFalse:
		p.write(x.Op.String() + "(")
		p.node(x.Operand)
		p.write(")")
	case PostIncrementAssign:
		p.node(x.Operand)
		p.write("++")
	case PostDecrementAssign:
		p.node(x.Operand)
		p.write("--")
	default:
		if x.Op == Not && types.IsInteger(types.NonNullable(x.Operand.Type()).Underlying()) {
			p.write("~")
		} else {
			p.write(unaryPrefix[x.Op])
		}
		p.write("(")
		p.node(x.Operand)
		p.write(")")
	}
}

func (p *printer) binary(x *Binary) {
	if x.Op == ArrayIndex {
		p.node(x.Left)
		p.write("[")
		p.node(x.Right)
		p.write("]")
		return
	}
	p.write("(")
	p.node(x.Left)
	p.write(" " + x.Op.Symbol() + " ")
	p.node(x.Right)
	p.write(")")
}
