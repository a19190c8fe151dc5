package grammar

import (
	"fmt"
	"strings"
)

func indent(level int) string {
	return strings.Repeat("    ", level)
}

// Format renders a grammar in canonical layout.
func Format(f *File) string {
	return f.String()
}

func (f *File) String() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("grammar %s;\n", f.Name))
	prev := ""
	for _, d := range f.Decls {
		kind := d.kind()
		if kind != prev || kind == "block" {
			b.WriteString("\n")
		}
		prev = kind
		b.WriteString(d.StringWithIndent(0))
	}
	return b.String()
}

func (d *Decl) kind() string {
	switch {
	case d.Rule != nil:
		return "rule"
	case d.Token != nil:
		return "token"
	case d.Start != nil, d.Word != nil:
		return "simple"
	default:
		return "block"
	}
}

func (d *Decl) StringWithIndent(level int) string {
	switch {
	case d.Start != nil:
		return fmt.Sprintf("%sstart %s;\n", indent(level), d.Start.Name)
	case d.Word != nil:
		return fmt.Sprintf("%sword %s;\n", indent(level), d.Word.Name)
	case d.Extras != nil:
		items := make([]string, len(d.Extras.Items))
		for i, a := range d.Extras.Items {
			items[i] = a.String()
		}
		return fmt.Sprintf("%sextras { %s }\n", indent(level), strings.Join(items, " "))
	case d.Externals != nil:
		return fmt.Sprintf("%sexternals { %s }\n", indent(level), joinIdents(d.Externals.Names, " "))
	case d.Supertypes != nil:
		return fmt.Sprintf("%ssupertypes { %s }\n", indent(level), joinIdents(d.Supertypes.Names, " "))
	case d.Conflicts != nil:
		var b strings.Builder
		b.WriteString(indent(level) + "conflicts {\n")
		for _, g := range d.Conflicts.Groups {
			b.WriteString(fmt.Sprintf("%s[%s];\n", indent(level+1), joinIdents(g.Names, ", ")))
		}
		b.WriteString(indent(level) + "}\n")
		return b.String()
	case d.Precedence != nil:
		var b strings.Builder
		b.WriteString(indent(level) + "precedence {\n")
		for _, l := range d.Precedence.Levels {
			refs := make([]string, len(l.Symbols))
			for i, r := range l.Symbols {
				refs[i] = r.String()
			}
			b.WriteString(fmt.Sprintf("%s%s %s;\n", indent(level+1), l.Assoc, strings.Join(refs, " ")))
		}
		b.WriteString(indent(level) + "}\n")
		return b.String()
	case d.Rule != nil:
		return fmt.Sprintf("%srule %s = %s;\n", indent(level), d.Rule.Name, d.Rule.Body.StringWithIndent(level+1))
	case d.Token != nil:
		return fmt.Sprintf("%stoken %s = %s;\n", indent(level), d.Token.Name, d.Token.Body.StringWithIndent(level+1))
	}
	return ""
}

func joinIdents(ids []*PosIdent, sep string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Value
	}
	return strings.Join(names, sep)
}

func (r *Ref) String() string {
	if r.Literal != nil {
		return *r.Literal
	}
	return r.Name
}

func (e *Expr) String() string {
	return e.StringWithIndent(-1)
}

// StringWithIndent breaks top-level alternatives onto their own lines when
// there are more than two of them. A negative level keeps everything inline.
func (e *Expr) StringWithIndent(level int) string {
	alts := make([]string, len(e.Alts))
	for i, a := range e.Alts {
		alts[i] = a.String()
	}
	if level < 0 || len(alts) <= 2 {
		return strings.Join(alts, " | ")
	}
	return "\n" + indent(level) + "  " + strings.Join(alts, "\n"+indent(level)+"| ") + "\n"
}

func (a *Alt) String() string {
	parts := make([]string, 0, len(a.Annotations)+len(a.Items))
	for _, ann := range a.Annotations {
		parts = append(parts, ann.String())
	}
	if a.Empty {
		parts = append(parts, "empty")
	}
	for _, it := range a.Items {
		parts = append(parts, it.String())
	}
	return strings.Join(parts, " ")
}

func (a *Annotation) String() string {
	if a.Arg == nil {
		return a.Kind
	}
	if a.Arg.Level != nil {
		return fmt.Sprintf("%s(%d)", a.Kind, *a.Arg.Level)
	}
	return fmt.Sprintf("%s(%s)", a.Kind, a.Arg.Ref.String())
}

func (i *Item) String() string {
	var b strings.Builder
	b.WriteString(i.Field)
	b.WriteString(i.Atom.String())
	b.WriteString(i.Quant)
	if i.Alias != nil {
		b.WriteString(" as " + i.Alias.String())
	}
	return b.String()
}

func (a *Atom) String() string {
	switch {
	case a.Token != nil:
		return "token(" + a.Token.String() + ")"
	case a.Immediate != nil:
		return "immediate(" + a.Immediate.String() + ")"
	case a.Group != nil:
		return "(" + a.Group.String() + ")"
	case a.Literal != nil:
		return *a.Literal
	case a.Pattern != nil:
		return *a.Pattern
	}
	return a.Name
}
