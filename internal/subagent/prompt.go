package subagent

import (
	"fmt"
	"sort"
	"strings"

	"ptc-lisp/pkg/signature"
	"ptc-lisp/pkg/value"
)

// expandTemplate replaces every {{key}} in tpl with ctx's value for key,
// rendered with toDisplayString. A key absent from ctx leaves its
// placeholder untouched.
func expandTemplate(tpl string, ctx *value.OrderedMap) string {
	var sb strings.Builder
	i := 0
	for i < len(tpl) {
		start := strings.Index(tpl[i:], "{{")
		if start < 0 {
			sb.WriteString(tpl[i:])
			break
		}
		start += i
		end := strings.Index(tpl[start:], "}}")
		if end < 0 {
			sb.WriteString(tpl[i:])
			break
		}
		end += start
		sb.WriteString(tpl[i:start])
		key := strings.TrimSpace(tpl[start+2 : end])
		if v, ok := ctx.GetFlex(value.Keyword(key)); ok {
			sb.WriteString(toDisplayString(v))
		} else {
			sb.WriteString(tpl[start : end+2])
		}
		i = end + 2
	}
	return sb.String()
}

func toDisplayString(v value.Value) string {
	switch v.Kind {
	case value.KindString, value.KindKeyword, value.KindSymbol:
		return v.Str
	default:
		return value.Print(v)
	}
}

// renderDataInventory produces the "ctx/*" listing a turn's user message
// carries: one "ctx/<name>  ; <type>, sample: <truncated>" line per entry,
// in ctx's own key order.
func renderDataInventory(ctx *value.OrderedMap, sampleChars int) string {
	if ctx == nil || ctx.Len() == 0 {
		return "(no context data)"
	}
	var lines []string
	for _, e := range ctx.Entries() {
		name := toDisplayString(e[0])
		lines = append(lines, fmt.Sprintf("ctx/%s  ; %s, sample: %s", name, inferType(e[1]), truncate(sampleOf(e[1]), sampleChars)))
	}
	return strings.Join(lines, "\n")
}

func inferType(v value.Value) string {
	switch v.Kind {
	case value.KindInt:
		return "int"
	case value.KindFloat:
		return "float"
	case value.KindBool:
		return "bool"
	case value.KindString:
		return "string"
	case value.KindKeyword:
		return "keyword"
	case value.KindNil:
		return "nil"
	case value.KindVector:
		if len(v.Vector) == 0 {
			return "[any]"
		}
		return fmt.Sprintf("[%s]", inferType(v.Vector[0]))
	case value.KindSet:
		items := v.Set.Items()
		if len(items) == 0 {
			return "#{any}"
		}
		return fmt.Sprintf("#{%s}", inferType(items[0]))
	case value.KindMap:
		var keys []string
		for _, e := range v.Map.Entries() {
			keys = append(keys, fmt.Sprintf("%s %s", toDisplayString(e[0]), inferType(e[1])))
		}
		sort.Strings(keys)
		return "{" + strings.Join(keys, ", ") + "}"
	default:
		return "any"
	}
}

func sampleOf(v value.Value) string {
	return value.Print(v)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// renderToolInventory produces the "tool/<name>(params) -> return" listing,
// one line per tool, sorted by name for determinism.
func renderToolInventory(tools ToolMap) string {
	if len(tools) == 0 {
		return "(no tools available)"
	}
	names := make([]string, 0, len(tools))
	for n := range tools {
		names = append(names, n)
	}
	sort.Strings(names)
	var lines []string
	for _, n := range names {
		t := tools[n]
		lines = append(lines, fmt.Sprintf("tool/%s%s", n, describeToolSignature(t.Signature)))
	}
	return strings.Join(lines, "\n")
}

func describeToolSignature(sig *signature.Type) string {
	if sig == nil || sig.Kind != signature.KindFunc {
		return "(...) -> :any"
	}
	var params []string
	for i, name := range sig.ParamNames {
		params = append(params, fmt.Sprintf("%s %s", name, signature.Describe(sig.Params[i])))
	}
	return fmt.Sprintf("(%s) -> %s", strings.Join(params, ", "), signature.Describe(sig.Return))
}

// assembleUserMessage builds one turn's user message.
func assembleUserMessage(m Mission, ctx *value.OrderedMap, feedback string) string {
	var sb strings.Builder
	sb.WriteString("# Data\n")
	sb.WriteString(renderDataInventory(ctx, m.DataSampleChars))
	sb.WriteString("\n\n# Tools\n")
	sb.WriteString(renderToolInventory(m.Tools))
	if m.Signature != nil {
		sb.WriteString("\n\n# Expected output\n")
		sb.WriteString(signature.Describe(m.Signature))
	}
	sb.WriteString("\n\n# Mission\n")
	sb.WriteString(expandTemplate(m.Template, ctx))
	if feedback != "" {
		sb.WriteString("\n\n# Feedback\n")
		sb.WriteString(feedback)
	}
	return sb.String()
}
