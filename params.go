package pgpool

import "strconv"

// rewriteNamedParameters converts @name tokens in text to positional $N
// placeholders. values may be nil, a positional []any (passed through
// unchanged), or a map[string]any of named values.
func (p *Pool) rewriteNamedParameters(text string, values any) (string, []any, error) {
	switch v := values.(type) {
	case nil:
		return text, nil, nil

	case []any:
		return text, v, nil

	case map[string]any:
		if len(v) == 0 {
			return text, nil, nil
		}
		return rewriteNamed(p.opts, text, v)

	default:
		return text, nil, nil
	}
}

func rewriteNamed(opts Options, text string, values map[string]any) (string, []any, error) {
	tokens := opts.NamedParameterFindRegexp.FindAllString(text, -1)
	if len(tokens) == 0 {
		return "", nil, newNoNamedParametersError()
	}

	seen := make(map[string]bool, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		name := opts.GetNamedParameterName(tok)
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}

	var missing []string
	for _, name := range order {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", nil, newMissingQueryParameterError(missing)
	}

	args := make([]any, 0, len(order))
	rewritten := text
	for i, name := range order {
		idx := i + 1
		re := opts.GetNamedParameterReplaceRegexp(name)
		rewritten = re.ReplaceAllLiteralString(rewritten, positionalPlaceholder(idx))
		args = append(args, values[name])
	}

	return rewritten, args, nil
}

func positionalPlaceholder(idx int) string {
	return "$" + strconv.Itoa(idx)
}
