package reader

import (
	"github.com/dekarrin/fiberhost/internal/hosterr"
)

type stackMode int

const (
	modeNone stackMode = iota
	modeDict
	modeList
)

type stackEntry struct {
	key      string
	keyRng   Range
	hasRng   bool
	rng      Range
	mode     stackMode
	dict     map[string]Node
	order    []string
	list     []Node
	dictKeys map[string]Range // key -> range of first occurrence, for duplicate diagnostics
}

func (e *stackEntry) extend(r Range) {
	if !e.hasRng {
		e.rng = r
		e.hasRng = true
	} else {
		e.rng = e.rng.Union(r)
	}
}

func (e *stackEntry) build() Node {
	if !e.hasRng {
		return nil
	}
	switch e.mode {
	case modeDict:
		return &Dict{Entries: e.dict, Order: e.order, Rng: e.rng}
	case modeList:
		return &List{Items: e.list, Rng: e.rng}
	default:
		return nil
	}
}

// Analyze consumes the Tokens produced by Tokenize and builds the located
// Node tree, enforcing: entries cannot indent deeper than one level past
// their parent, dictionary keys must be unique within a mapping, and list
// entries may only appear inside a list. All diagnostics are Syntactic
// hosterr.Errors.
func Analyze(src *Source, tokens []Token) (Node, []error, []error) {
	var errs, warnings []error
	stack := []*stackEntry{{}}

	descend := func(newDepth int) {
		for len(stack)-1 > newDepth {
			entry := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			value := entry.build()
			head := stack[len(stack)-1]

			switch head.mode {
			case modeDict:
				if head.dict == nil {
					head.dict = map[string]Node{}
				}
				head.dict[entry.key] = value
				head.order = append(head.order, entry.key)
			case modeList:
				head.list = append(head.list, value)
			}

			if entry.hasRng {
				head.extend(entry.rng)
			}
		}
	}

	for _, tok := range tokens {
		depth := len(stack) - 1

		if tok.Depth > depth {
			errs = append(errs, hosterr.At(hosterr.Syntactic, tok.Data.Range(), "unexpected indentation"))
			continue
		}
		if tok.Depth < depth {
			descend(tok.Depth)
		}

		head := stack[len(stack)-1]

		if head.mode == modeNone {
			if tok.Kind == List {
				head.mode = modeList
			} else {
				head.mode = modeDict
				head.dict = map[string]Node{}
				head.dictKeys = map[string]Range{}
			}
		}

		switch head.mode {
		case modeDict:
			if tok.Kind != Default {
				errs = append(errs, hosterr.At(hosterr.Syntactic, tok.Data.Range(), "expected a dictionary entry here"))
				continue
			}

			key := tok.Key.Raw
			if original, dup := head.dictKeys[key]; dup {
				errs = append(errs, hosterr.Atf(hosterr.Syntactic, tok.Key.Range(),
					"duplicate key %q (original at %v)", key, original.StartPosition()))
				continue
			}
			head.dictKeys[key] = tok.Key.Range()

			if tok.Value != nil {
				head.dict[key] = tok.Value
				head.order = append(head.order, key)
			} else {
				stack = append(stack, &stackEntry{key: key})
			}

		case modeList:
			if tok.Kind != List {
				errs = append(errs, hosterr.At(hosterr.Syntactic, tok.Data.Range(), "expected a list entry here"))
				continue
			}

			if tok.Key != nil {
				childRng := tok.Key.Range()
				if tok.Value != nil {
					childRng = childRng.Union(tok.Value.Range())
				}

				child := &stackEntry{
					mode:     modeDict,
					rng:      childRng,
					hasRng:   true,
					dict:     map[string]Node{},
					dictKeys: map[string]Range{},
				}

				if tok.Value != nil {
					child.dict[tok.Key.Raw] = tok.Value
					child.order = append(child.order, tok.Key.Raw)
					child.dictKeys[tok.Key.Raw] = tok.Key.Range()
					stack = append(stack, child)
				} else {
					stack = append(stack, child)
					stack = append(stack, &stackEntry{key: tok.Key.Raw})
				}
			} else {
				head.list = append(head.list, tok.Value)
			}
		}

		head = stack[len(stack)-1]
		head.extend(tok.Data.Range())
	}

	descend(0)

	root := stack[0].build()
	return root, errs, warnings
}

// Load runs Tokenize followed by Analyze in one call, matching reader.py's
// loads().
func Load(name, raw string) (*Source, Node, []error, []error) {
	src, tokens, terrs, twarn := Tokenize(name, raw)
	if len(terrs) > 0 {
		return src, nil, terrs, twarn
	}

	root, aerrs, awarn := Analyze(src, tokens)
	return src, root, append(terrs, aerrs...), append(twarn, awarn...)
}
