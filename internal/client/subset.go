package client

import (
	"unicode"

	"github.com/roasbeef/tdcore/internal/baselib/tderr"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

// synchronousSet names the requests execute is permitted to run: ones whose
// semantics depend only on their arguments and the process's static
// configuration (spec §4.2). This core implements the two members its
// seeded scenarios exercise (S1, S5); a full build would recover the rest
// of the allow-list from TL schema annotations (spec §10 Open Questions).
var synchronousSet = map[string]bool{
	"getTextEntities": true,
	"testSquareInt":   true,
}

// IsSynchronous reports whether constructorName is a member of the
// synchronous execution subset.
func IsSynchronous(constructorName string) bool {
	return synchronousSet[constructorName]
}

// Execute runs a synchronous-subset request without constructing or
// touching any client instance (spec §4.2: "ClientManager::execute is
// documented as static"). Requests outside the subset are refused with a
// 400 error object rather than processed.
func Execute(req tlobject.Function) (tlobject.Object, error) {
	name := req.TypeName()
	if !IsSynchronous(name) {
		return nil, tderr.NotSynchronous(name)
	}

	switch r := req.(type) {
	case *tlobject.GetTextEntities:
		return parseTextEntities(r.Text), nil

	case *tlobject.TestSquareInt:
		return &tlobject.TestInt{Value: r.Value * r.Value}, nil

	default:
		return nil, tderr.NotSynchronous(name)
	}
}

// parseTextEntities finds "@mention" and "/botCommand" spans in text,
// matching the seeded S1 scenario ("@x /cmd" -> mention [0,2), botCommand
// [3,7)). Offsets and lengths are counted in runes, the only unit spec.md
// pins down for this minimal subset; a full implementation would track
// UTF-16 code units to match the wire schema's documented convention.
func parseTextEntities(text string) *tlobject.TextEntities {
	runes := []rune(text)

	var entities []tlobject.TextEntity

	start := 0
	for start < len(runes) {
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
		if start >= len(runes) {
			break
		}

		end := start
		for end < len(runes) && !unicode.IsSpace(runes[end]) {
			end++
		}

		word := runes[start:end]
		switch {
		case len(word) > 1 && word[0] == '@':
			entities = append(entities, tlobject.TextEntity{
				Offset: int32(start),
				Length: int32(end - start),
				Type:   "mention",
			})
		case len(word) > 1 && word[0] == '/':
			entities = append(entities, tlobject.TextEntity{
				Offset: int32(start),
				Length: int32(end - start),
				Type:   "botCommand",
			})
		}

		start = end
	}

	return &tlobject.TextEntities{Entities: entities}
}
