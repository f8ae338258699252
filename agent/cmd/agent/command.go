package main

import (
	"fmt"
	"strings"

	"github.com/table1837/eightysix/pkg/types"
)

// parseCommand turns one console line into an update.
//
//	86 <item> [-- reason]
//	restore <item>
//
// Any status word accepted by types.ParseStatus works as the verb.
func parseCommand(line string) (types.Update, error) {
	line = strings.TrimSpace(line)
	verb, rest, ok := strings.Cut(line, " ")
	if !ok || strings.TrimSpace(rest) == "" {
		return types.Update{}, fmt.Errorf("usage: 86 <item> [-- reason] | restore <item>")
	}
	st, err := types.ParseStatus(verb)
	if err != nil {
		return types.Update{}, err
	}
	item, reason, _ := strings.Cut(rest, " -- ")
	return types.Update{
		ItemKey: strings.TrimSpace(item),
		Status:  st,
		Reason:  strings.TrimSpace(reason),
	}, nil
}
