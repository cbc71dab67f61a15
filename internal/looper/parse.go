package looper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leandrodaf/midiloop/sdk/contracts"
)

// ParseCommand reads one line of the interactive menu:
//
//	r | record         clear the slot and record
//	o | overdub        play and record
//	p | play           play
//	s | stop           stop
//	c | clear          clear the slot
//	t <multiplier>     playback tempo, e.g. "t 1.5"
//	save <path>        save the slot
//	load <path>        load into the slot
//	slot <n>           select a slot
//	x | exit | quit    leave
func ParseCommand(line string) (contracts.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return contracts.Command{}, fmt.Errorf("%w: empty line", ErrUnknownCommand)
	}
	name := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch name {
	case "r", "record":
		return contracts.Command{Kind: contracts.CommandRecord}, nil
	case "o", "overdub":
		return contracts.Command{Kind: contracts.CommandOverdub}, nil
	case "p", "play":
		return contracts.Command{Kind: contracts.CommandPlay}, nil
	case "s", "stop":
		return contracts.Command{Kind: contracts.CommandStop}, nil
	case "c", "clear":
		return contracts.Command{Kind: contracts.CommandClear}, nil
	case "x", "exit", "q", "quit":
		return contracts.Command{Kind: contracts.CommandExit}, nil
	case "t", "tempo":
		if len(fields) != 2 {
			return contracts.Command{}, fmt.Errorf("%w: usage: t <multiplier>", ErrUnknownCommand)
		}
		m, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return contracts.Command{}, fmt.Errorf("invalid tempo %q: %w", fields[1], err)
		}
		return contracts.Command{Kind: contracts.CommandTempo, Tempo: m}, nil
	case "save", "load":
		if rest == "" {
			return contracts.Command{}, fmt.Errorf("%w: usage: %s <path>", ErrMissingPath, name)
		}
		kind := contracts.CommandSave
		if name == "load" {
			kind = contracts.CommandLoad
		}
		return contracts.Command{Kind: kind, Path: rest}, nil
	case "slot":
		if len(fields) != 2 {
			return contracts.Command{}, fmt.Errorf("%w: usage: slot <n>", ErrUnknownCommand)
		}
		i, err := strconv.Atoi(fields[1])
		if err != nil {
			return contracts.Command{}, fmt.Errorf("invalid slot %q: %w", fields[1], err)
		}
		return contracts.Command{Kind: contracts.CommandSelect, Index: i}, nil
	}
	return contracts.Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
}
