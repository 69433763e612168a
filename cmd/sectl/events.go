package main

import (
	"encoding/json"
	"io"

	"signescrow/rpc"
)

func runEvents(g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("events", stderr)
	var filter rpc.EventsParams
	var from uint
	fs.StringVar(&filter.Contract, "contract", "", "contract name or principal")
	fs.StringVar(&filter.Type, "type", "", "event type")
	fs.StringVar(&filter.TxHash, "tx", "", "transaction hash")
	fs.UintVar(&from, "from", 0, "first ledger sequence")
	fs.IntVar(&filter.Limit, "limit", 100, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter.FromSequence = uint32(from)
	c, err := g.client()
	if err != nil {
		return err
	}
	ctx, cancel := g.context()
	defer cancel()
	list, err := c.Events(ctx, filter)
	if err != nil {
		return err
	}
	return printJSON(stdout, list)
}

func runTail(g globals, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("tail", stderr)
	contract := fs.String("contract", "", "contract name or principal")
	kind := fs.String("type", "", "event type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := g.client()
	if err != nil {
		return err
	}
	// Streams run until interrupted.
	g.timeout = 0
	ctx, cancel := g.context()
	defer cancel()
	stream, err := c.Subscribe(ctx, *contract, *kind)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for ev := range stream {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
