package main

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/esmutils"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/readings"
	"github.com/NotCoffee418/p1_meter_bridge/pkg/telegram"
	"github.com/sirupsen/logrus"
)

// inspect decodes each telegram of capture into a fresh store and prints
// every reading with its value in the unit the meter sent.
func inspect(out io.Writer, capture []byte, registry *telegram.Registry) error {
	telegrams := telegram.SplitTelegrams(capture)
	if len(telegrams) == 0 {
		return fmt.Errorf("no complete telegram found")
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	for i, raw := range telegrams {
		store := readings.New(registry.Names())
		decoder, err := telegram.NewDecoder(registry, store, log)
		if err != nil {
			return err
		}
		res := telegram.NewSession(decoder, log).Poll(telegram.NewSliceSource(raw))

		fmt.Fprintf(out, "telegram %d: lines=%d updated=%d crc_ok=%t\n",
			i+1, res.Lines, res.Updated, res.Valid && telegram.ValidateTelegram(raw))

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for idx, r := range store.GetAll() {
			field := registry.Field(idx)
			if !r.Dirty {
				fmt.Fprintf(tw, "  %s\t%s\t-\t\n", r.Name, field.Code)
				continue
			}
			unit := unitOf(raw, field.Code)
			kilo := field.EndChar == telegram.UnitChar
			stored := ""
			if kilo {
				stored = esmutils.StoredUnit(unit)
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d %s\t(%g %s)\n",
				r.Name, field.Code, r.Value, stored, esmutils.ScaledToUnit(r.Value, kilo), unit)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func printFields(out io.Writer, registry *telegram.Registry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tNAME\tCODE\tDELIMITERS")
	for i, f := range registry.Fields() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%c%c\n", i, f.Name, f.Code, f.StartChar, f.EndChar)
	}
	return tw.Flush()
}

// unitOf returns the unit after the first '*' on the line starting with code,
// e.g. "kWh" for 1-0:1.8.1(000164.380*kWh).
func unitOf(raw []byte, code string) string {
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if !bytes.HasPrefix(line, []byte(code)) {
			continue
		}
		star := bytes.IndexByte(line, telegram.UnitChar)
		if star < 0 {
			return ""
		}
		rest := line[star+1:]
		if end := bytes.IndexByte(rest, ')'); end >= 0 {
			return string(rest[:end])
		}
		return ""
	}
	return ""
}
