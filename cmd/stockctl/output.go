package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/org/stockdesk/pkg/models"
)

var (
	outputFormat string // "table", "json", "raw"
	outputField  string // for --field=key
	stdout       io.Writer = os.Stdout
)

// report prints a successful envelope's data, or turns a failed one into
// the command's error.
func report[T any](env models.Envelope[T]) error {
	if err := envelopeErr(env.Success, env.Error); err != nil {
		return err
	}
	if env.Data == nil {
		return nil
	}
	return printResult(*env.Data)
}

func envelopeErr(success bool, e *models.APIError) error {
	switch {
	case success:
		return nil
	case e == nil:
		return errors.New(models.MsgUnknown)
	default:
		return fmt.Errorf("%s [%s/%s]", e.Message, e.Kind, e.ID)
	}
}

// printResult outputs data in the chosen format.
func printResult(data any) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var rows []map[string]any
	if err := unmarshalNumbers(raw, &rows); err != nil {
		var row map[string]any
		if err := unmarshalNumbers(raw, &row); err != nil {
			fmt.Fprintln(stdout, string(raw))
			return nil
		}
		rows = []map[string]any{row}
		if outputFormat != "raw" {
			printRecord(row)
			return nil
		}
	}

	if outputFormat == "raw" {
		for _, row := range rows {
			if outputField != "" {
				fmt.Fprintln(stdout, row[outputField])
				continue
			}
			for _, k := range sortedKeys(row) {
				fmt.Fprintf(stdout, "%s=%v\n", k, row[k])
			}
		}
		return nil
	}
	printTable(rows)
	return nil
}

// printRecord prints one object as key/value lines.
func printRecord(data map[string]any) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(data) {
		fmt.Fprintf(w, "%s\t%v\n", k, data[k])
	}
	w.Flush()
}

// printTable prints a list of objects with one column per key.
func printTable(rows []map[string]any) {
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "No entries.")
		return
	}
	cols := map[string]any{}
	for _, row := range rows {
		for k := range row {
			cols[k] = nil
		}
	}
	keys := sortedKeys(cols)

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(keys, "\t")))
	for _, row := range rows {
		vals := make([]string, len(keys))
		for i, k := range keys {
			if v, ok := row[k]; ok && v != nil {
				vals[i] = fmt.Sprintf("%v", v)
			}
		}
		fmt.Fprintln(w, strings.Join(vals, "\t"))
	}
	w.Flush()
}

// unmarshalNumbers keeps numbers as written instead of float64.
func unmarshalNumbers(raw []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dst)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printSuccess(msg string) {
	fmt.Fprintln(stdout, msg)
}
