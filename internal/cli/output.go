package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	// defaultSeparator is the default separator for table data.
	defaultSeparator = '─'
)

type printer struct {
	tabWriter *tabwriter.Writer
	jsonEnc   *json.Encoder
	separator rune
}

type tableData struct {
	Headers []string
	Rows    [][]string
}

func newPrinter(w io.Writer, separator rune) *printer {
	return &printer{
		tabWriter: tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.TabIndent),
		jsonEnc:   json.NewEncoder(w),
		separator: separator,
	}
}

// Table prints data in tabular format.
func (p *printer) Table(data tableData) error {
	if err := validateTableData(data); err != nil {
		return err
	}
	fmtPattern := strings.Repeat("%v\t", len(data.Headers)-1) + "%v\n"

	fmt.Fprintf(p.tabWriter, fmtPattern, toAnySlice(data.Headers)...)
	separators := make([]string, len(data.Headers))
	for i := range separators {
		separators[i] = strings.Repeat(string(p.separator), len(data.Headers[i]))
	}
	fmt.Fprintf(p.tabWriter, fmtPattern, toAnySlice(separators)...)
	for _, row := range data.Rows {
		fmt.Fprintf(p.tabWriter, fmtPattern, toAnySlice(row)...)
	}
	return p.tabWriter.Flush()
}

// JSON prints any struct with json tags as JSON.
func (p *printer) JSON(v any) error {
	return p.jsonEnc.Encode(v)
}

func validateTableData(data tableData) error {
	if len(data.Headers) == 0 {
		return errors.New("headers slice cannot be empty")
	}
	for _, row := range data.Rows {
		if len(row) != len(data.Headers) {
			return errors.New("each row must have the same number of columns as headers")
		}
	}
	return nil
}

func toAnySlice(s []string) []any {
	out := make([]any, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	return out
}
