package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/phrazzld/scry-import/internal/queue"
	"github.com/phrazzld/scry-import/internal/redact"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const detailWidth = 60

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// buildItemRows renders one row per item: filename, status, retries, detail.
func buildItemRows(items []queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		detail := it.ErrorMessage
		if it.Status == queue.StatusDone && it.Result != nil && it.Result.Exercise != nil {
			detail = fmt.Sprintf("%s (%s, %d questions)",
				it.Result.Exercise.Title, it.Result.Exercise.Kind, len(it.Result.Exercise.Questions))
		}
		rows = append(rows, []string{
			it.Payload.Filename,
			string(it.Status),
			strconv.Itoa(it.RetryCount),
			redact.Truncate(detail, detailWidth),
		})
	}
	return rows
}

// buildRunRows summarises a run as label/value pairs.
func buildRunRows(res queue.RunResult) [][]string {
	return [][]string{
		{"Outcome", string(res.Reason)},
		{"Attempts", strconv.Itoa(res.Attempts)},
		{"Succeeded", strconv.Itoa(res.Succeeded)},
		{"Failed", strconv.Itoa(res.Failed)},
		{"Retried", strconv.Itoa(res.Retried)},
		{"Duration", res.FinishedAt.Sub(res.StartedAt).Round(100 * time.Millisecond).String()},
	}
}
