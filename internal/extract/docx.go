package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// readDocx renders body paragraphs one per line. Table rows become one line
// each with cells separated by tabs.
func readDocx(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat docx: %w", err)
	}

	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			sb.WriteString(it.String())
			sb.WriteByte('\n')
		case *docx.Table:
			writeTable(&sb, it)
		}
	}
	return sb.String(), nil
}

func writeTable(sb *strings.Builder, t *docx.Table) {
	for _, row := range t.TableRows {
		for i, cell := range row.TableCells {
			if i > 0 {
				sb.WriteByte('\t')
			}
			for j, p := range cell.Paragraphs {
				if j > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(p.String())
			}
		}
		sb.WriteByte('\n')
	}
}
