package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	apperr "study-rag/internal/pkg/errors"
)

// Extract converts a stored document into plain text, dispatching by
// extension. Every failure mode, including reader panics on corrupt input,
// comes back as ErrExtractionFailed.
func Extract(filePath string) (text string, err error) {
	// The pdf reader panics on malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", apperr.ErrExtractionFailed, r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		text, err = extractPDF(filePath)
	case ".doc", ".docx":
		text, err = extractDOCX(filePath)
	case ".xls":
		text, err = extractXLS(filePath)
	case ".xlsx":
		text, err = extractXLSX(filePath)
	case ".txt":
		text, err = extractText(filePath)
	case ".md":
		text, err = extractMarkdown(filePath)
	default:
		return "", fmt.Errorf("%w: %s", apperr.ErrUnsupportedFileType, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrExtractionFailed, err)
	}
	return text, nil
}

func extractPDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}
	return strings.TrimSpace(text.String()), nil
}

// extractDOCX handles .docx archives. Plain .doc uploads go through the
// same reader because a fair share of them are mislabeled docx files; true
// legacy binaries fail here and surface as ExtractionFailed.
func extractDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	text := extractTextRuns(content, "<w:t")
	if strings.TrimSpace(text) == "" {
		// Some producers emit content with the runs already stripped.
		text = content
	}

	var out strings.Builder
	for _, p := range strings.Split(text, "\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out.WriteString(strings.TrimSpace(p))
		out.WriteString("\n")
	}
	return strings.TrimSpace(out.String()), nil
}

func extractXLS(filePath string) (string, error) {
	wb, err := xls.Open(filePath, "utf-8")
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for row := 0; row <= int(sheet.MaxRow); row++ {
			r := sheet.Row(row)
			if r == nil {
				continue
			}
			for col := r.FirstCol(); col < r.LastCol(); col++ {
				text.WriteString(r.Col(col))
				text.WriteString("\t")
			}
			text.WriteString("\n")
		}
	}
	return strings.TrimSpace(text.String()), nil
}

// extractXLSX reads with tealeg/xlsx and falls back to excelize, which
// tolerates some newer workbook features tealeg rejects.
func extractXLSX(filePath string) (string, error) {
	if text, err := extractXLSXTealeg(filePath); err == nil {
		return text, nil
	}
	return extractXLSXExcelize(filePath)
}

func extractXLSXTealeg(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String())
				text.WriteString("\t")
			}
			text.WriteString("\n")
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func extractXLSXExcelize(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell)
				text.WriteString("\t")
			}
			text.WriteString("\n")
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func extractText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// extractTextRuns pulls the text out of OOXML run elements, e.g. <w:t> for
// word documents. Attributes on the opening tag are tolerated.
func extractTextRuns(xmlContent, openTag string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, openTag)
	closeTag := "</" + strings.TrimPrefix(openTag, "<") + ">"
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// Reject longer element names sharing the prefix (<w:tbl> etc).
		if part == "" || (part[0] != '>' && part[0] != ' ' && part[0] != '/') {
			continue
		}
		gt := strings.Index(part, ">")
		if gt < 0 {
			continue
		}
		rest := part[gt+1:]
		end := strings.Index(rest, closeTag)
		if end >= 0 {
			text.WriteString(rest[:end])
			text.WriteString(" ")
		}
	}
	return text.String()
}
