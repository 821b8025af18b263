package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrUnsupportedFile = errors.New("只支持 .csv 和 .xlsx 文件")
	ErrEmptyFile       = errors.New("文件没有表头")
)

// Row 一行数据，key 为归一化后的表头
type Row struct {
	Line   int
	Values map[string]string
}

// Get 按别名依次查找，返回第一个非空值
func (r Row) Get(aliases ...string) string {
	for _, a := range aliases {
		if v := strings.TrimSpace(r.Values[NormalizeHeader(a)]); v != "" {
			return v
		}
	}
	return ""
}

type Sheet struct {
	Headers []string
	Rows    []Row
}

// NormalizeHeader 小写、去空白、去掉空格下划线连字符和重音
// "Code Banque" / "code_banque" / "CODE-BANQUE" 都归一为 "codebanque"
func NormalizeHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, h)
	if err != nil {
		s = h
	}
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t', '.':
			return -1
		}
		return r
	}, s)
}

// Read 按扩展名解析上传的文件
func Read(filename string, r io.Reader) (*Sheet, error) {
	var records [][]string
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}
	if err != nil {
		return nil, err
	}
	return toSheet(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectComma(data)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

// detectComma 法语环境的 Excel 导出 CSV 常用分号
func detectComma(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(f.GetSheetName(0))
}

func toSheet(records [][]string) (*Sheet, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = NormalizeHeader(h)
	}

	sheet := &Sheet{Headers: headers}
	for i, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		values := make(map[string]string, len(headers))
		for j, h := range headers {
			if h == "" || j >= len(rec) {
				continue
			}
			values[h] = strings.TrimSpace(rec[j])
		}
		// 表头是第 1 行
		sheet.Rows = append(sheet.Rows, Row{Line: i + 2, Values: values})
	}
	return sheet, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
