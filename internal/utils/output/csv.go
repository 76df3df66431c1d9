package output

import (
	"encoding/csv"
	"io"

	"github.com/law-makers/harvest/pkg/models"
)

// WriteCSV writes flattened records as CSV. The header is the union of
// every record's keys, "url" first and the rest sorted; missing cells are
// left empty.
func WriteCSV(w io.Writer, records []models.Record) error {
	rows := make([]map[string]string, len(records))
	union := map[string]string{}
	for i, rec := range records {
		rows[i] = Flatten(rec)
		for k := range rows[i] {
			union[k] = ""
		}
	}
	headers := SortedKeys(union)
	if len(headers) == 0 {
		headers = []string{models.FieldURL}
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return err
	}
	for _, row := range rows {
		line := make([]string, len(headers))
		for i, h := range headers {
			line[i] = row[h]
		}
		if err := writer.Write(line); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
