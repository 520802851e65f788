package threat

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

// WriteJSON writes batch as an indented Document.
func WriteJSON(w io.Writer, batch *IndicatorBatch) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(NewDocument(batch))
}

// WriteCSV writes one row per indicator under an "ip,score" header.
func WriteCSV(w io.Writer, batch *IndicatorBatch) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"ip", "score"}); err != nil {
		return err
	}
	for _, item := range batch.Items {
		record := []string{item.Address, strconv.FormatFloat(item.Score, 'f', -1, 64)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
