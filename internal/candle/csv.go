package candle

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// LoadCSV loads an ordered OHLCV series from a CSV file for BacktestDriver
// Frames. Expected columns: timestamp,open,high,low,close,volume. Grounded
// on the teacher's internal/backtesting.DataLoader.LoadFromCSV, adapted
// onto the Candle type this module's Source contract actually uses (no
// per-row Symbol field, since a Source is already scoped to one symbol).
func LoadCSV(filename string) ([]Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("candle: open %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("candle: read header: %w", err)
	}
	if _, err := strconv.ParseFloat(header[1], 64); err == nil {
		if _, seekErr := file.Seek(0, 0); seekErr != nil {
			return nil, fmt.Errorf("candle: rewind: %w", seekErr)
		}
		reader = csv.NewReader(file)
		reader.FieldsPerRecord = -1
	}

	var candles []Candle
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("candle: read record: %w", err)
		}
		if len(record) < 6 {
			continue
		}
		c, err := parseCSVRecord(record)
		if err != nil {
			continue
		}
		candles = append(candles, c)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

func parseCSVRecord(record []string) (Candle, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return Candle{}, err
	}
	open, err := decimal.NewFromString(record[1])
	if err != nil {
		return Candle{}, fmt.Errorf("invalid open: %w", err)
	}
	high, err := decimal.NewFromString(record[2])
	if err != nil {
		return Candle{}, fmt.Errorf("invalid high: %w", err)
	}
	low, err := decimal.NewFromString(record[3])
	if err != nil {
		return Candle{}, fmt.Errorf("invalid low: %w", err)
	}
	closePrice, err := decimal.NewFromString(record[4])
	if err != nil {
		return Candle{}, fmt.Errorf("invalid close: %w", err)
	}
	volume, err := decimal.NewFromString(record[5])
	if err != nil {
		return Candle{}, fmt.Errorf("invalid volume: %w", err)
	}
	return Candle{Timestamp: ts, Open: open, High: high, Low: low, Close: closePrice, Volume: volume}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts > 10000000000 {
			return time.Unix(ts/1000, (ts%1000)*1000000), nil
		}
		return time.Unix(ts, 0), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("candle: unable to parse timestamp %q", s)
}
