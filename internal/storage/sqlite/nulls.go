package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ternarybob/tenderintel/internal/models"
)

const dateLayout = "2006-01-02"

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func nullDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func nullUnix(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	i := ni.Int64
	return &i
}

func datePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func unixPtr(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := time.Unix(ni.Int64, 0).UTC()
	return &t
}

func encodeCities(cities []string) (string, error) {
	if cities == nil {
		cities = []string{}
	}
	data, err := json.Marshal(cities)
	return string(data), err
}

func decodeCities(data string) []string {
	cities := []string{}
	if data == "" {
		return cities
	}
	_ = json.Unmarshal([]byte(data), &cities)
	return cities
}

func decodeProvenance(data string) []models.ProvenanceEntry {
	entries := []models.ProvenanceEntry{}
	if data == "" {
		return entries
	}
	_ = json.Unmarshal([]byte(data), &entries)
	return entries
}
