package model

import "time"

// ParquetRecord is the on-disk Parquet layout for canonical records. The
// timestamp is kept as RFC 3339 text so the file reads back through the same
// value coercion as any other tabular source.
type ParquetRecord struct {
	Timestamp    string  `parquet:"timestamp"`
	IPAddress    string  `parquet:"ip_address"`
	HTTPMethod   string  `parquet:"http_method"`
	Resource     string  `parquet:"resource"`
	StatusCode   int32   `parquet:"status_code"`
	Country      *string `parquet:"country,optional"`
	PageCategory *string `parquet:"page_category,optional"`
}

// ToParquet converts a record into its Parquet row.
func (r *LogRecord) ToParquet() ParquetRecord {
	return ParquetRecord{
		Timestamp:    r.Timestamp.Format(time.RFC3339),
		IPAddress:    r.IPAddress,
		HTTPMethod:   r.HTTPMethod,
		Resource:     r.Resource,
		StatusCode:   int32(r.StatusCode),
		Country:      r.Country,
		PageCategory: r.PageCategory,
	}
}
