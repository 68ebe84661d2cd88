package tenantsql

import (
	"database/sql"
	"unicode/utf8"
)

/*
scanRows reads every row into a column name to value map. Text that the driver
hands back as []byte is converted to string, anything that is not valid UTF-8
stays binary.
*/
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()

	cols, err := rows.Columns()

	if err != nil {
		return nil, err
	}

	results := []map[string]interface{}{}

	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		m := make(map[string]interface{}, len(cols))
		for i, colName := range cols {
			if raw, ok := columns[i].([]byte); ok && utf8.Valid(raw) {
				m[colName] = string(raw)
			} else {
				m[colName] = columns[i]
			}
		}

		results = append(results, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
