package tarstream

import (
	"errors"
	"strconv"
	"strings"
)

// PAX record keys this module interprets. All other records are kept
// verbatim and exposed through Entry.PaxRecords.
const (
	paxPath     = "path"
	paxLinkpath = "linkpath"
	paxSize     = "size"

	// paxSchilyXattr prefixes extended attribute records.
	paxSchilyXattr = "SCHILY.xattr."
)

// parsePaxRecords decodes a PAX extended header payload.
//
// Each record is "%d %s=%s\n" — a decimal length covering the whole
// record including the length token itself, a space, key=value, and a
// terminating newline.
func parsePaxRecords(buf []byte) (map[string]string, error) {
	recs := make(map[string]string)
	rest := string(buf)
	for len(rest) > 0 {
		sp := strings.IndexByte(rest, ' ')
		if sp < 0 {
			return nil, errors.New("PAX record missing length separator")
		}
		n, err := strconv.Atoi(rest[:sp])
		if err != nil || n < sp+2 || n > len(rest) {
			return nil, errors.New("PAX record has invalid length")
		}
		record := rest[sp+1 : n]
		rest = rest[n:]
		if record == "" || record[len(record)-1] != '\n' {
			return nil, errors.New("PAX record missing trailing newline")
		}
		record = record[:len(record)-1]
		eq := strings.IndexByte(record, '=')
		if eq < 0 {
			return nil, errors.New("PAX record missing '='")
		}
		key, value := record[:eq], record[eq+1:]
		if key == "" {
			return nil, errors.New("PAX record has empty key")
		}
		recs[key] = value
	}
	return recs, nil
}
